package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/traceworks/boardpilot/mcp"
)

const (
	serverName    = "component-database"
	serverVersion = "1.0.0"
)

// NewServer builds the component-database tool server over the given
// provider.
func NewServer(provider Provider, logger *slog.Logger) (*mcp.Server, error) {
	s := mcp.NewServer(mcp.ServerConfig{
		Info:   mcp.ServerInfo{Name: serverName, Version: serverVersion},
		Logger: logger,
	})

	err := s.Register(mcp.Tool{
		Name:        "search_components",
		Description: "Search for components by type and specifications",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":  map[string]any{"type": "string"},
				"specs": map[string]any{"type": "object"},
			},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		componentType := mcp.StringArg(args, "type", "")
		specs := mcp.MapArg(args, "specs")

		parts, err := provider.SearchComponents(ctx, componentType, specs)
		if err != nil {
			return nil, fmt.Errorf("component search failed: %w", err)
		}
		components := make([]Part, 0, len(parts))
		components = append(components, parts...)
		return map[string]any{
			"components":  components,
			"total_found": len(components),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Register(mcp.Tool{
		Name:        "get_pricing",
		Description: "Get pricing for component part numbers",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"part_numbers": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		numbers := mcp.StringSliceArg(args, "part_numbers")
		pricing, err := provider.GetPricing(ctx, numbers)
		if err != nil {
			return nil, fmt.Errorf("pricing lookup failed: %w", err)
		}
		return map[string]any{"pricing": pricing}, nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Register(mcp.Tool{
		Name:        "check_availability",
		Description: "Check stock availability for components",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"part_numbers": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		numbers := mcp.StringSliceArg(args, "part_numbers")
		availability, err := provider.CheckAvailability(ctx, numbers)
		if err != nil {
			return nil, fmt.Errorf("availability check failed: %w", err)
		}
		return map[string]any{"availability": availability}, nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}
