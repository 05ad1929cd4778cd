package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/traceworks/boardpilot/mcp"
)

const (
	serverName    = "octopart-api"
	serverVersion = "1.0.0"
)

// NewServer builds the distributor-pricing tool server over the given
// provider.
func NewServer(provider Provider, logger *slog.Logger) (*mcp.Server, error) {
	s := mcp.NewServer(mcp.ServerConfig{
		Info:   mcp.ServerInfo{Name: serverName, Version: serverVersion},
		Logger: logger,
	})

	err := s.Register(mcp.Tool{
		Name:        "search_parts",
		Description: "Search for electronic parts across distributors",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":        map[string]any{"type": "string"},
				"category":     map[string]any{"type": "string"},
				"manufacturer": map[string]any{"type": "string"},
				"limit":        map[string]any{"type": "integer"},
			},
			"required": []string{"query"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		query := SearchQuery{
			Query:        mcp.StringArg(args, "query", ""),
			Category:     mcp.StringArg(args, "category", ""),
			Manufacturer: mcp.StringArg(args, "manufacturer", ""),
			Limit:        mcp.IntArg(args, "limit", 10),
		}
		result, err := provider.SearchParts(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("part search failed: %w", err)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Register(mcp.Tool{
		Name:        "get_part_pricing",
		Description: "Get detailed pricing tiers for a specific part",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"mpn":          map[string]any{"type": "string"},
				"manufacturer": map[string]any{"type": "string"},
				"quantity":     map[string]any{"type": "integer"},
			},
			"required": []string{"mpn"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		result, err := provider.PartPricing(ctx,
			mcp.StringArg(args, "mpn", ""),
			mcp.StringArg(args, "manufacturer", ""),
			mcp.IntArg(args, "quantity", 1))
		if err != nil {
			return nil, fmt.Errorf("pricing lookup failed: %w", err)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Register(mcp.Tool{
		Name:        "get_best_price",
		Description: "Find the best total price for a BOM across distributors",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"parts": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"mpn":          map[string]any{"type": "string"},
							"manufacturer": map[string]any{"type": "string"},
							"quantity":     map[string]any{"type": "integer"},
						},
					},
				},
			},
			"required": []string{"parts"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		var requests []PartRequest
		for _, entry := range mcp.SliceArg(args, "parts") {
			requests = append(requests, PartRequest{
				MPN:          mcp.StringArg(entry, "mpn", ""),
				Manufacturer: mcp.StringArg(entry, "manufacturer", ""),
				Quantity:     mcp.IntArg(entry, "quantity", 1),
			})
		}
		quote, err := provider.BestPrice(ctx, requests)
		if err != nil {
			return nil, fmt.Errorf("BOM quote failed: %w", err)
		}
		return quote, nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Register(mcp.Tool{
		Name:        "get_alternatives",
		Description: "Find alternative parts with similar specifications",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"mpn":          map[string]any{"type": "string"},
				"manufacturer": map[string]any{"type": "string"},
				"specs":        map[string]any{"type": "object"},
			},
			"required": []string{"mpn"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		result, err := provider.Alternatives(ctx,
			mcp.StringArg(args, "mpn", ""),
			mcp.StringArg(args, "manufacturer", ""),
			mcp.MapArg(args, "specs"))
		if err != nil {
			return nil, fmt.Errorf("alternatives lookup failed: %w", err)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}
