package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/traceworks/boardpilot/mcp"
)

const (
	serverName    = "kicad-tools"
	serverVersion = "1.0.0"
)

// NewServer builds the design-analysis tool server.
func NewServer(analyzer *Analyzer, logger *slog.Logger) (*mcp.Server, error) {
	if analyzer == nil {
		analyzer = NewAnalyzer()
	}
	s := mcp.NewServer(mcp.ServerConfig{
		Info:   mcp.ServerInfo{Name: serverName, Version: serverVersion},
		Logger: logger,
	})

	err := s.Register(mcp.Tool{
		Name:        "analyze_schematic",
		Description: "Analyze schematic for design rule violations and suggestions",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"schematic_path": map[string]any{"type": "string", "description": "Path to .kicad_sch file"},
				"check_types": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Types of checks: erc, power, connectivity, components",
				},
			},
			"required": []string{"schematic_path"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		report, err := analyzer.AnalyzeSchematic(ctx,
			mcp.StringArg(args, "schematic_path", ""),
			mcp.StringSliceArg(args, "check_types"))
		if err != nil {
			return nil, fmt.Errorf("Schematic analysis failed: %w", err)
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Register(mcp.Tool{
		Name:        "analyze_pcb",
		Description: "Analyze PCB layout for design issues",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pcb_path": map[string]any{"type": "string", "description": "Path to .kicad_pcb file"},
				"check_types": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Types of checks: drc, layer_stack, thermal, impedance",
				},
			},
			"required": []string{"pcb_path"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		report, err := analyzer.AnalyzePCB(ctx,
			mcp.StringArg(args, "pcb_path", ""),
			mcp.StringSliceArg(args, "check_types"))
		if err != nil {
			return nil, fmt.Errorf("PCB analysis failed: %w", err)
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Register(mcp.Tool{
		Name:        "get_component_list",
		Description: "Extract component list from schematic",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"schematic_path":     map[string]any{"type": "string"},
				"include_values":     map[string]any{"type": "boolean", "default": true},
				"include_footprints": map[string]any{"type": "boolean", "default": true},
			},
			"required": []string{"schematic_path"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		list, err := analyzer.ComponentList(ctx,
			mcp.StringArg(args, "schematic_path", ""),
			mcp.BoolArg(args, "include_values", true),
			mcp.BoolArg(args, "include_footprints", true))
		if err != nil {
			return nil, fmt.Errorf("Failed to extract component list: %w", err)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Register(mcp.Tool{
		Name:        "generate_bom",
		Description: "Generate Bill of Materials with pricing if available",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"schematic_path":  map[string]any{"type": "string"},
				"include_pricing": map[string]any{"type": "boolean", "default": false},
				"group_by": map[string]any{
					"type":    "string",
					"enum":    []string{"value", "footprint", "manufacturer"},
					"default": "value",
				},
			},
			"required": []string{"schematic_path"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		bom, err := analyzer.GenerateBOM(ctx,
			mcp.StringArg(args, "schematic_path", ""),
			mcp.BoolArg(args, "include_pricing", false),
			mcp.StringArg(args, "group_by", "value"))
		if err != nil {
			return nil, fmt.Errorf("BOM generation failed: %w", err)
		}
		return bom, nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Register(mcp.Tool{
		Name:        "suggest_improvements",
		Description: "Suggest design improvements based on analysis",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"project_path": map[string]any{"type": "string"},
				"focus_areas": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Areas to focus on: cost, performance, reliability, manufacturability",
				},
			},
			"required": []string{"project_path"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		improvements, err := analyzer.SuggestImprovements(ctx,
			mcp.StringArg(args, "project_path", ""),
			mcp.StringSliceArg(args, "focus_areas"))
		if err != nil {
			return nil, fmt.Errorf("Failed to generate suggestions: %w", err)
		}
		return improvements, nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Register(mcp.Tool{
		Name:        "validate_footprints",
		Description: "Check if all components have valid footprints assigned",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"schematic_path":       map[string]any{"type": "string"},
				"suggest_alternatives": map[string]any{"type": "boolean", "default": true},
			},
			"required": []string{"schematic_path"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		report, err := analyzer.ValidateFootprints(ctx,
			mcp.StringArg(args, "schematic_path", ""),
			mcp.BoolArg(args, "suggest_alternatives", true))
		if err != nil {
			return nil, fmt.Errorf("Footprint validation failed: %w", err)
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}
