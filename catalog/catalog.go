// Package catalog implements the component-database tool server: a
// searchable parts catalog with per-part pricing and stock levels.
//
// The data source is pluggable so the demo dataset can be swapped for a
// real parts database without touching the protocol layer.
package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Part is one catalog entry.
type Part struct {
	PartID       string   `json:"part_id"`
	Type         string   `json:"type"`
	Value        string   `json:"value"`
	Package      string   `json:"package"`
	Price        float64  `json:"price"`
	Stock        int      `json:"stock"`
	Alternatives []string `json:"alternatives"`
}

// Pricing is the per-part answer to a pricing lookup.
type Pricing struct {
	UnitPrice float64 `json:"unit_price"`
	Stock     int     `json:"stock"`
}

// Provider is the catalog data source consumed by the tool server.
type Provider interface {
	// SearchComponents returns parts matching a component type (empty
	// matches all) and a set of spec filters matched field-by-field.
	SearchComponents(ctx context.Context, componentType string, specs map[string]any) ([]Part, error)
	// GetPricing returns pricing for the known subset of part numbers.
	GetPricing(ctx context.Context, partNumbers []string) (map[string]Pricing, error)
	// CheckAvailability returns stock for the known subset of part numbers.
	CheckAvailability(ctx context.Context, partNumbers []string) (map[string]int, error)
}

// matchesSpecs applies the demo spec filter: every spec key that names a
// part field must match its value case-insensitively.
func matchesSpecs(part Part, specs map[string]any) bool {
	for key, want := range specs {
		got, known := partField(part, key)
		if !known {
			continue
		}
		if !strings.EqualFold(got, fmt.Sprintf("%v", want)) {
			return false
		}
	}
	return true
}

func partField(part Part, key string) (string, bool) {
	switch strings.ToLower(key) {
	case "type":
		return part.Type, true
	case "value":
		return part.Value, true
	case "package":
		return part.Package, true
	case "price":
		return fmt.Sprintf("%v", part.Price), true
	case "stock":
		return fmt.Sprintf("%v", part.Stock), true
	default:
		return "", false
	}
}
