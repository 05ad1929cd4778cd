package catalog

import (
	"context"
	"slices"
	"sort"
	"strings"
)

// StaticProvider serves a fixed in-memory dataset. Responses are
// deterministic functions of the query.
type StaticProvider struct {
	parts map[string]Part
}

// DemoParts returns the built-in demo dataset.
func DemoParts() []Part {
	return []Part{
		{
			PartID:       "R1",
			Type:         "resistor",
			Value:        "10k",
			Package:      "0805",
			Price:        0.02,
			Stock:        5000,
			Alternatives: []string{"R1206-10K", "R0603-10K"},
		},
		{
			PartID:       "R2",
			Type:         "resistor",
			Value:        "220",
			Package:      "0603",
			Price:        0.015,
			Stock:        12000,
			Alternatives: []string{"R0805-220R"},
		},
		{
			PartID:       "C1",
			Type:         "capacitor",
			Value:        "100nF",
			Package:      "0805",
			Price:        0.05,
			Stock:        2000,
			Alternatives: []string{"C1206-100N", "C0603-100N"},
		},
		{
			PartID:       "C2",
			Type:         "capacitor",
			Value:        "10uF",
			Package:      "1206",
			Price:        0.12,
			Stock:        800,
			Alternatives: []string{"C0805-10U"},
		},
		{
			PartID:       "U1",
			Type:         "microcontroller",
			Value:        "ATmega328P-AU",
			Package:      "TQFP-32",
			Price:        2.45,
			Stock:        350,
			Alternatives: []string{"ATMEGA328P-PU"},
		},
	}
}

// NewStaticProvider builds a provider over the given parts, or the demo
// dataset when parts is empty.
func NewStaticProvider(parts []Part) *StaticProvider {
	if len(parts) == 0 {
		parts = DemoParts()
	}
	indexed := make(map[string]Part, len(parts))
	for _, part := range parts {
		indexed[part.PartID] = part
	}
	return &StaticProvider{parts: indexed}
}

// SearchComponents filters by type (case-insensitive) and specs.
func (p *StaticProvider) SearchComponents(ctx context.Context, componentType string, specs map[string]any) ([]Part, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []Part
	for _, part := range p.parts {
		if componentType != "" && !strings.EqualFold(part.Type, componentType) {
			continue
		}
		if !matchesSpecs(part, specs) {
			continue
		}
		results = append(results, part)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].PartID < results[j].PartID })
	return results, nil
}

// GetPricing returns pricing for known part numbers; unknown numbers are
// silently omitted.
func (p *StaticProvider) GetPricing(ctx context.Context, partNumbers []string) (map[string]Pricing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pricing := make(map[string]Pricing)
	for _, number := range partNumbers {
		if part, ok := p.parts[number]; ok {
			pricing[number] = Pricing{UnitPrice: part.Price, Stock: part.Stock}
		}
	}
	return pricing, nil
}

// CheckAvailability returns stock for known part numbers.
func (p *StaticProvider) CheckAvailability(ctx context.Context, partNumbers []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	availability := make(map[string]int)
	for _, number := range partNumbers {
		if part, ok := p.parts[number]; ok {
			availability[number] = part.Stock
		}
	}
	return availability, nil
}

// Parts returns the dataset sorted by part id.
func (p *StaticProvider) Parts() []Part {
	out := make([]Part, 0, len(p.parts))
	for _, part := range p.parts {
		out = append(out, part)
	}
	slices.SortFunc(out, func(a, b Part) int { return strings.Compare(a.PartID, b.PartID) })
	return out
}
