package pricing

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Distributors covered by the demo tables.
var demoDistributors = []string{"Digi-Key", "Mouser", "Farnell", "Newark", "Arrow", "RS Components", "Avnet"}

// DemoProvider synthesizes realistic quotes from static tables. Every
// response carries demo_mode so callers can tell it apart from live data.
type DemoProvider struct{}

// NewDemoProvider returns the static demo provider.
func NewDemoProvider() *DemoProvider {
	return &DemoProvider{}
}

// SearchParts keys off resistor/capacitor keywords in the query and
// returns fixed distributor tables for the matched family.
func (p *DemoProvider) SearchParts(ctx context.Context, query SearchQuery) (SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return SearchResult{}, err
	}

	q := strings.ToLower(query.Query)
	var parts []Listing
	switch {
	case strings.Contains(q, "resistor") || strings.Contains(q, "ohm"):
		parts = []Listing{demoResistor(resistorValue(q))}
	case strings.Contains(q, "capacitor") || strings.Contains(q, "cap"):
		parts = []Listing{demoCapacitor()}
	default:
		parts = []Listing{demoGeneric(query.Query)}
	}

	return SearchResult{
		Parts:               parts,
		TotalCount:          len(parts),
		DemoMode:            true,
		Message:             "Demo data - set NEXAR_TOKEN for live pricing from all distributors",
		DistributorsCovered: demoDistributors,
	}, nil
}

// resistorValue parses the resistance family from free text.
func resistorValue(query string) string {
	switch {
	case strings.Contains(query, "220"):
		return "220"
	case strings.Contains(query, "1k") || strings.Contains(query, "1000"):
		return "1K"
	case strings.Contains(query, "2k"):
		return "2.2K"
	default:
		return "10K"
	}
}

func demoResistor(value string) Listing {
	return Listing{
		MPN:          fmt.Sprintf("RC0805FR-07%sL", value),
		Manufacturer: "Yageo",
		Description:  fmt.Sprintf("RES SMD %s OHM 1%% 1/8W 0805", value),
		Category:     "Resistors",
		Distributors: map[string]Offer{
			"Digi-Key": {
				PartNumber:   fmt.Sprintf("311-%sCRCT-ND", value),
				UnitPrice:    0.02,
				Stock:        50000,
				MinimumOrder: 1,
				URL:          "https://www.digikey.com",
			},
			"Mouser": {
				PartNumber:   fmt.Sprintf("603-RC0805FR-07%sL", value),
				UnitPrice:    0.018,
				Stock:        75000,
				MinimumOrder: 1,
				URL:          "https://www.mouser.com",
			},
			"Farnell": {
				PartNumber:   "9239111",
				UnitPrice:    0.025,
				Stock:        25000,
				MinimumOrder: 1,
				URL:          "https://www.farnell.com",
			},
			"Newark": {
				PartNumber:   "52AC3050",
				UnitPrice:    0.022,
				Stock:        30000,
				MinimumOrder: 10,
				URL:          "https://www.newark.com",
			},
		},
		BestPrice: &BestPrice{
			Distributor:  "Mouser",
			Price:        0.018,
			Stock:        75000,
			MinimumOrder: 1,
		},
		Specifications: map[string]string{
			"resistance":              value + " Ohms",
			"tolerance":               "±1%",
			"power":                   "0.125W",
			"package":                 "0805",
			"temperature_coefficient": "±100ppm/°C",
		},
	}
}

func demoCapacitor() Listing {
	return Listing{
		MPN:          "CL21B104KBCNNNC",
		Manufacturer: "Samsung Electro-Mechanics",
		Description:  "CAP CER 100NF 50V X7R 0805",
		Category:     "Capacitors",
		Distributors: map[string]Offer{
			"Digi-Key": {PartNumber: "CL21B104KBCNNNC-ND", UnitPrice: 0.01, Stock: 100000, MinimumOrder: 1},
			"Mouser":   {PartNumber: "187-CL21B104KBCNNNC", UnitPrice: 0.009, Stock: 85000, MinimumOrder: 1},
			"Arrow":    {PartNumber: "CL21B104KBCNNNC", UnitPrice: 0.008, Stock: 60000, MinimumOrder: 1},
		},
		BestPrice: &BestPrice{
			Distributor:  "Arrow",
			Price:        0.008,
			Stock:        60000,
			MinimumOrder: 1,
		},
		Specifications: map[string]string{
			"capacitance": "100nF",
			"voltage":     "50V",
			"tolerance":   "±10%",
			"dielectric":  "X7R",
			"package":     "0805",
		},
	}
}

func demoGeneric(query string) Listing {
	return Listing{
		MPN:          "DEMO-PART-001",
		Manufacturer: "Demo Manufacturer",
		Description:  fmt.Sprintf("Demo component for: %s", query),
		Category:     "Demo Components",
		Distributors: map[string]Offer{
			"Digi-Key": {UnitPrice: 0.05, Stock: 10000, MinimumOrder: 1},
			"Mouser":   {UnitPrice: 0.048, Stock: 8000, MinimumOrder: 1},
		},
		BestPrice: &BestPrice{
			Distributor:  "Mouser",
			Price:        0.048,
			Stock:        8000,
			MinimumOrder: 1,
		},
	}
}

// PartPricing returns the fixed tier tables with a quantity-dependent
// recommended price per distributor.
func (p *DemoProvider) PartPricing(ctx context.Context, mpn, manufacturer string, quantity int) (PartPricingResult, error) {
	if err := ctx.Err(); err != nil {
		return PartPricingResult{}, err
	}
	if quantity <= 0 {
		quantity = 1
	}

	digikey := DistributorPricing{
		Availability: 50000,
		PricingTiers: []Tier{
			{Quantity: 1, UnitPrice: 0.025, Total: 0.025},
			{Quantity: 10, UnitPrice: 0.020, Total: 0.20},
			{Quantity: 100, UnitPrice: 0.015, Total: 1.50},
			{Quantity: 1000, UnitPrice: 0.010, Total: 10.00},
			{Quantity: 5000, UnitPrice: 0.008, Total: 40.00},
		},
		RecommendedPrice: tierPrice(quantity, 0.025, 10, 0.020, 100, 0.015),
		LeadTimeWeeks:    0,
	}
	mouser := DistributorPricing{
		Availability: 75000,
		PricingTiers: []Tier{
			{Quantity: 1, UnitPrice: 0.023, Total: 0.023},
			{Quantity: 25, UnitPrice: 0.018, Total: 0.45},
			{Quantity: 100, UnitPrice: 0.014, Total: 1.40},
			{Quantity: 1000, UnitPrice: 0.009, Total: 9.00},
		},
		RecommendedPrice: tierPrice(quantity, 0.023, 25, 0.018, -1, 0),
		LeadTimeWeeks:    0,
	}
	arrow := DistributorPricing{
		Availability: 25000,
		PricingTiers: []Tier{
			{Quantity: 1, UnitPrice: 0.021, Total: 0.021},
			{Quantity: 50, UnitPrice: 0.016, Total: 0.80},
			{Quantity: 500, UnitPrice: 0.012, Total: 6.00},
		},
		RecommendedPrice: tierPrice(quantity, 0.021, 50, 0.016, -1, 0),
		LeadTimeWeeks:    2,
	}

	return PartPricingResult{
		MPN:               mpn,
		Manufacturer:      manufacturer,
		QuantityRequested: quantity,
		Distributors: map[string]DistributorPricing{
			"Digi-Key": digikey,
			"Mouser":   mouser,
			"Arrow":    arrow,
		},
		BestOption: BestOption{
			Distributor:  "Arrow",
			UnitPrice:    0.021,
			TotalPrice:   round2(0.021 * float64(quantity)),
			Availability: 25000,
			LeadTime:     "2 weeks",
		},
		TotalMarketAvailability: 150000,
		DemoMode:                true,
	}, nil
}

// tierPrice picks the recommended unit price for a quantity given up to
// two break points.
func tierPrice(quantity int, base float64, break1 int, price1 float64, break2 int, price2 float64) float64 {
	if break2 > 0 && quantity >= break2 {
		return price2
	}
	if quantity >= break1 {
		return price1
	}
	return base
}

// BestPrice applies the family base price and volume discounts, then sums
// the BOM with flat shipping.
func (p *DemoProvider) BestPrice(ctx context.Context, parts []PartRequest) (BOMQuote, error) {
	if err := ctx.Err(); err != nil {
		return BOMQuote{}, err
	}

	const shipping = 15.00

	var quotes []LineQuote
	var totalCost float64
	var totalUnits int
	for _, part := range parts {
		quantity := part.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		unitPrice := demoUnitPrice(part.MPN)
		switch {
		case quantity >= 1000:
			unitPrice *= 0.4
		case quantity >= 100:
			unitPrice *= 0.6
		case quantity >= 10:
			unitPrice *= 0.8
		}

		lineTotal := unitPrice * float64(quantity)
		totalCost += lineTotal
		totalUnits += quantity

		quotes = append(quotes, LineQuote{
			MPN:             part.MPN,
			Quantity:        quantity,
			BestDistributor: "Mouser",
			UnitPrice:       round4(unitPrice),
			TotalPrice:      round2(lineTotal),
			Availability:    50000,
			LeadTime:        "In Stock",
		})
	}

	quote := BOMQuote{
		Parts:                  quotes,
		TotalBOMCost:           round2(totalCost),
		RecommendedDistributor: "Mouser",
		EstimatedShipping:      shipping,
		GrandTotal:             round2(totalCost + shipping),
		DemoMode:               true,
		Message:                "Demo BOM pricing - live API provides accurate multi-distributor comparison",
	}
	if totalUnits > 0 {
		quote.AverageUnitPrice = round4(totalCost / float64(totalUnits))
	}
	return quote, nil
}

func demoUnitPrice(mpn string) float64 {
	lower := strings.ToLower(mpn)
	switch {
	case strings.Contains(lower, "resistor"), strings.Contains(lower, "ohm"), strings.Contains(lower, "res"):
		return 0.015
	case strings.Contains(lower, "capacitor"), strings.Contains(lower, "cap"):
		return 0.008
	default:
		return 0.02
	}
}

// Alternatives returns two fixed substitutes referencing the original MPN.
func (p *DemoProvider) Alternatives(ctx context.Context, mpn, manufacturer string, specs map[string]any) (AlternativesResult, error) {
	if err := ctx.Err(); err != nil {
		return AlternativesResult{}, err
	}

	alternatives := []Alternative{
		{
			MPN:                "Alternative-001",
			Manufacturer:       "Alternative Mfg",
			Description:        fmt.Sprintf("Alternative to %s", mpn),
			CompatibilityScore: 0.95,
			PriceDifference:    -0.002,
			Availability:       75000,
			Advantages:         []string{"Lower cost", "Better availability"},
			Considerations:     []string{"Different package marking"},
		},
		{
			MPN:                "Alternative-002",
			Manufacturer:       "Another Mfg",
			Description:        fmt.Sprintf("Drop-in replacement for %s", mpn),
			CompatibilityScore: 0.98,
			PriceDifference:    0.001,
			Availability:       40000,
			Advantages:         []string{"Exact specifications", "Same footprint"},
			Considerations:     []string{"Slightly higher cost"},
		},
	}

	return AlternativesResult{
		OriginalPart:      mpn,
		Alternatives:      alternatives,
		TotalAlternatives: len(alternatives),
		DemoMode:          true,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
