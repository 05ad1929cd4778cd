// Package pricing implements the distributor-pricing tool server. The
// demo provider synthesizes deterministic multi-distributor quotes; the
// Nexar provider swaps in live part search when an API token is present.
package pricing

import "context"

// SearchQuery selects parts across distributors.
type SearchQuery struct {
	Query        string
	Category     string
	Manufacturer string
	Limit        int
}

// Offer is one distributor's listing for a part.
type Offer struct {
	PartNumber   string  `json:"part_number,omitempty"`
	UnitPrice    float64 `json:"unit_price"`
	Stock        int     `json:"stock"`
	MinimumOrder int     `json:"minimum_order"`
	URL          string  `json:"url,omitempty"`
}

// BestPrice is the winning offer across distributors.
type BestPrice struct {
	Distributor  string  `json:"distributor"`
	Price        float64 `json:"price"`
	Stock        int     `json:"stock"`
	MinimumOrder int     `json:"minimum_order"`
}

// Listing is a part with its distributor offers.
type Listing struct {
	MPN            string            `json:"mpn"`
	Manufacturer   string            `json:"manufacturer"`
	Description    string            `json:"description"`
	Category       string            `json:"category"`
	Distributors   map[string]Offer  `json:"distributors"`
	BestPrice      *BestPrice        `json:"best_price"`
	Specifications map[string]string `json:"specifications,omitempty"`
}

// SearchResult is the search_parts payload.
type SearchResult struct {
	Parts               []Listing `json:"parts"`
	TotalCount          int       `json:"total_count"`
	DemoMode            bool      `json:"demo_mode"`
	Message             string    `json:"message,omitempty"`
	DistributorsCovered []string  `json:"distributors_covered,omitempty"`
}

// Tier is one quantity price break.
type Tier struct {
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// DistributorPricing is one distributor's full tier table for a part.
type DistributorPricing struct {
	Availability     int     `json:"availability"`
	PricingTiers     []Tier  `json:"pricing_tiers"`
	RecommendedPrice float64 `json:"recommended_price"`
	LeadTimeWeeks    int     `json:"lead_time_weeks"`
}

// BestOption is the recommended buy for a requested quantity.
type BestOption struct {
	Distributor  string  `json:"distributor"`
	UnitPrice    float64 `json:"unit_price"`
	TotalPrice   float64 `json:"total_price"`
	Availability int     `json:"availability"`
	LeadTime     string  `json:"lead_time"`
}

// PartPricingResult is the get_part_pricing payload.
type PartPricingResult struct {
	MPN                     string                        `json:"mpn"`
	Manufacturer            string                        `json:"manufacturer,omitempty"`
	QuantityRequested       int                           `json:"quantity_requested"`
	Distributors            map[string]DistributorPricing `json:"distributors"`
	BestOption              BestOption                    `json:"best_option"`
	TotalMarketAvailability int                           `json:"total_market_availability"`
	DemoMode                bool                          `json:"demo_mode"`
}

// PartRequest is one line of a BOM quote request.
type PartRequest struct {
	MPN          string
	Manufacturer string
	Quantity     int
}

// LineQuote is the best price found for one BOM line.
type LineQuote struct {
	MPN             string  `json:"mpn"`
	Quantity        int     `json:"quantity"`
	BestDistributor string  `json:"best_distributor"`
	UnitPrice       float64 `json:"unit_price"`
	TotalPrice      float64 `json:"total_price"`
	Availability    int     `json:"availability"`
	LeadTime        string  `json:"lead_time"`
}

// BOMQuote is the get_best_price payload.
type BOMQuote struct {
	Parts                  []LineQuote `json:"parts"`
	TotalBOMCost           float64     `json:"total_bom_cost"`
	AverageUnitPrice       float64     `json:"average_unit_price"`
	RecommendedDistributor string      `json:"recommended_distributor"`
	EstimatedShipping      float64     `json:"estimated_shipping"`
	GrandTotal             float64     `json:"grand_total"`
	DemoMode               bool        `json:"demo_mode"`
	Message                string      `json:"message,omitempty"`
}

// Alternative is one substitute part suggestion.
type Alternative struct {
	MPN                string   `json:"mpn"`
	Manufacturer       string   `json:"manufacturer"`
	Description        string   `json:"description"`
	CompatibilityScore float64  `json:"compatibility_score"`
	PriceDifference    float64  `json:"price_difference"`
	Availability       int      `json:"availability"`
	Advantages         []string `json:"advantages"`
	Considerations     []string `json:"considerations"`
}

// AlternativesResult is the get_alternatives payload.
type AlternativesResult struct {
	OriginalPart      string        `json:"original_part"`
	Alternatives      []Alternative `json:"alternatives"`
	TotalAlternatives int           `json:"total_alternatives"`
	DemoMode          bool          `json:"demo_mode"`
}

// Provider answers the four pricing operations. Implementations must be
// deterministic for a given input so callers can cache and test against
// them.
type Provider interface {
	SearchParts(ctx context.Context, query SearchQuery) (SearchResult, error)
	PartPricing(ctx context.Context, mpn, manufacturer string, quantity int) (PartPricingResult, error)
	BestPrice(ctx context.Context, parts []PartRequest) (BOMQuote, error)
	Alternatives(ctx context.Context, mpn, manufacturer string, specs map[string]any) (AlternativesResult, error)
}
