package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultNexarEndpoint = "https://api.nexar.com/graphql"
	defaultNexarTimeout  = 15 * time.Second
)

const nexarSearchQuery = `
query PartSearch($q: String!, $limit: Int!) {
  supSearchMpn(q: $q, limit: $limit) {
    hits
    results {
      part {
        mpn
        manufacturer { name }
        shortDescription
        category { name }
        sellers {
          company { name }
          offers {
            sku
            inventoryLevel
            moq
            clickUrl
            prices { quantity price }
          }
        }
      }
    }
  }
}`

// NexarConfig configures the live pricing provider.
type NexarConfig struct {
	Token    string
	Endpoint string
	Client   *http.Client
}

// NexarProvider queries the Nexar GraphQL API for part search. The
// remaining operations synthesize from the demo tables; only search has
// a live query, matching the capability the upstream token grants.
type NexarProvider struct {
	token    string
	endpoint string
	client   *http.Client
	demo     *DemoProvider
}

// NewNexarProvider builds a live provider; the token is required.
func NewNexarProvider(cfg NexarConfig) (*NexarProvider, error) {
	if cfg.Token == "" {
		return nil, errors.New("pricing: nexar token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultNexarEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: defaultNexarTimeout}
	}
	return &NexarProvider{
		token:    cfg.Token,
		endpoint: cfg.Endpoint,
		client:   cfg.Client,
		demo:     NewDemoProvider(),
	}, nil
}

type nexarResponse struct {
	Data struct {
		SupSearchMpn struct {
			Hits    int `json:"hits"`
			Results []struct {
				Part struct {
					MPN          string `json:"mpn"`
					Manufacturer struct {
						Name string `json:"name"`
					} `json:"manufacturer"`
					ShortDescription string `json:"shortDescription"`
					Category         struct {
						Name string `json:"name"`
					} `json:"category"`
					Sellers []struct {
						Company struct {
							Name string `json:"name"`
						} `json:"company"`
						Offers []struct {
							SKU            string `json:"sku"`
							InventoryLevel int    `json:"inventoryLevel"`
							MOQ            int    `json:"moq"`
							ClickURL       string `json:"clickUrl"`
							Prices         []struct {
								Quantity int     `json:"quantity"`
								Price    float64 `json:"price"`
							} `json:"prices"`
						} `json:"offers"`
					} `json:"sellers"`
				} `json:"part"`
			} `json:"results"`
		} `json:"supSearchMpn"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// SearchParts issues the live GraphQL search.
func (p *NexarProvider) SearchParts(ctx context.Context, query SearchQuery) (SearchResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}

	payload, err := json.Marshal(map[string]any{
		"query": nexarSearchQuery,
		"variables": map[string]any{
			"q":     query.Query,
			"limit": limit,
		},
	})
	if err != nil {
		return SearchResult{}, fmt.Errorf("pricing: encode nexar query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return SearchResult{}, fmt.Errorf("pricing: create nexar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return SearchResult{}, fmt.Errorf("pricing: nexar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return SearchResult{}, fmt.Errorf("pricing: nexar API error %d: %s", resp.StatusCode, body)
	}

	var decoded nexarResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return SearchResult{}, fmt.Errorf("pricing: decode nexar response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return SearchResult{}, fmt.Errorf("pricing: nexar API error: %s", decoded.Errors[0].Message)
	}

	result := SearchResult{
		DemoMode: false,
	}
	covered := map[string]bool{}
	for _, hit := range decoded.Data.SupSearchMpn.Results {
		part := hit.Part
		listing := Listing{
			MPN:          part.MPN,
			Manufacturer: part.Manufacturer.Name,
			Description:  part.ShortDescription,
			Category:     part.Category.Name,
			Distributors: map[string]Offer{},
		}
		for _, seller := range part.Sellers {
			name := seller.Company.Name
			for _, offer := range seller.Offers {
				if len(offer.Prices) == 0 {
					continue
				}
				price := offer.Prices[0].Price
				listing.Distributors[name] = Offer{
					PartNumber:   offer.SKU,
					UnitPrice:    price,
					Stock:        offer.InventoryLevel,
					MinimumOrder: offer.MOQ,
					URL:          offer.ClickURL,
				}
				covered[name] = true
				if listing.BestPrice == nil || price < listing.BestPrice.Price {
					listing.BestPrice = &BestPrice{
						Distributor:  name,
						Price:        price,
						Stock:        offer.InventoryLevel,
						MinimumOrder: offer.MOQ,
					}
				}
			}
		}
		result.Parts = append(result.Parts, listing)
	}
	result.TotalCount = len(result.Parts)
	result.Message = fmt.Sprintf("Found %d parts via Nexar API", result.TotalCount)
	for name := range covered {
		result.DistributorsCovered = append(result.DistributorsCovered, name)
	}
	return result, nil
}

// PartPricing synthesizes from the demo tables.
func (p *NexarProvider) PartPricing(ctx context.Context, mpn, manufacturer string, quantity int) (PartPricingResult, error) {
	return p.demo.PartPricing(ctx, mpn, manufacturer, quantity)
}

// BestPrice synthesizes from the demo tables.
func (p *NexarProvider) BestPrice(ctx context.Context, parts []PartRequest) (BOMQuote, error) {
	return p.demo.BestPrice(ctx, parts)
}

// Alternatives synthesizes from the demo tables.
func (p *NexarProvider) Alternatives(ctx context.Context, mpn, manufacturer string, specs map[string]any) (AlternativesResult, error) {
	return p.demo.Alternatives(ctx, mpn, manufacturer, specs)
}
