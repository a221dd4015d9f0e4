package scraper

import (
	"encoding/json"
	"fmt"
	"os"
)

type SelectorConfig struct {
	Flipkart FlipkartSelectors `json:"flipkart"`
	Amazon   AmazonSelectors   `json:"amazon"`
}

// ListingSelectors locates one offer card and its fields on a search results page.
type ListingSelectors struct {
	Container string `json:"container"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	URL       string `json:"url"`
	Image     string `json:"image"`
	Discount  string `json:"discount"`
}

// FlipkartSelectors tries each listing set in order; the page layout varies by category.
type FlipkartSelectors struct {
	Listings []ListingSelectors `json:"listings"`
	Reviews  string             `json:"reviews"`
}

type AmazonSelectors struct {
	Listing ListingSelectors `json:"listing"`
	// DiscountRow holds the discount as its first span without a class attribute.
	DiscountRow string   `json:"discount_row"`
	Reviews     []string `json:"reviews"`
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	var config SelectorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if err := config.validate(); err != nil {
		return SelectorConfig{}, err
	}
	return config, nil
}

func (c SelectorConfig) validate() error {
	if len(c.Flipkart.Listings) == 0 {
		return fmt.Errorf("selector config: flipkart.listings is empty")
	}
	for i, l := range c.Flipkart.Listings {
		if l.Container == "" || l.Name == "" || l.Price == "" || l.URL == "" {
			return fmt.Errorf("selector config: flipkart.listings[%d] is incomplete", i)
		}
	}
	a := c.Amazon.Listing
	if a.Container == "" || a.Name == "" || a.Price == "" || a.URL == "" {
		return fmt.Errorf("selector config: amazon.listing is incomplete")
	}
	return nil
}

// DefaultSelectors returns the fallback configuration if no JSON file is loaded.
// The embedded selectors.json should be preferred.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Flipkart: FlipkartSelectors{
			Listings: []ListingSelectors{
				{
					Container: "div._1sdMkc.LFEi7Z",
					Name:      "a.WKTcLC.BwBZTg",
					Price:     "div.Nx9bqj",
					URL:       "a.rPDeLR",
					Image:     "img._53J4C-",
					Discount:  "div.UkUFwK span",
				},
				{
					Container: "div.slAVV4",
					Name:      "a.wjcEIp",
					Price:     "div.Nx9bqj",
					URL:       "a.VJA3rP",
					Image:     "img.DByuf4",
					Discount:  "div.UkUFwK span",
				},
				{
					Container: "div._75nlfW",
					Name:      "div.KzDlHZ",
					Price:     "div.Nx9bqj._4b5DiR",
					URL:       "a.CGtC98",
					Image:     "img.DByuf4",
					Discount:  "div.UkUFwK span",
				},
			},
			Reviews: "div.RcXBOT",
		},
		Amazon: AmazonSelectors{
			Listing: ListingSelectors{
				Container: "div.a-section.a-spacing-base",
				Name:      "h2.a-text-normal span",
				Price:     "span.a-price span.a-offscreen",
				URL:       "a.a-link-normal",
				Image:     "img.s-image",
			},
			DiscountRow: "div.a-row",
			Reviews: []string{
				"div.review-text-content span",
				"span.review-text",
				"div.a-expander-content.reviewText",
				"span.-a-size-base.review-text",
			},
		},
	}
}
