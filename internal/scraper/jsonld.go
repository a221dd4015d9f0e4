package scraper

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// JSONLDProduct is the schema.org Product block some product pages embed.
type JSONLDProduct struct {
	Context string         `json:"@context"`
	Type    string         `json:"@type"`
	Name    string         `json:"name"`
	Review  []JSONLDReview `json:"review"`
}

type JSONLDReview struct {
	Type       string `json:"@type"`
	Name       string `json:"name"`
	ReviewBody string `json:"reviewBody"`
}

type jsonLDGraph struct {
	Graph []JSONLDProduct `json:"@graph"`
}

// reviewsFromJSONLD collects review bodies from every ld+json script on the page.
func reviewsFromJSONLD(doc *goquery.Document, limit int) []string {
	var out []string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, p := range decodeJSONLD([]byte(s.Text())) {
			for _, r := range p.Review {
				if len(out) >= limit {
					return false
				}
				if body := strings.TrimSpace(r.ReviewBody); body != "" {
					out = append(out, body)
				}
			}
		}
		return len(out) < limit
	})
	return out
}

func decodeJSONLD(raw []byte) []JSONLDProduct {
	var single JSONLDProduct
	if err := json.Unmarshal(raw, &single); err == nil {
		if len(single.Review) > 0 {
			return []JSONLDProduct{single}
		}
		var graph jsonLDGraph
		if err := json.Unmarshal(raw, &graph); err == nil {
			return graph.Graph
		}
		return nil
	}
	var list []JSONLDProduct
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return nil
}
