package scraper

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/smart-shopper/internal/models"
)

type Flipkart struct {
	fetcher Fetcher
	sel     FlipkartSelectors
}

func (f *Flipkart) Source() models.Source { return models.SourceFlipkart }

func (f *Flipkart) Search(ctx context.Context, req models.SearchRequest) ([]models.Offer, error) {
	pageURL, err := BuildSearchURL(models.SourceFlipkart, req.Query, req.Sort, req.Page)
	if err != nil {
		return nil, err
	}
	doc, err := fetchDocument(ctx, f.fetcher, pageURL)
	if err != nil {
		return nil, fmt.Errorf("flipkart search: %w", err)
	}
	return parseFlipkartListings(doc, f.sel, req.BatchSize), nil
}

// parseFlipkartListings walks every selector set in order. When a set matches
// more cards than the batch size, the cap is raised to that card count.
func parseFlipkartListings(doc *goquery.Document, sel FlipkartSelectors, limit int) []models.Offer {
	results := []models.Offer{}
	for _, set := range sel.Listings {
		cards := doc.Find(set.Container)
		if cards.Length() > limit {
			limit = cards.Length()
		}
		cards.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if len(results) >= limit {
				return false
			}
			if offer, ok := parseListing(s, set, models.SourceFlipkart, flipkartBaseURL); ok {
				results = append(results, offer)
			}
			return true
		})
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (f *Flipkart) Reviews(ctx context.Context, detailURL string) ([]string, error) {
	if f.sel.Reviews == "" {
		return nil, errNoSelectors
	}
	doc, err := fetchDocument(ctx, f.fetcher, detailURL)
	if err != nil {
		return nil, fmt.Errorf("flipkart reviews: %w", err)
	}
	reviews := firstTexts(doc.Find(f.sel.Reviews), maxReviews)
	if len(reviews) == 0 {
		reviews = reviewsFromJSONLD(doc, maxReviews)
	}
	return reviews, nil
}
