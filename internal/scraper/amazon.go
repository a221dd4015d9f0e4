package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/smart-shopper/internal/models"
)

type Amazon struct {
	fetcher Fetcher
	sel     AmazonSelectors
}

func (a *Amazon) Source() models.Source { return models.SourceAmazon }

func (a *Amazon) Search(ctx context.Context, req models.SearchRequest) ([]models.Offer, error) {
	pageURL, err := BuildSearchURL(models.SourceAmazon, req.Query, req.Sort, req.Page)
	if err != nil {
		return nil, err
	}
	doc, err := fetchDocument(ctx, a.fetcher, pageURL)
	if err != nil {
		return nil, fmt.Errorf("amazon search: %w", err)
	}
	return parseAmazonListings(doc, a.sel, req.BatchSize), nil
}

func parseAmazonListings(doc *goquery.Document, sel AmazonSelectors, limit int) []models.Offer {
	results := []models.Offer{}
	doc.Find(sel.Listing.Container).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}
		offer, ok := parseListing(s, sel.Listing, models.SourceAmazon, amazonBaseURL)
		if !ok {
			return true
		}
		if d := amazonDiscount(s, sel.DiscountRow); d != "" {
			offer.DiscountLabel = d
		}
		results = append(results, offer)
		return true
	})
	return results
}

// amazonDiscount reads the first class-less span of the card's first row.
func amazonDiscount(card *goquery.Selection, rowSelector string) string {
	if rowSelector == "" {
		return ""
	}
	span := card.Find(rowSelector).First().Find("span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		_, hasClass := s.Attr("class")
		return !hasClass
	}).First()
	return strings.TrimSpace(span.Text())
}

// Reviews tries each review selector in order, then the page's JSON-LD.
func (a *Amazon) Reviews(ctx context.Context, detailURL string) ([]string, error) {
	doc, err := fetchDocument(ctx, a.fetcher, detailURL)
	if err != nil {
		return nil, fmt.Errorf("amazon reviews: %w", err)
	}
	for _, selector := range a.sel.Reviews {
		if reviews := firstTexts(doc.Find(selector), maxReviews); len(reviews) > 0 {
			return reviews, nil
		}
	}
	return reviewsFromJSONLD(doc, maxReviews), nil
}
