package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Source identifies one marketplace that offers are gathered from.
type Source string

const (
	SourceFlipkart Source = "flipkart"
	SourceAmazon   Source = "amazon"
)

// KnownSources lists every marketplace the system can query, in default merge order.
var KnownSources = []Source{SourceFlipkart, SourceAmazon}

// ParseSource maps a user or config supplied name onto a known Source.
func ParseSource(s string) (Source, error) {
	name := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownSources {
		if name == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// Verdict is the sentiment classification attached to an offer.
type Verdict string

const (
	VerdictPositive  Verdict = "Positive"
	VerdictNeutral   Verdict = "Neutral"
	VerdictNegative  Verdict = "Negative"
	VerdictNoReviews Verdict = "No reviews"
)

// ParseVerdict accepts the labels produced by the classifiers.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return VerdictPositive, nil
	case "neutral":
		return VerdictNeutral, nil
	case "negative":
		return VerdictNegative, nil
	case "no reviews", "noreviews", "no_reviews":
		return VerdictNoReviews, nil
	}
	return "", fmt.Errorf("unknown sentiment verdict %q", s)
}

// Sentiment is the enrichment result for one offer.
type Sentiment struct {
	Verdict    Verdict `json:"overall_sentiment" firestore:"verdict"`
	Confidence int     `json:"confidence" firestore:"confidence" validate:"gte=0,lte=100"`
}

// NoReviewsSentiment is the terminal verdict for an offer whose review fetch returned nothing.
func NoReviewsSentiment() Sentiment {
	return Sentiment{Verdict: VerdictNoReviews, Confidence: 0}
}

// Identity is the de-facto unique key of an offer. Marketplaces expose no stable ID.
type Identity struct {
	Name   string `json:"name"`
	Source Source `json:"source"`
}

func (i Identity) String() string {
	return string(i.Source) + ":" + i.Name
}

// Offer is one marketplace listing.
type Offer struct {
	Name          string     `json:"name" validate:"required"`
	Source        Source     `json:"platform" validate:"required,oneof=flipkart amazon"`
	DisplayPrice  string     `json:"price" validate:"required"`
	NumericPrice  float64    `json:"price_value"`
	DiscountLabel string     `json:"discount,omitempty"`
	DetailURL     string     `json:"url" validate:"required"`
	ImageURL      string     `json:"img"`
	Sentiment     *Sentiment `json:"sentimentSummary,omitempty"`
}

// Identity returns the (name, source) key of the offer.
func (o Offer) Identity() Identity {
	return Identity{Name: o.Name, Source: o.Source}
}

var discountDigits = regexp.MustCompile(`\d+`)

// DiscountPercent extracts the first integer from the discount label. Display only.
func (o Offer) DiscountPercent() int {
	m := discountDigits.FindString(o.DiscountLabel)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// SortMode selects how the view over the collection is ordered.
type SortMode string

const (
	SortRelevance     SortMode = "relevance"
	SortPopularity    SortMode = "popularity"
	SortNewest        SortMode = "newest"
	SortPriceLowHigh  SortMode = "price_low_to_high"
	SortPriceHighLow  SortMode = "price_high_to_low"
	SortSentimentHigh SortMode = "sentiment_high"
	SortSentimentLow  SortMode = "sentiment_low"
)

var sortModes = []SortMode{
	SortRelevance, SortPopularity, SortNewest,
	SortPriceLowHigh, SortPriceHighLow,
	SortSentimentHigh, SortSentimentLow,
}

// ParseSortMode validates a sort mode name.
func ParseSortMode(s string) (SortMode, error) {
	mode := SortMode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range sortModes {
		if mode == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortMode, s)
}

// SourceSort returns the sort parameter understood by marketplaces.
// Sentiment ordering only exists locally, so sources are asked for relevance instead.
func (m SortMode) SourceSort() SortMode {
	switch m {
	case SortSentimentHigh, SortSentimentLow, "":
		return SortRelevance
	}
	return m
}

// SearchRequest asks one source for one page of offers.
type SearchRequest struct {
	Query     string
	Source    Source
	Sort      SortMode
	Page      int
	BatchSize int
}
