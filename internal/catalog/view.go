package catalog

import (
	"cmp"
	"slices"

	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/util"
)

// RecommendationCount is the size of the cheapest-offers subview.
const RecommendationCount = 3

// Sort returns a new slice ordered by mode. Numeric prices are re-derived from
// the display price on every call. The input is not modified.
// Relevance, popularity and newest keep source order.
func Sort(offers []models.Offer, mode models.SortMode) []models.Offer {
	out := normalized(offers)

	switch mode {
	case models.SortPriceLowHigh:
		slices.SortStableFunc(out, func(a, b models.Offer) int {
			return cmp.Compare(a.NumericPrice, b.NumericPrice)
		})
	case models.SortPriceHighLow:
		slices.SortStableFunc(out, func(a, b models.Offer) int {
			return cmp.Compare(b.NumericPrice, a.NumericPrice)
		})
	case models.SortSentimentHigh:
		slices.SortStableFunc(out, func(a, b models.Offer) int {
			return cmp.Compare(positiveScore(b.Sentiment), positiveScore(a.Sentiment))
		})
	case models.SortSentimentLow:
		slices.SortStableFunc(out, func(a, b models.Offer) int {
			return cmp.Compare(negativeScore(b.Sentiment), negativeScore(a.Sentiment))
		})
	}
	return out
}

// Recommendations returns up to n of the cheapest offers across the whole
// collection. Ties keep collection order.
func Recommendations(offers []models.Offer, n int) []models.Offer {
	out := normalized(offers)
	slices.SortStableFunc(out, func(a, b models.Offer) int {
		return cmp.Compare(a.NumericPrice, b.NumericPrice)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func normalized(offers []models.Offer) []models.Offer {
	out := cloneOffers(offers)
	for i := range out {
		out[i].NumericPrice = util.NormalizePrice(out[i].DisplayPrice)
	}
	return out
}

// positiveScore ranks for sentiment_high. Absent sentiment counts as neutral;
// an offer without reviews ranks with the negatives.
func positiveScore(s *models.Sentiment) int {
	if s == nil {
		return 0
	}
	switch s.Verdict {
	case models.VerdictPositive:
		return 1
	case models.VerdictNeutral:
		return 0
	default:
		return -1
	}
}

func negativeScore(s *models.Sentiment) int {
	if s == nil {
		return 0
	}
	switch s.Verdict {
	case models.VerdictNegative:
		return 1
	case models.VerdictNeutral:
		return 0
	default:
		return -1
	}
}
