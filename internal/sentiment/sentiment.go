package sentiment

import (
	"context"

	"github.com/pauljones0/smart-shopper/internal/models"
)

// Entry is one review handed to a classifier.
type Entry struct {
	Subject string `json:"product"`
	Text    string `json:"review"`
}

// Classifier returns one sentiment per entry, in the same order.
type Classifier interface {
	Classify(ctx context.Context, entries []Entry) ([]models.Sentiment, error)
}

// ReviewFetcher returns the raw review texts of a product page.
type ReviewFetcher interface {
	FetchReviews(ctx context.Context, detailURL string, src models.Source) ([]string, error)
}

// VerdictCache stores finished verdicts keyed by CacheKey.
type VerdictCache interface {
	Get(ctx context.Context, key string) (models.Sentiment, bool, error)
	Set(ctx context.Context, key string, s models.Sentiment) error
}

func clampConfidence(c int) int {
	return min(max(c, 0), 100)
}
