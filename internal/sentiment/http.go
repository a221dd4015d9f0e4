package sentiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pauljones0/smart-shopper/internal/backend"
	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/util"
)

// HTTPClassifier calls the sentiment service's /analyze-reviews endpoint.
type HTTPClassifier struct {
	client     *backend.Client
	maxRetries int
	backoff    time.Duration
}

func NewHTTPClassifier(client *backend.Client) *HTTPClassifier {
	return &HTTPClassifier{client: client, maxRetries: 2, backoff: time.Second}
}

type analyzedReview struct {
	Product          string `json:"product"`
	SentimentSummary struct {
		OverallSentiment string  `json:"overall_sentiment"`
		Confidence       float64 `json:"confidence"`
	} `json:"sentiment_summary"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, entries []Entry) ([]models.Sentiment, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	var resp []analyzedReview
	err := util.RetryWithBackoff(ctx, c.maxRetries, c.backoff, func(attempt int) error {
		resp = nil
		err := c.client.Post(ctx, "/analyze-reviews", entries, &resp)
		var se *backend.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return util.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("analyze reviews: %w", err)
	}
	if len(resp) != len(entries) {
		return nil, fmt.Errorf("analyze reviews: got %d results for %d entries", len(resp), len(entries))
	}

	out := make([]models.Sentiment, len(resp))
	for i, r := range resp {
		verdict, err := models.ParseVerdict(r.SentimentSummary.OverallSentiment)
		if err != nil {
			return nil, fmt.Errorf("analyze reviews: entry %d: %w", i, err)
		}
		out[i] = models.Sentiment{
			Verdict:    verdict,
			Confidence: clampConfidence(int(math.Round(r.SentimentSummary.Confidence))),
		}
	}
	return out, nil
}
