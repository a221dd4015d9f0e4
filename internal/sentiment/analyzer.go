package sentiment

import (
	"context"
	"log/slog"

	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/util"
)

// Analyzer turns an offer's reviews into a single verdict.
type Analyzer struct {
	reviews    ReviewFetcher
	classifier Classifier
	cache      VerdictCache
	logger     *slog.Logger
}

// NewAnalyzer creates an Analyzer. cache may be nil.
func NewAnalyzer(reviews ReviewFetcher, classifier Classifier, cache VerdictCache, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		reviews:    reviews,
		classifier: classifier,
		cache:      cache,
		logger:     logger.With("component", "analyzer"),
	}
}

// CacheKey identifies a product page across searches.
func CacheKey(o models.Offer) string {
	return string(o.Source) + "|" + o.DetailURL
}

// Analyze fetches the offer's reviews and classifies them. An offer without
// reviews gets the NoReviews verdict. The verdict of the first classified
// review is used for the whole offer.
func (a *Analyzer) Analyze(ctx context.Context, offer models.Offer) (models.Sentiment, error) {
	key := CacheKey(offer)
	if a.cache != nil {
		s, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.logger.Warn("Verdict cache lookup failed", "key", key, "error", err)
		} else if ok {
			return s, nil
		}
	}

	s, err := a.analyze(ctx, offer)
	if err != nil {
		return models.Sentiment{}, err
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, s); err != nil {
			a.logger.Warn("Verdict cache store failed", "key", key, "error", err)
		}
	}
	return s, nil
}

func (a *Analyzer) analyze(ctx context.Context, offer models.Offer) (models.Sentiment, error) {
	raw, err := a.reviews.FetchReviews(ctx, offer.DetailURL, offer.Source)
	if err != nil {
		return models.Sentiment{}, &models.EnrichmentError{Identity: offer.Identity(), Stage: "reviews", Err: err}
	}

	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		if text := util.CleanReview(r); text != "" {
			entries = append(entries, Entry{Subject: offer.Name, Text: text})
		}
	}
	if len(entries) == 0 {
		return models.NoReviewsSentiment(), nil
	}

	verdicts, err := a.classifier.Classify(ctx, entries)
	if err != nil {
		return models.Sentiment{}, &models.EnrichmentError{Identity: offer.Identity(), Stage: "classify", Err: err}
	}
	if len(verdicts) == 0 {
		return models.NoReviewsSentiment(), nil
	}
	return verdicts[0], nil
}
