package session

import (
	"context"

	"github.com/pauljones0/smart-shopper/internal/enricher"
	"github.com/pauljones0/smart-shopper/internal/models"
)

// SourceSearcher fetches one page of offers from one source.
type SourceSearcher interface {
	SearchSource(ctx context.Context, req models.SearchRequest) ([]models.Offer, error)
}

// Enricher attaches sentiment to offers, reporting progress through the sink.
type Enricher interface {
	Run(ctx context.Context, offers []models.Offer, sink enricher.Sink)
}

// RecommendationNotifier is told about the cheapest offers once an enrichment run completes.
type RecommendationNotifier interface {
	NotifyRecommendations(ctx context.Context, query string, offers []models.Offer) error
}
