package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pauljones0/smart-shopper/internal/backend"
	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/scraper"
	"github.com/pauljones0/smart-shopper/internal/session"
	"github.com/pauljones0/smart-shopper/internal/util"
	"github.com/pauljones0/smart-shopper/internal/validator"
)

// Gateway searches sources and fetches product reviews. Calls are never
// retried here; a failed search is reported as a SourceUnavailableError.
type Gateway interface {
	SearchSource(ctx context.Context, req models.SearchRequest) ([]models.Offer, error)
	FetchReviews(ctx context.Context, detailURL string, src models.Source) ([]string, error)
}

var (
	_ session.SourceSearcher = (*HTTPGateway)(nil)
	_ session.SourceSearcher = (*ScraperGateway)(nil)
	_ Gateway                = (*HTTPGateway)(nil)
	_ Gateway                = (*ScraperGateway)(nil)
)

// product is the wire form of an offer used by the scraping service.
type product struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	URL      string `json:"url"`
	Img      string `json:"img"`
	Discount string `json:"discount"`
	Platform string `json:"platform"`
}

func (p product) offer(src models.Source) models.Offer {
	if p.Platform != "" {
		if parsed, err := models.ParseSource(p.Platform); err == nil {
			src = parsed
		}
	}
	return models.Offer{
		Name:          p.Name,
		Source:        src,
		DisplayPrice:  p.Price,
		NumericPrice:  util.NormalizePrice(p.Price),
		DiscountLabel: p.Discount,
		DetailURL:     p.URL,
		ImageURL:      p.Img,
	}
}

// HTTPGateway calls the scraping service over HTTP.
type HTTPGateway struct {
	client    *backend.Client
	validator *validator.Validator
	logger    *slog.Logger
}

func NewHTTPGateway(client *backend.Client, v *validator.Validator, logger *slog.Logger) *HTTPGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPGateway{client: client, validator: v, logger: logger.With("component", "gateway", "backend", client.Endpoint())}
}

type scrapeProductsRequest struct {
	Query     string `json:"query"`
	Platform  string `json:"platform"`
	SortBy    string `json:"sort_by"`
	Page      int    `json:"page"`
	BatchSize int    `json:"batch_size"`
}

func (g *HTTPGateway) SearchSource(ctx context.Context, req models.SearchRequest) ([]models.Offer, error) {
	payload := scrapeProductsRequest{
		Query:     util.EncodeQuery(req.Query),
		Platform:  string(req.Source),
		SortBy:    string(req.Sort.SourceSort()),
		Page:      max(req.Page, 1),
		BatchSize: req.BatchSize,
	}

	var resp struct {
		Products []product `json:"products"`
	}
	if err := g.client.Post(ctx, "/scrape-products", payload, &resp); err != nil {
		return nil, &models.SourceUnavailableError{Source: req.Source, Err: err}
	}

	offers := make([]models.Offer, 0, len(resp.Products))
	for _, p := range resp.Products {
		offers = append(offers, p.offer(req.Source))
	}
	return keepValid(g.validator, g.logger, offers), nil
}

func (g *HTTPGateway) FetchReviews(ctx context.Context, detailURL string, src models.Source) ([]string, error) {
	payload := map[string]string{"url": detailURL, "platform": string(src)}
	var resp struct {
		Reviews []string `json:"reviews"`
	}
	if err := g.client.Post(ctx, "/scrape-reviews", payload, &resp); err != nil {
		return nil, fmt.Errorf("fetching reviews for %s: %w", detailURL, err)
	}
	return resp.Reviews, nil
}

// ScraperGateway runs the marketplace scrapers in-process.
type ScraperGateway struct {
	scrapers  *scraper.Client
	validator *validator.Validator
	timeout   time.Duration
	logger    *slog.Logger
}

func NewScraperGateway(scrapers *scraper.Client, v *validator.Validator, timeout time.Duration, logger *slog.Logger) *ScraperGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScraperGateway{scrapers: scrapers, validator: v, timeout: timeout, logger: logger.With("component", "gateway", "backend", "in-process")}
}

func (g *ScraperGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *ScraperGateway) SearchSource(ctx context.Context, req models.SearchRequest) ([]models.Offer, error) {
	m, err := g.scrapers.Marketplace(req.Source)
	if err != nil {
		return nil, &models.SourceUnavailableError{Source: req.Source, Err: err}
	}
	req.Page = max(req.Page, 1)

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	offers, err := m.Search(ctx, req)
	if err != nil {
		return nil, &models.SourceUnavailableError{Source: req.Source, Err: err}
	}
	return keepValid(g.validator, g.logger, offers), nil
}

func (g *ScraperGateway) FetchReviews(ctx context.Context, detailURL string, src models.Source) ([]string, error) {
	m, err := g.scrapers.Marketplace(src)
	if err != nil {
		return nil, err
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return m.Reviews(ctx, detailURL)
}

// keepValid drops offers that fail validation instead of failing the page.
func keepValid(v *validator.Validator, logger *slog.Logger, offers []models.Offer) []models.Offer {
	if v == nil {
		return offers
	}
	out := offers[:0]
	for _, o := range offers {
		if err := v.ValidateStruct(o); err != nil {
			logger.Debug("Dropping invalid offer", "name", o.Name, "error", err)
			continue
		}
		out = append(out, o)
	}
	return out
}
