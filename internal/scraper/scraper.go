package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/smart-shopper/internal/config"
	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/util"
)

const (
	flipkartBaseURL = "https://www.flipkart.com"
	amazonBaseURL   = "https://www.amazon.in"

	// maxReviews is how many review texts are taken from a product page.
	maxReviews = 5
	// missingDiscount is reported when a listing shows no discount.
	missingDiscount = "0% off"
)

// Marketplace searches one source and reads its product reviews.
type Marketplace interface {
	Source() models.Source
	Search(ctx context.Context, req models.SearchRequest) ([]models.Offer, error)
	Reviews(ctx context.Context, detailURL string) ([]string, error)
}

// Client holds the in-process marketplace scrapers.
type Client struct {
	fetcher Fetcher
	markets map[models.Source]Marketplace
}

// New builds the scrapers with the fetcher selected by cfg.Renderer.
func New(cfg *config.Config) (*Client, error) {
	opts := FetchOptions{
		AllowedDomains: cfg.AllowedDomains,
		RatePerSecond:  cfg.ScrapeRatePerSecond,
		Timeout:        cfg.RequestTimeout,
	}

	var fetcher Fetcher
	switch cfg.Renderer {
	case config.RendererColly, "":
		fetcher = NewCollyFetcher(opts)
	case config.RendererHTTP:
		fetcher = NewHTTPFetcher(opts)
	case config.RendererChromedp:
		fetcher = NewChromeFetcher(opts)
	case config.RendererPlaywright:
		fetcher = NewPlaywrightFetcher(opts)
	default:
		return nil, fmt.Errorf("unknown renderer %q", cfg.Renderer)
	}

	slog.Info("Scraper initialized", "renderer", cfg.Renderer, "ratePerSecond", opts.RatePerSecond)
	return NewWithFetcher(fetcher, LoadConfig(cfg.SelectorsConfigPath)), nil
}

// NewWithFetcher builds the scrapers around an existing fetcher.
func NewWithFetcher(fetcher Fetcher, sel SelectorConfig) *Client {
	return &Client{
		fetcher: fetcher,
		markets: map[models.Source]Marketplace{
			models.SourceFlipkart: &Flipkart{fetcher: fetcher, sel: sel.Flipkart},
			models.SourceAmazon:   &Amazon{fetcher: fetcher, sel: sel.Amazon},
		},
	}
}

// Marketplace returns the scraper for src.
func (c *Client) Marketplace(src models.Source) (Marketplace, error) {
	m, ok := c.markets[src]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownSource, src)
	}
	return m, nil
}

// Close releases the fetcher's browser, if it holds one.
func (c *Client) Close() error {
	if closer, ok := c.fetcher.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// BuildSearchURL returns the search results URL for one page of a source.
// Sentiment modes are not understood by sources and fall back to relevance.
func BuildSearchURL(src models.Source, query string, sort models.SortMode, page int) (string, error) {
	q := url.QueryEscape(strings.Join(strings.Fields(query), " "))
	sort = sort.SourceSort()

	var b strings.Builder
	switch src {
	case models.SourceFlipkart:
		b.WriteString(flipkartBaseURL + "/search?q=" + q)
		switch sort {
		case models.SortPopularity:
			b.WriteString("&sort=popularity")
		case models.SortPriceLowHigh:
			b.WriteString("&sort=price_asc")
		case models.SortPriceHighLow:
			b.WriteString("&sort=price_desc")
		case models.SortNewest:
			b.WriteString("&sort=recency_desc")
		}
	case models.SourceAmazon:
		b.WriteString(amazonBaseURL + "/s?k=" + q)
		switch sort {
		case models.SortPopularity:
			b.WriteString("&s=exact-aware-popularity-rank")
		case models.SortPriceLowHigh:
			b.WriteString("&s=price-asc-rank")
		case models.SortPriceHighLow:
			b.WriteString("&s=price-desc-rank")
		case models.SortNewest:
			b.WriteString("&s=date-desc-rank")
		}
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnknownSource, src)
	}

	if page > 1 {
		b.WriteString("&page=" + strconv.Itoa(page))
	}
	return b.String(), nil
}

func fetchDocument(ctx context.Context, fetcher Fetcher, pageURL string) (*goquery.Document, error) {
	html, err := fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// parseListing extracts one offer from a listing card. Cards missing a name,
// price, link or image are skipped.
func parseListing(s *goquery.Selection, sel ListingSelectors, src models.Source, base string) (models.Offer, bool) {
	nameSel := s.Find(sel.Name).First()
	priceSel := s.Find(sel.Price).First()
	linkSel := s.Find(sel.URL).First()
	imgSel := s.Find(sel.Image).First()
	if nameSel.Length() == 0 || priceSel.Length() == 0 || linkSel.Length() == 0 || imgSel.Length() == 0 {
		return models.Offer{}, false
	}

	href, _ := linkSel.Attr("href")
	detailURL := util.AbsoluteURL(base, strings.TrimSpace(href))
	if normalized, err := util.NormalizeURL(detailURL); err == nil {
		detailURL = normalized
	}
	img, _ := imgSel.Attr("src")

	offer := models.Offer{
		Name:          strings.TrimSpace(nameSel.Text()),
		Source:        src,
		DisplayPrice:  strings.TrimSpace(priceSel.Text()),
		DetailURL:     detailURL,
		ImageURL:      img,
		DiscountLabel: missingDiscount,
	}
	if offer.Name == "" {
		return models.Offer{}, false
	}
	offer.NumericPrice = util.NormalizePrice(offer.DisplayPrice)

	if sel.Discount != "" {
		if d := strings.TrimSpace(s.Find(sel.Discount).First().Text()); d != "" {
			offer.DiscountLabel = d
		}
	}
	return offer, true
}

func firstTexts(sel *goquery.Selection, limit int) []string {
	var out []string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
		return true
	})
	return out
}

var errNoSelectors = errors.New("no selectors configured")
