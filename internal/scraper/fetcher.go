package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// maxPageBytes caps how much of a page is read into memory.
const maxPageBytes = 8 << 20

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

type FetchOptions struct {
	// AllowedDomains restricts which hosts may be fetched. Empty allows any host.
	AllowedDomains []string
	RatePerSecond  float64
	Timeout        time.Duration
	UserAgent      string
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 2
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	return o
}

func (o FetchOptions) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(o.RatePerSecond), 1)
}

// checkURL rejects non-http schemes and hosts outside the allowlist.
func checkURL(rawURL string, allowed []string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL %s: %w", rawURL, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %s: only http and https allowed", parsedURL.Scheme)
	}

	if len(allowed) == 0 {
		return nil
	}
	if hostname := parsedURL.Hostname(); !slices.Contains(allowed, hostname) {
		return fmt.Errorf("security violation: URL hostname %s is not in allowlist", hostname)
	}
	return nil
}

// HTTPFetcher issues plain GET requests and decodes the body to UTF-8.
type HTTPFetcher struct {
	httpClient *http.Client
	opts       FetchOptions
	limiter    *rate.Limiter
}

func NewHTTPFetcher(opts FetchOptions) *HTTPFetcher {
	opts = opts.withDefaults()
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		limiter:    opts.limiter(),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := checkURL(pageURL, f.opts.AllowedDomains); err != nil {
		return "", err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for URL %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")

	res, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL %s: status code %d", pageURL, res.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(res.Body, maxPageBytes), res.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", pageURL, err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	return string(data), nil
}
