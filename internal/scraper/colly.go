package scraper

import (
	"context"
	"fmt"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// CollyFetcher fetches pages with a fresh colly collector per request.
type CollyFetcher struct {
	opts    FetchOptions
	limiter *rate.Limiter
}

func NewCollyFetcher(opts FetchOptions) *CollyFetcher {
	opts = opts.withDefaults()
	return &CollyFetcher{opts: opts, limiter: opts.limiter()}
}

func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := checkURL(pageURL, f.opts.AllowedDomains); err != nil {
		return "", err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxPageBytes),
	)
	if len(f.opts.AllowedDomains) > 0 {
		c.AllowedDomains = f.opts.AllowedDomains
	}
	c.DetectCharset = true
	c.SetRequestTimeout(f.opts.Timeout)

	var body []byte
	var fetchErr error
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-IN,en;q=0.9")
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("failed to fetch URL %s: status code %d: %w", pageURL, r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("failed to fetch URL %s: %w", pageURL, err)
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	return string(body), nil
}
