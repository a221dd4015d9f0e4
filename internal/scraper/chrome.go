package scraper

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

// ChromeFetcher renders pages in headless Chrome, for listings that need JavaScript.
type ChromeFetcher struct {
	opts    FetchOptions
	limiter *rate.Limiter
}

func NewChromeFetcher(opts FetchOptions) *ChromeFetcher {
	opts = opts.withDefaults()
	return &ChromeFetcher{opts: opts, limiter: opts.limiter()}
}

func (f *ChromeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := checkURL(pageURL, f.opts.AllowedDomains); err != nil {
		return "", err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(f.opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, f.opts.Timeout)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render URL %s: %w", pageURL, err)
	}
	return html, nil
}
