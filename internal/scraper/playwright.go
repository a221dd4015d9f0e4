package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/time/rate"
)

// PlaywrightFetcher renders pages with a shared headless Chromium launched on first use.
type PlaywrightFetcher struct {
	opts    FetchOptions
	limiter *rate.Limiter

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewPlaywrightFetcher(opts FetchOptions) *PlaywrightFetcher {
	opts = opts.withDefaults()
	return &PlaywrightFetcher{opts: opts, limiter: opts.limiter()}
}

func (f *PlaywrightFetcher) ensureBrowser() (playwright.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}
	f.pw = pw
	f.browser = browser
	return browser, nil
}

func (f *PlaywrightFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := checkURL(pageURL, f.opts.AllowedDomains); err != nil {
		return "", err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	browser, err := f.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(f.opts.UserAgent),
	})
	if err != nil {
		return "", fmt.Errorf("opening page: %w", err)
	}
	defer page.Close()

	// playwright-go has no context support; stop early if the caller already gave up.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(f.opts.Timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("failed to render URL %s: %w", pageURL, err)
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("reading content of %s: %w", pageURL, err)
	}
	return html, nil
}

func (f *PlaywrightFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	if stopErr := f.pw.Stop(); err == nil {
		err = stopErr
	}
	f.browser, f.pw = nil, nil
	return err
}
