package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pauljones0/smart-shopper/internal/models"
)

type fakeFetcher struct {
	pages map[string]string
	urls  []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	f.urls = append(f.urls, pageURL)
	html, ok := f.pages[pageURL]
	if !ok {
		return "", errors.New("not found: " + pageURL)
	}
	return html, nil
}

func TestBuildSearchURL(t *testing.T) {
	tests := []struct {
		src   models.Source
		query string
		sort  models.SortMode
		page  int
		want  string
	}{
		{models.SourceFlipkart, "iphone 15", models.SortRelevance, 1, "https://www.flipkart.com/search?q=iphone+15"},
		{models.SourceFlipkart, "  iphone   15 ", models.SortPriceLowHigh, 2, "https://www.flipkart.com/search?q=iphone+15&sort=price_asc&page=2"},
		{models.SourceFlipkart, "tv", models.SortNewest, 1, "https://www.flipkart.com/search?q=tv&sort=recency_desc"},
		{models.SourceFlipkart, "tv", models.SortSentimentHigh, 1, "https://www.flipkart.com/search?q=tv"},
		{models.SourceAmazon, "tv", models.SortPopularity, 1, "https://www.amazon.in/s?k=tv&s=exact-aware-popularity-rank"},
		{models.SourceAmazon, "tv", models.SortPriceHighLow, 3, "https://www.amazon.in/s?k=tv&s=price-desc-rank&page=3"},
		{models.SourceAmazon, "a&b", models.SortRelevance, 1, "https://www.amazon.in/s?k=a%26b"},
	}
	for _, tt := range tests {
		got, err := BuildSearchURL(tt.src, tt.query, tt.sort, tt.page)
		if err != nil {
			t.Fatalf("BuildSearchURL(%s, %q) error: %v", tt.src, tt.query, err)
		}
		if got != tt.want {
			t.Errorf("BuildSearchURL(%s, %q, %s, %d) = %s, want %s", tt.src, tt.query, tt.sort, tt.page, got, tt.want)
		}
	}

	if _, err := BuildSearchURL("ebay", "tv", models.SortRelevance, 1); !errors.Is(err, models.ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

const flipkartListingHTML = `<html><body>
<div class="_1sdMkc LFEi7Z">
  <a class="WKTcLC BwBZTg">Cotton Shirt</a>
  <div class="Nx9bqj">₹499</div>
  <a class="rPDeLR" href="/shirt/p/itm1?pid=S1&lid=LST1&marketplace=FLIPKART">link</a>
  <img class="_53J4C-" src="https://img.example/shirt.jpg">
  <div class="UkUFwK"><span>60% off</span></div>
</div>
<div class="_1sdMkc LFEi7Z">
  <a class="WKTcLC BwBZTg">No Image Shirt</a>
  <div class="Nx9bqj">₹299</div>
  <a class="rPDeLR" href="/noimg/p/itm2">link</a>
</div>
<div class="_1sdMkc LFEi7Z">
  <a class="WKTcLC BwBZTg">Linen Shirt</a>
  <div class="Nx9bqj">₹1,299</div>
  <a class="rPDeLR" href="/linen/p/itm3">link</a>
  <img class="_53J4C-" src="https://img.example/linen.jpg">
</div>
<div class="slAVV4">
  <a class="wjcEIp">Phone Case</a>
  <div class="Nx9bqj">₹199</div>
  <a class="VJA3rP" href="/case/p/itm4">link</a>
  <img class="DByuf4" src="https://img.example/case.jpg">
</div>
</body></html>`

func TestFlipkartSearch(t *testing.T) {
	pageURL := "https://www.flipkart.com/search?q=shirt&page=2"
	fetcher := &fakeFetcher{pages: map[string]string{pageURL: flipkartListingHTML}}
	client := NewWithFetcher(fetcher, DefaultSelectors())
	m, err := client.Marketplace(models.SourceFlipkart)
	if err != nil {
		t.Fatalf("Marketplace: %v", err)
	}

	offers, err := m.Search(context.Background(), models.SearchRequest{Query: "shirt", Source: models.SourceFlipkart, Page: 2, BatchSize: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// First set matched 3 cards, raising the cap from 2 to 3.
	if len(offers) != 3 {
		t.Fatalf("expected 3 offers, got %d: %+v", len(offers), offers)
	}
	first := offers[0]
	if first.Name != "Cotton Shirt" || first.DisplayPrice != "₹499" || first.NumericPrice != 499 {
		t.Errorf("unexpected first offer %+v", first)
	}
	if first.DetailURL != "https://www.flipkart.com/shirt/p/itm1?pid=S1" {
		t.Errorf("expected absolute, normalized URL, got %s", first.DetailURL)
	}
	if first.DiscountLabel != "60% off" || first.Source != models.SourceFlipkart {
		t.Errorf("unexpected discount/source %+v", first)
	}
	if offers[1].Name != "Linen Shirt" || offers[1].DiscountLabel != "0% off" {
		t.Errorf("expected incomplete card skipped and default discount, got %+v", offers[1])
	}
	if offers[2].Name != "Phone Case" {
		t.Errorf("expected second selector set to contribute, got %+v", offers[2])
	}
}

func TestFlipkartSearch_FetchError(t *testing.T) {
	client := NewWithFetcher(&fakeFetcher{}, DefaultSelectors())
	m, _ := client.Marketplace(models.SourceFlipkart)
	if _, err := m.Search(context.Background(), models.SearchRequest{Query: "x", BatchSize: 10}); err == nil {
		t.Error("expected fetch error to propagate")
	}
}

const amazonListingHTML = `<html><body>
<div class="a-section a-spacing-base">
  <h2 class="a-text-normal"><span>Wireless Mouse</span></h2>
  <span class="a-price"><span class="a-offscreen">₹699</span></span>
  <a class="a-link-normal" href="/Wireless-Mouse/dp/B01?ref=sr_1_1&qid=123">link</a>
  <img class="s-image" src="https://m.media-amazon.com/mouse.jpg">
  <div class="a-row"><span class="a-price">x</span><span>(45% off)</span></div>
</div>
<div class="a-section a-spacing-base">
  <h2 class="a-text-normal"><span>Keyboard</span></h2>
  <span class="a-price"><span class="a-offscreen">₹1,099</span></span>
  <a class="a-link-normal" href="/Keyboard/dp/B02">link</a>
  <img class="s-image" src="https://m.media-amazon.com/kb.jpg">
</div>
<div class="a-section a-spacing-base">
  <h2 class="a-text-normal"><span>Monitor</span></h2>
  <span class="a-price"><span class="a-offscreen">₹9,999</span></span>
  <a class="a-link-normal" href="/Monitor/dp/B03">link</a>
  <img class="s-image" src="https://m.media-amazon.com/mon.jpg">
</div>
</body></html>`

func TestAmazonSearch(t *testing.T) {
	pageURL := "https://www.amazon.in/s?k=mouse&s=price-asc-rank"
	fetcher := &fakeFetcher{pages: map[string]string{pageURL: amazonListingHTML}}
	client := NewWithFetcher(fetcher, DefaultSelectors())
	m, _ := client.Marketplace(models.SourceAmazon)

	offers, err := m.Search(context.Background(), models.SearchRequest{Query: "mouse", Sort: models.SortPriceLowHigh, Page: 1, BatchSize: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("expected batch size to cap results at 2, got %d", len(offers))
	}
	if offers[0].DetailURL != "https://www.amazon.in/Wireless-Mouse/dp/B01" {
		t.Errorf("unexpected URL %s", offers[0].DetailURL)
	}
	if offers[0].DiscountLabel != "(45% off)" || offers[0].DiscountPercent() != 45 {
		t.Errorf("unexpected discount %q", offers[0].DiscountLabel)
	}
	if offers[1].DiscountLabel != "0% off" || offers[1].NumericPrice != 1099 {
		t.Errorf("unexpected second offer %+v", offers[1])
	}
}

func TestReviews(t *testing.T) {
	flipkartPage := `<div class="RcXBOT">5Great phone READ MORE</div><div class="RcXBOT">Battery ok</div>`
	amazonFallback := `<html><body>
<span class="review-text">Works well</span><span class="review-text"> </span>
</body></html>`
	amazonJSONLD := `<html><head><script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"Mouse","review":[{"@type":"Review","reviewBody":"Clicky"},{"@type":"Review","reviewBody":"Smooth"}]}
</script></head><body></body></html>`
	empty := `<html><body><p>no reviews yet</p></body></html>`

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.flipkart.com/p/1": flipkartPage,
		"https://www.amazon.in/dp/A":   amazonFallback,
		"https://www.amazon.in/dp/B":   amazonJSONLD,
		"https://www.amazon.in/dp/C":   empty,
	}}
	client := NewWithFetcher(fetcher, DefaultSelectors())
	flipkart, _ := client.Marketplace(models.SourceFlipkart)
	amazon, _ := client.Marketplace(models.SourceAmazon)

	tests := []struct {
		m    Marketplace
		url  string
		want []string
	}{
		{flipkart, "https://www.flipkart.com/p/1", []string{"5Great phone READ MORE", "Battery ok"}},
		{amazon, "https://www.amazon.in/dp/A", []string{"Works well"}},
		{amazon, "https://www.amazon.in/dp/B", []string{"Clicky", "Smooth"}},
		{amazon, "https://www.amazon.in/dp/C", nil},
	}
	for _, tt := range tests {
		got, err := tt.m.Reviews(context.Background(), tt.url)
		if err != nil {
			t.Fatalf("Reviews(%s): %v", tt.url, err)
		}
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("Reviews(%s) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestReviews_CappedAtFive(t *testing.T) {
	var b strings.Builder
	for range 8 {
		b.WriteString(`<div class="RcXBOT">good</div>`)
	}
	fetcher := &fakeFetcher{pages: map[string]string{"https://www.flipkart.com/p/2": b.String()}}
	m, _ := NewWithFetcher(fetcher, DefaultSelectors()).Marketplace(models.SourceFlipkart)

	got, err := m.Reviews(context.Background(), "https://www.flipkart.com/p/2")
	if err != nil {
		t.Fatalf("Reviews: %v", err)
	}
	if len(got) != maxReviews {
		t.Errorf("expected %d reviews, got %d", maxReviews, len(got))
	}
}

func TestMarketplace_Unknown(t *testing.T) {
	client := NewWithFetcher(&fakeFetcher{}, DefaultSelectors())
	if _, err := client.Marketplace("ebay"); !errors.Is(err, models.ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a user agent")
		}
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in Latin-1
		w.Write([]byte("<p>caf\xe9</p>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetchOptions{AllowedDomains: []string{"127.0.0.1"}, RatePerSecond: 1000})

	html, err := f.Fetch(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if html != "<p>café</p>" {
		t.Errorf("expected UTF-8 decoded body, got %q", html)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error on 404")
	}
}

func TestCollyFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<div class="RcXBOT">ok</div>`))
	}))
	defer srv.Close()

	f := NewCollyFetcher(FetchOptions{AllowedDomains: []string{"127.0.0.1"}, RatePerSecond: 1000})

	html, err := f.Fetch(context.Background(), srv.URL+"/reviews")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(html, "RcXBOT") {
		t.Errorf("unexpected body %q", html)
	}
	// Revisiting the same URL must work with a fresh collector per call.
	if _, err := f.Fetch(context.Background(), srv.URL+"/reviews"); err != nil {
		t.Errorf("second fetch: %v", err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error on 404")
	}
}

func TestFetchers_RejectDisallowedURLs(t *testing.T) {
	opts := FetchOptions{AllowedDomains: []string{"www.flipkart.com"}, RatePerSecond: 1000}
	fetchers := map[string]Fetcher{
		"http":       NewHTTPFetcher(opts),
		"colly":      NewCollyFetcher(opts),
		"chromedp":   NewChromeFetcher(opts),
		"playwright": NewPlaywrightFetcher(opts),
	}
	for name, f := range fetchers {
		if _, err := f.Fetch(context.Background(), "https://evil.example/x"); err == nil || !strings.Contains(err.Error(), "allowlist") {
			t.Errorf("%s: expected allowlist error, got %v", name, err)
		}
		if _, err := f.Fetch(context.Background(), "file:///etc/passwd"); err == nil {
			t.Errorf("%s: expected scheme error", name)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	if got := LoadConfig(filepath.Join(dir, "missing.json")); len(got.Flipkart.Listings) != 3 {
		t.Errorf("expected embedded selectors, got %+v", got.Flipkart)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"flipkart":{"listings":[]}}`), 0o600)
	if got := LoadConfig(bad); got.Amazon.Listing.Container != "div.a-section.a-spacing-base" {
		t.Errorf("expected invalid override to fall back, got %+v", got.Amazon)
	}

	override := filepath.Join(dir, "override.json")
	os.WriteFile(override, []byte(`{
  "flipkart": {"listings": [{"container": "li.card", "name": ".n", "price": ".p", "url": "a", "image": "img"}], "reviews": ".r"},
  "amazon": {"listing": {"container": "div.x", "name": ".n", "price": ".p", "url": "a", "image": "img"}}
}`), 0o600)
	got := LoadConfig(override)
	if len(got.Flipkart.Listings) != 1 || got.Flipkart.Listings[0].Container != "li.card" {
		t.Errorf("expected override selectors, got %+v", got.Flipkart)
	}
}

func TestEmbeddedSelectorsMatchDefaults(t *testing.T) {
	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err != nil {
		t.Fatalf("reading embedded selectors: %v", err)
	}
	sel, err := LoadSelectorsFromBytes(data)
	if err != nil {
		t.Fatalf("parsing embedded selectors: %v", err)
	}
	def := DefaultSelectors()
	if len(sel.Flipkart.Listings) != len(def.Flipkart.Listings) || sel.Amazon.Listing != def.Amazon.Listing {
		t.Errorf("embedded selectors drifted from defaults")
	}
}
