package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pauljones0/smart-shopper/internal/backend"
	"github.com/pauljones0/smart-shopper/internal/models"
)

type stubReviews struct {
	reviews []string
	err     error
	calls   atomic.Int32
}

func (s *stubReviews) FetchReviews(ctx context.Context, detailURL string, src models.Source) ([]string, error) {
	s.calls.Add(1)
	return s.reviews, s.err
}

type stubClassifier struct {
	verdicts []models.Sentiment
	err      error
	got      []Entry
}

func (s *stubClassifier) Classify(ctx context.Context, entries []Entry) ([]models.Sentiment, error) {
	s.got = entries
	return s.verdicts, s.err
}

type memCache struct {
	mu   sync.Mutex
	data map[string]models.Sentiment
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string]models.Sentiment{}} }

func (m *memCache) Get(ctx context.Context, key string) (models.Sentiment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[key]
	return s, ok, nil
}

func (m *memCache) Set(ctx context.Context, key string, s models.Sentiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = s
	m.sets++
	return nil
}

var phone = models.Offer{Name: "Phone", Source: models.SourceFlipkart, DisplayPrice: "₹100", DetailURL: "https://www.flipkart.com/p/1"}

func TestAnalyzer_FirstVerdictWins(t *testing.T) {
	reviews := &stubReviews{reviews: []string{"5Great phone READ MORE", "1Terrible"}}
	cls := &stubClassifier{verdicts: []models.Sentiment{
		{Verdict: models.VerdictPositive, Confidence: 91},
		{Verdict: models.VerdictNegative, Confidence: 88},
	}}
	a := NewAnalyzer(reviews, cls, nil, nil)

	s, err := a.Analyze(context.Background(), phone)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if s.Verdict != models.VerdictPositive || s.Confidence != 91 {
		t.Errorf("expected first verdict, got %+v", s)
	}
	if len(cls.got) != 2 || cls.got[0].Text != "Great phone" || cls.got[0].Subject != "Phone" {
		t.Errorf("unexpected classifier input %+v", cls.got)
	}
}

func TestAnalyzer_NoReviews(t *testing.T) {
	tests := []struct {
		name    string
		reviews []string
	}{
		{"empty list", nil},
		{"only boilerplate", []string{"5Awesome", "  READ MORE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := &stubClassifier{}
			a := NewAnalyzer(&stubReviews{reviews: tt.reviews}, cls, nil, nil)
			s, err := a.Analyze(context.Background(), phone)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if s != models.NoReviewsSentiment() {
				t.Errorf("expected NoReviews, got %+v", s)
			}
			if cls.got != nil {
				t.Error("classifier should not be called without reviews")
			}
		})
	}
}

func TestAnalyzer_ErrorStages(t *testing.T) {
	boom := errors.New("boom")

	a := NewAnalyzer(&stubReviews{err: boom}, &stubClassifier{}, nil, nil)
	_, err := a.Analyze(context.Background(), phone)
	var ee *models.EnrichmentError
	if !errors.As(err, &ee) || ee.Stage != "reviews" || !errors.Is(err, boom) || !errors.Is(err, models.ErrEnrichment) {
		t.Errorf("expected reviews-stage enrichment error, got %v", err)
	}

	a = NewAnalyzer(&stubReviews{reviews: []string{"fine"}}, &stubClassifier{err: boom}, nil, nil)
	_, err = a.Analyze(context.Background(), phone)
	if !errors.As(err, &ee) || ee.Stage != "classify" || ee.Identity != phone.Identity() {
		t.Errorf("expected classify-stage enrichment error, got %v", err)
	}
}

func TestAnalyzer_Cache(t *testing.T) {
	reviews := &stubReviews{reviews: []string{"ok"}}
	cls := &stubClassifier{verdicts: []models.Sentiment{{Verdict: models.VerdictNeutral, Confidence: 60}}}
	cache := newMemCache()
	a := NewAnalyzer(reviews, cls, cache, nil)

	for range 3 {
		s, err := a.Analyze(context.Background(), phone)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if s.Verdict != models.VerdictNeutral {
			t.Errorf("unexpected verdict %+v", s)
		}
	}
	if reviews.calls.Load() != 1 {
		t.Errorf("expected one review fetch, got %d", reviews.calls.Load())
	}
	if cache.sets != 1 {
		t.Errorf("expected one cache write, got %d", cache.sets)
	}
	if _, ok := cache.data[CacheKey(phone)]; !ok {
		t.Errorf("expected verdict under %q", CacheKey(phone))
	}
}

func TestAnalyzer_FailureNotCached(t *testing.T) {
	cache := newMemCache()
	a := NewAnalyzer(&stubReviews{err: errors.New("down")}, &stubClassifier{}, cache, nil)
	if _, err := a.Analyze(context.Background(), phone); err == nil {
		t.Fatal("expected error")
	}
	if len(cache.data) != 0 {
		t.Errorf("failed analysis must not be cached, got %v", cache.data)
	}
}

func TestHTTPClassifier_Classify(t *testing.T) {
	var got []Entry
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze-reviews" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`[
			{"product":"Phone","sentiment_summary":{"overall_sentiment":"Positive","confidence":97.456}},
			{"product":"Phone","sentiment_summary":{"overall_sentiment":"negative","confidence":50.5}}
		]`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(backend.NewClient(srv.URL, time.Second))
	out, err := c.Classify(context.Background(), []Entry{{"Phone", "good"}, {"Phone", "bad"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(got) != 2 || got[1].Text != "bad" {
		t.Errorf("unexpected payload %+v", got)
	}
	want := []models.Sentiment{
		{Verdict: models.VerdictPositive, Confidence: 97},
		{Verdict: models.VerdictNegative, Confidence: 51},
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("result %d: expected %+v, got %+v", i, want[i], out[i])
		}
	}
}

func TestHTTPClassifier_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"product":"P","sentiment_summary":{"overall_sentiment":"Neutral","confidence":40}}]`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(backend.NewClient(srv.URL, time.Second))
	c.backoff = time.Millisecond
	out, err := c.Classify(context.Background(), []Entry{{"P", "meh"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if calls.Load() != 2 || out[0].Verdict != models.VerdictNeutral {
		t.Errorf("expected success on second call, calls=%d out=%+v", calls.Load(), out)
	}
}

func TestHTTPClassifier_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(backend.NewClient(srv.URL, time.Second))
	c.backoff = time.Millisecond
	if _, err := c.Classify(context.Background(), []Entry{{"P", "x"}}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestHTTPClassifier_LengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(backend.NewClient(srv.URL, time.Second))
	if _, err := c.Classify(context.Background(), []Entry{{"P", "x"}}); err == nil {
		t.Fatal("expected error for short response")
	}
}

type fakeGenerator struct {
	responses []string
	calls     int
	prompt    string
}

func (f *fakeGenerator) generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	i := min(f.calls, len(f.responses)-1)
	f.calls++
	return f.responses[i], nil
}

func TestGeminiClassifier_Classify(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"```json\n[{\"index\":1,\"verdict\":\"Negative\",\"confidence\":140},{\"index\":0,\"verdict\":\"Positive\",\"confidence\":80}]\n```"}}
	c := newGeminiClassifier(gen)

	out, err := c.Classify(context.Background(), []Entry{{"Phone", "love it"}, {"Phone", "hate it"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if out[0].Verdict != models.VerdictPositive || out[0].Confidence != 80 {
		t.Errorf("unexpected first verdict %+v", out[0])
	}
	if out[1].Verdict != models.VerdictNegative || out[1].Confidence != 100 {
		t.Errorf("expected clamped second verdict, got %+v", out[1])
	}
	if gen.calls != 1 {
		t.Errorf("expected one call, got %d", gen.calls)
	}
}

func TestGeminiClassifier_RetriesMalformedOutput(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		"not json",
		`[{"index":0,"verdict":"Neutral","confidence":55}]`,
	}}
	c := newGeminiClassifier(gen)
	c.backoff = time.Millisecond

	out, err := c.Classify(context.Background(), []Entry{{"Phone", "fine"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if gen.calls != 2 || out[0].Verdict != models.VerdictNeutral {
		t.Errorf("expected recovery on retry, calls=%d out=%+v", gen.calls, out)
	}
}

func TestParseGeminiVerdicts_Missing(t *testing.T) {
	if _, err := parseGeminiVerdicts(`[{"index":0,"verdict":"Positive","confidence":1}]`, 2); err == nil {
		t.Error("expected error when a review is missing")
	}
	if _, err := parseGeminiVerdicts(`[{"index":0,"verdict":"Ecstatic","confidence":1}]`, 1); err == nil {
		t.Error("expected error for unknown verdict")
	}
}
