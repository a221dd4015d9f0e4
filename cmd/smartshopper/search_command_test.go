package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/session"
)

type fakeController struct {
	snap      session.Snapshot
	moreCalls int
	maxMore   int
	sortMode  models.SortMode
	waitErr   error
	query     string
}

func (f *fakeController) Search(ctx context.Context, query string) (session.Snapshot, error) {
	f.query = query
	f.snap.Query = query
	f.snap.HasMore = f.maxMore > 0
	return f.snap, nil
}

func (f *fakeController) LoadMore(ctx context.Context) (session.Snapshot, error) {
	f.moreCalls++
	f.snap.HasMore = f.moreCalls < f.maxMore
	return f.snap, nil
}

func (f *fakeController) SetSortMode(mode models.SortMode) (session.Snapshot, error) {
	parsed, err := models.ParseSortMode(string(mode))
	if err != nil {
		return f.snap, err
	}
	f.sortMode = parsed
	f.snap.SortMode = parsed
	return f.snap, nil
}

func (f *fakeController) Snapshot() session.Snapshot { return f.snap }

func (f *fakeController) Wait(ctx context.Context) error { return f.waitErr }

func sampleSnapshot() session.Snapshot {
	offers := []models.Offer{
		{
			Name: "Budget Phone", Source: models.SourceAmazon, DisplayPrice: "₹7,999", NumericPrice: 7999, DiscountLabel: "20% off",
			Sentiment: &models.Sentiment{Verdict: models.VerdictPositive, Confidence: 91},
		},
		{
			Name: "Flagship Phone", Source: models.SourceFlipkart, DisplayPrice: "₹59,999", NumericPrice: 59999, DiscountLabel: "0% off",
			Sentiment: &models.Sentiment{Verdict: models.VerdictNoReviews},
		},
	}
	return session.Snapshot{State: session.StateReady, SortMode: models.SortRelevance, Offers: offers, Recommendations: offers}
}

func TestRunSearch_Table(t *testing.T) {
	c := &fakeController{snap: sampleSnapshot()}
	var out bytes.Buffer

	if err := runSearch(context.Background(), &out, c, "phone", searchOptions{pages: 1, wait: time.Second}); err != nil {
		t.Fatalf("runSearch: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Cheapest picks", "All offers (2, sorted by relevance)", "Budget Phone", "Positive 91%", "No reviews", "20%"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Error("output must not be colorized when not requested")
	}
}

func TestRunSearch_Pages(t *testing.T) {
	c := &fakeController{snap: sampleSnapshot(), maxMore: 2}
	if err := runSearch(context.Background(), &bytes.Buffer{}, c, "phone", searchOptions{pages: 5}); err != nil {
		t.Fatalf("runSearch: %v", err)
	}
	if c.moreCalls != 2 {
		t.Errorf("expected load more to stop when exhausted, got %d calls", c.moreCalls)
	}

	c = &fakeController{snap: sampleSnapshot(), maxMore: 10}
	if err := runSearch(context.Background(), &bytes.Buffer{}, c, "phone", searchOptions{pages: 3}); err != nil {
		t.Fatalf("runSearch: %v", err)
	}
	if c.moreCalls != 2 {
		t.Errorf("expected 2 load more calls for 3 pages, got %d", c.moreCalls)
	}
}

func TestRunSearch_SortAndJSON(t *testing.T) {
	c := &fakeController{snap: sampleSnapshot()}
	var out bytes.Buffer

	err := runSearch(context.Background(), &out, c, "phone", searchOptions{sort: "price_high_to_low", pages: 1, jsonOut: true})
	if err != nil {
		t.Fatalf("runSearch: %v", err)
	}
	if c.sortMode != models.SortPriceHighLow {
		t.Errorf("expected sort applied before search, got %s", c.sortMode)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if snap.Query != "phone" || len(snap.Offers) != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestRunSearch_InvalidSort(t *testing.T) {
	c := &fakeController{snap: sampleSnapshot()}
	err := runSearch(context.Background(), &bytes.Buffer{}, c, "phone", searchOptions{sort: "cheapest", pages: 1})
	if !errors.Is(err, models.ErrUnknownSortMode) {
		t.Errorf("expected unknown sort mode error, got %v", err)
	}
	if c.query != "" {
		t.Error("search must not run with an invalid sort mode")
	}
}

func TestRunSearch_WaitTimeout(t *testing.T) {
	c := &fakeController{snap: sampleSnapshot(), waitErr: context.DeadlineExceeded}
	c.snap.Analyzing = []models.Identity{{Name: "Budget Phone", Source: models.SourceAmazon}}
	var out bytes.Buffer

	if err := runSearch(context.Background(), &out, c, "phone", searchOptions{pages: 1, wait: time.Millisecond}); err != nil {
		t.Fatalf("runSearch: %v", err)
	}
	if !strings.Contains(out.String(), "still running for 1 offers") {
		t.Errorf("expected pending note, got:\n%s", out.String())
	}
}

func TestPrintSnapshot_Empty(t *testing.T) {
	var out bytes.Buffer
	printSnapshot(&out, session.Snapshot{Query: "unobtainium", Error: "Error fetching products: source amazon unavailable"}, false)
	got := out.String()
	if !strings.Contains(got, "Error fetching products") || !strings.Contains(got, `No offers found for "unobtainium"`) {
		t.Errorf("unexpected output:\n%s", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate kept = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("truncate = %q", got)
	}
}

func TestSearchCommand_RequiresQuery(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"search"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error without a query")
	}
}
