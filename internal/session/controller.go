package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/smart-shopper/internal/catalog"
	"github.com/pauljones0/smart-shopper/internal/enricher"
	"github.com/pauljones0/smart-shopper/internal/models"
)

type State string

const (
	StateIdle        State = "idle"
	StateSearching   State = "searching"
	StateReady       State = "ready"
	StateLoadingMore State = "loading_more"
)

const notifyTimeout = 30 * time.Second

type Options struct {
	Sources   []models.Source
	BatchSize int
	SortMode  models.SortMode
	Notifier  RecommendationNotifier
	Logger    *slog.Logger
}

// Controller owns one user's search session. All state is guarded by mu and
// mutated only by the controller's own methods and enrichment callbacks.
// Readers get copies through Snapshot.
type Controller struct {
	searcher  SourceSearcher
	enricher  Enricher
	notifier  RecommendationNotifier
	sources   []models.Source
	batchSize int
	logger    *slog.Logger

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu           sync.Mutex
	state        State
	query        string
	generation   uint64
	sortMode     models.SortMode
	collection   catalog.Collection
	pagination   *catalog.Pagination
	hasMore      bool
	analyzing    map[models.Identity]int
	enrichRuns   int
	errMsg       string
	enrichCtx    context.Context
	cancelEnrich context.CancelFunc
	lastActive   time.Time
	closed       bool
}

func NewController(searcher SourceSearcher, enr Enricher, opts Options) *Controller {
	if len(opts.Sources) == 0 {
		opts.Sources = models.KnownSources
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.SortMode == "" {
		opts.SortMode = models.SortRelevance
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	enrichCtx, cancelEnrich := context.WithCancel(baseCtx)
	return &Controller{
		searcher:     searcher,
		enricher:     enr,
		notifier:     opts.Notifier,
		sources:      slices.Clone(opts.Sources),
		batchSize:    opts.BatchSize,
		logger:       opts.Logger.With("component", "session"),
		baseCtx:      baseCtx,
		cancelAll:    cancel,
		state:        StateIdle,
		sortMode:     opts.SortMode,
		pagination:   catalog.NewPagination(),
		analyzing:    make(map[models.Identity]int),
		enrichCtx:    enrichCtx,
		cancelEnrich: cancelEnrich,
		lastActive:   time.Now(),
	}
}

// Search starts a new search generation. A blank query is rejected before any
// source is contacted. Enrichment of the returned offers continues in the
// background after Search returns.
func (c *Controller) Search(ctx context.Context, query string) (Snapshot, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.Snapshot(), &models.ValidationError{Field: "query", Reason: "must not be empty"}
	}

	c.mu.Lock()
	c.cancelEnrich()
	c.enrichCtx, c.cancelEnrich = context.WithCancel(c.baseCtx)
	c.generation++
	gen := c.generation
	c.query = query
	c.collection.Reset()
	c.pagination.Reset()
	clear(c.analyzing)
	c.enrichRuns = 0
	c.hasMore = false
	c.errMsg = ""
	c.state = StateSearching
	c.lastActive = time.Now()
	pages := c.pagination.Pages(c.sources)
	sortMode := c.sortMode
	c.mu.Unlock()

	c.logger.Info("Search started", "query", query, "generation", gen)
	results := c.fetchCycle(ctx, query, sortMode, pages)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		c.logger.Debug("Dropping superseded search results", "generation", gen, "current", c.generation)
		return c.snapshotLocked(), nil
	}
	if err := ctx.Err(); err != nil {
		c.logger.Info("Search cancelled", "query", query, "generation", gen)
		c.state = StateIdle
		c.errMsg = "Search cancelled"
		return c.snapshotLocked(), fmt.Errorf("search %q: %w", query, err)
	}
	c.applyCycleLocked(gen, results)
	return c.snapshotLocked(), nil
}

// LoadMore fetches the next page from every source. It is a no-op unless the
// session is Ready with more results possibly available.
func (c *Controller) LoadMore(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	c.lastActive = time.Now()
	if c.state != StateReady || !c.hasMore {
		defer c.mu.Unlock()
		return c.snapshotLocked(), nil
	}
	c.state = StateLoadingMore
	prevErr := c.errMsg
	c.errMsg = ""
	gen := c.generation
	query := c.query
	sortMode := c.sortMode
	pages := c.pagination.Pages(c.sources)
	c.mu.Unlock()

	c.logger.Info("Loading more", "query", query, "generation", gen, "pages", pages)
	results := c.fetchCycle(ctx, query, sortMode, pages)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return c.snapshotLocked(), nil
	}
	if err := ctx.Err(); err != nil {
		// The cycle never happened: cursors, HasMore and the previous error stand.
		c.logger.Info("Load more cancelled", "query", query, "generation", gen)
		c.state = StateReady
		c.errMsg = prevErr
		return c.snapshotLocked(), fmt.Errorf("loading more for %q: %w", query, err)
	}
	c.applyCycleLocked(gen, results)
	return c.snapshotLocked(), nil
}

// SetSortMode changes the active view ordering. Sources are not re-queried.
func (c *Controller) SetSortMode(mode models.SortMode) (Snapshot, error) {
	parsed, err := models.ParseSortMode(string(mode))
	if err != nil {
		return c.Snapshot(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sortMode = parsed
	c.lastActive = time.Now()
	return c.snapshotLocked(), nil
}

type cycleResult struct {
	source models.Source
	offers []models.Offer
	err    error
}

// fetchCycle queries every source concurrently and waits for all of them.
// Results are returned in source-list order.
func (c *Controller) fetchCycle(ctx context.Context, query string, mode models.SortMode, pages map[models.Source]int) []cycleResult {
	results := make([]cycleResult, len(c.sources))

	var g errgroup.Group
	for i, src := range c.sources {
		g.Go(func() error {
			req := models.SearchRequest{
				Query:     query,
				Source:    src,
				Sort:      mode.SourceSort(),
				Page:      pages[src],
				BatchSize: c.batchSize,
			}
			offers, err := c.searcher.SearchSource(ctx, req)
			if err != nil {
				var sue *models.SourceUnavailableError
				if !errors.As(err, &sue) {
					err = &models.SourceUnavailableError{Source: src, Err: err}
				}
				c.logger.Warn("Source unavailable", "source", src, "page", req.Page, "error", err)
				offers = nil
			}
			results[i] = cycleResult{source: src, offers: offers, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Controller) applyCycleLocked(gen uint64, results []cycleResult) {
	var fresh []models.Offer
	var failures []string
	hasMore := false
	base := c.collection.Len()

	for _, r := range results {
		if r.err != nil {
			failures = append(failures, r.err.Error())
		}
		c.pagination.Advance(r.source, len(r.offers))
		if len(r.offers) > 0 {
			hasMore = true
		}
		fresh = append(fresh, r.offers...)
	}

	c.collection.Append(fresh)
	c.hasMore = hasMore
	c.state = StateReady
	if len(failures) > 0 {
		c.errMsg = "Error fetching products: " + strings.Join(failures, "; ")
	}

	c.logger.Info("Fetch cycle complete",
		"generation", gen,
		"received", len(fresh),
		"total", c.collection.Len(),
		"hasMore", hasMore,
		"failedSources", len(failures))

	c.startEnrichmentLocked(gen, base, fresh)
}

// startEnrichmentLocked enriches offers, which were appended to the collection
// starting at position base. It is a no-op once the controller is closed.
func (c *Controller) startEnrichmentLocked(gen uint64, base int, offers []models.Offer) {
	if len(offers) == 0 || c.enricher == nil || c.closed {
		return
	}
	c.enrichRuns++
	ctx := c.enrichCtx
	sink := &generationSink{c: c, gen: gen, base: base}
	offers = slices.Clone(offers)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.enricher.Run(ctx, offers, sink)
		c.finishRun(gen)
	}()
}

func (c *Controller) finishRun(gen uint64) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.enrichRuns--
	query := c.query
	recs := catalog.Recommendations(c.collection.Offers(), catalog.RecommendationCount)
	c.mu.Unlock()

	if c.notifier == nil || len(recs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(c.baseCtx, notifyTimeout)
	defer cancel()
	if err := c.notifier.NotifyRecommendations(ctx, query, recs); err != nil {
		c.logger.Warn("Failed to send recommendations", "query", query, "error", err)
	}
}

// generationSink applies enrichment progress only while its generation is
// current. The collection is append-only within a generation, so base plus a
// result's index addresses the exact entry the run was started for.
type generationSink struct {
	c    *Controller
	gen  uint64
	base int
}

func (s *generationSink) Begin(ids []models.Identity) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != s.gen {
		return
	}
	for _, id := range ids {
		c.analyzing[id]++
	}
}

func (s *generationSink) Publish(results []enricher.Result) {
	c := s.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != s.gen {
		c.logger.Debug("Dropping stale enrichment results", "generation", s.gen, "current", c.generation, "count", len(results))
		return
	}
	for _, r := range results {
		if n := c.analyzing[r.Identity]; n <= 1 {
			delete(c.analyzing, r.Identity)
		} else {
			c.analyzing[r.Identity] = n - 1
		}
		if r.Sentiment != nil {
			c.collection.ApplySentiment(s.base+r.Index, r.Identity, *r.Sentiment)
		}
	}
}

// Loading mirrors the in-progress flags exposed to clients.
type Loading struct {
	Products  bool `json:"products"`
	More      bool `json:"more"`
	Sentiment bool `json:"sentiment"`
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	State           State                 `json:"state"`
	Query           string                `json:"query"`
	Generation      uint64                `json:"generation"`
	SortMode        models.SortMode       `json:"sort_mode"`
	Offers          []models.Offer        `json:"offers"`
	Recommendations []models.Offer        `json:"recommendations"`
	HasMore         bool                  `json:"has_more"`
	Pages           map[models.Source]int `json:"pages"`
	Loading         Loading               `json:"loading"`
	Analyzing       []models.Identity     `json:"analyzing"`
	Error           string                `json:"error,omitempty"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	offers := c.collection.Offers()

	analyzing := make([]models.Identity, 0, len(c.analyzing))
	for id := range c.analyzing {
		analyzing = append(analyzing, id)
	}
	slices.SortFunc(analyzing, func(a, b models.Identity) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.Name, b.Name))
	})

	return Snapshot{
		State:           c.state,
		Query:           c.query,
		Generation:      c.generation,
		SortMode:        c.sortMode,
		Offers:          catalog.Sort(offers, c.sortMode),
		Recommendations: catalog.Recommendations(offers, catalog.RecommendationCount),
		HasMore:         c.hasMore,
		Pages:           c.pagination.Pages(c.sources),
		Loading: Loading{
			Products:  c.state == StateSearching,
			More:      c.state == StateLoadingMore,
			Sentiment: c.enrichRuns > 0,
		},
		Analyzing: analyzing,
		Error:     c.errMsg,
	}
}

// LastActive reports when a user action last touched the session.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Wait blocks until every background enrichment run has finished or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for enrichment: %w", ctx.Err())
	}
}

// Close cancels background enrichment and waits for it to stop. No new
// enrichment starts after Close.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancelAll()
	c.wg.Wait()
}
