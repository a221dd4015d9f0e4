package enricher

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pauljones0/smart-shopper/internal/models"
)

// DefaultChunkSize bounds how many offers are analyzed at once per run.
const DefaultChunkSize = 4

// Analyzer produces a sentiment verdict for one offer.
type Analyzer interface {
	Analyze(ctx context.Context, offer models.Offer) (models.Sentiment, error)
}

// Result is the outcome of one offer's analysis. Index is the offer's position
// in the slice passed to Run. Sentiment is nil on failure.
type Result struct {
	Index     int
	Identity  models.Identity
	Sentiment *models.Sentiment
	Err       error
}

// Sink receives chunk lifecycle events. Begin is called before any member of a
// chunk is analyzed and Publish exactly once after all of them settle, so every
// identity passed to Begin is always released by the matching Publish.
type Sink interface {
	Begin(ids []models.Identity)
	Publish(results []Result)
}

// Scheduler drives chunked, bounded-concurrency enrichment. Chunks run in
// sequence and members of a chunk run concurrently. A weighted semaphore shared
// by every run caps concurrent analyzer calls across overlapping runs.
type Scheduler struct {
	analyzer  Analyzer
	chunkSize int
	sem       *semaphore.Weighted
	logger    *slog.Logger
}

// New creates a Scheduler. maxInFlight caps analyzer calls across all runs; a
// value below chunkSize is raised to chunkSize.
func New(analyzer Analyzer, chunkSize int, maxInFlight int64, logger *slog.Logger) *Scheduler {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if maxInFlight < int64(chunkSize) {
		maxInFlight = int64(chunkSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		analyzer:  analyzer,
		chunkSize: chunkSize,
		sem:       semaphore.NewWeighted(maxInFlight),
		logger:    logger.With("component", "enricher"),
	}
}

// Chunks partitions offers into consecutive groups of at most size entries.
func Chunks(offers []models.Offer, size int) [][]models.Offer {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]models.Offer
	for start := 0; start < len(offers); start += size {
		end := min(start+size, len(offers))
		out = append(out, offers[start:end])
	}
	return out
}

// Run enriches offers chunk by chunk and blocks until done or ctx is cancelled.
// A per-offer failure is logged and published with a nil sentiment; it never
// stops the rest of the run.
func (s *Scheduler) Run(ctx context.Context, offers []models.Offer, sink Sink) {
	for i, chunk := range Chunks(offers, s.chunkSize) {
		if ctx.Err() != nil {
			s.logger.Debug("Enrichment run cancelled", "skipped", len(offers)-i*s.chunkSize)
			return
		}
		sink.Publish(s.runChunk(ctx, i*s.chunkSize, chunk, sink))
	}
}

func (s *Scheduler) runChunk(ctx context.Context, start int, chunk []models.Offer, sink Sink) []Result {
	ids := make([]models.Identity, len(chunk))
	for i, o := range chunk {
		ids[i] = o.Identity()
	}
	sink.Begin(ids)

	results := make([]Result, len(chunk))
	var g errgroup.Group
	for i, o := range chunk {
		g.Go(func() error {
			results[i] = s.analyze(ctx, o)
			results[i].Index = start + i
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Scheduler) analyze(ctx context.Context, offer models.Offer) Result {
	res := Result{Identity: offer.Identity()}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		res.Err = err
		return res
	}
	defer s.sem.Release(1)

	sentiment, err := s.analyzer.Analyze(ctx, offer)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("Enrichment failed", "offer", res.Identity.String(), "error", err)
		}
		res.Err = err
		return res
	}
	res.Sentiment = &sentiment
	return res
}
