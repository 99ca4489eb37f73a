package sources

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/rideo/rideo_core/internal/models"
)

// Query carries the request parameters a remote provider needs to produce
// segment candidates
type Query struct {
	Origin      string
	Destination string
	Date        time.Time
}

// SegmentFetcher produces normalized segments for a search request.
// Implementations are latency-bound network clients; a failure degrades to
// an empty contribution and is reported through FetchResult, never raised.
type SegmentFetcher interface {
	Name() string
	FetchSegments(ctx context.Context, q Query) ([]models.Segment, error)
}

// FetchResult is the outcome of one provider fetch. Err is set when the
// provider contributed nothing for a reason, so degraded-but-successful
// searches stay visible to callers and tests.
type FetchResult struct {
	Source   string
	Segments []models.Segment
	Err      error
}

// FetchAll queries every provider concurrently with a bounded per-call
// timeout. The result slice preserves the fetcher order.
func FetchAll(ctx context.Context, fetchers []SegmentFetcher, q Query, timeout time.Duration) []FetchResult {
	if len(fetchers) == 0 {
		return nil
	}

	p := pool.NewWithResults[FetchResult]().WithMaxGoroutines(len(fetchers))

	for _, f := range fetchers {
		f := f // per-iteration copy: module builds with pre-1.22 loopvar semantics
		p.Go(func() FetchResult {
			callCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			segments, err := f.FetchSegments(callCtx, q)
			if err != nil {
				log.Warn().Err(err).Str("source", f.Name()).Msg("Segment source unavailable, treating as empty")
				return FetchResult{Source: f.Name(), Err: err}
			}
			return FetchResult{Source: f.Name(), Segments: segments}
		})
	}

	results := p.Wait()

	// pool results arrive in completion order; restore fetcher order
	byName := make(map[string]FetchResult, len(results))
	for _, r := range results {
		byName[r.Source] = r
	}
	ordered := make([]FetchResult, 0, len(fetchers))
	for _, f := range fetchers {
		ordered = append(ordered, byName[f.Name()])
	}
	return ordered
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
