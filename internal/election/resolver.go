package election

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/powerbackus/powerback-sub000/internal/domain"
)

// Resolver answers reset-boundary questions with a three-tier fallback:
// live source, then the last successfully cached result for the jurisdiction,
// then the static default table. The winning source is recorded on the
// returned Boundary so limit calculations are auditable.
type Resolver struct {
	client  DatesClient
	logger  zerolog.Logger
	timeout time.Duration

	mu    sync.RWMutex
	cache map[string]Dates // keyed by jurisdiction/cycle-year
}

// NewResolver builds a Resolver. timeout bounds each live lookup; zero means
// 5 seconds.
func NewResolver(client DatesClient, logger zerolog.Logger, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		client:  client,
		logger:  logger,
		timeout: timeout,
		cache:   make(map[string]Dates),
	}
}

func cacheKey(jurisdiction string, year int) string {
	return fmt.Sprintf("%s/%d", jurisdiction, year)
}

// ResolveResetBoundary returns the election-cycle boundary relevant to asOf
// for the jurisdiction. When no live, cached, or default data exists the
// calculation must fail closed, so ErrLimitUndetermined is returned rather
// than a fabricated boundary.
func (r *Resolver) ResolveResetBoundary(ctx context.Context, jurisdiction string, asOf time.Time) (Boundary, error) {
	year := CycleYearFor(asOf)
	boundary := Boundary{Jurisdiction: jurisdiction, CycleYear: year}

	if r.client != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
		dates, err := r.client.FetchElectionDates(fetchCtx, jurisdiction, year)
		cancel()
		if err == nil {
			r.mu.Lock()
			r.cache[cacheKey(jurisdiction, year)] = dates
			r.mu.Unlock()
			boundary.Primary, boundary.General = dates.Primary, dates.General
			boundary.Source = SourceLive
			return boundary, nil
		}
		r.logger.Warn().Err(err).
			Str("jurisdiction", jurisdiction).
			Int("cycle_year", year).
			Msg("live election source failed, trying cache")
	}

	r.mu.RLock()
	dates, ok := r.cache[cacheKey(jurisdiction, year)]
	r.mu.RUnlock()
	if ok {
		boundary.Primary, boundary.General = dates.Primary, dates.General
		boundary.Source = SourceCache
		return boundary, nil
	}

	if dates, ok := defaultDatesFor(jurisdiction, year); ok {
		boundary.Primary, boundary.General = dates.Primary, dates.General
		boundary.Source = SourceDefault
		return boundary, nil
	}

	return Boundary{}, fmt.Errorf("no election dates for %s/%d at any fallback tier: %w", jurisdiction, year, domain.ErrLimitUndetermined)
}

// Seed primes the cache with a known-good result, mainly for tests and warm
// starts.
func (r *Resolver) Seed(jurisdiction string, year int, dates Dates) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[cacheKey(jurisdiction, year)] = dates
}
