// Package scheduler drives staleness-based creator refreshes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"creatorpulse/internal/config"
	"creatorpulse/internal/logging"
	"creatorpulse/internal/metrics"
	"creatorpulse/internal/model"
	"creatorpulse/internal/provider"
	"creatorpulse/internal/quota"
	"creatorpulse/internal/store"
)

// Scheduler runs one user's ingestion pass: select stale creators,
// allocate the daily budget across them, then fetch and store
// sequentially. There is no intra-run parallelism; the pacing limiter
// gives a total ordering of upstream calls that keeps per-account rate
// limits honest.
type Scheduler struct {
	db         *store.DB
	adapter    provider.Adapter
	budget     int
	staleAfter time.Duration
	limiter    *rate.Limiter
}

func New(db *store.DB, adapter provider.Adapter, cfg config.IngestConfig) *Scheduler {
	budget := cfg.DailyBudget
	if budget <= 0 {
		budget = 100
	}
	staleAfter := time.Duration(cfg.StalenessHours) * time.Hour
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.PaceMillis > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(cfg.PaceMillis)*time.Millisecond), 1)
	}
	return &Scheduler{db: db, adapter: adapter, budget: budget, staleAfter: staleAfter, limiter: limiter}
}

// RunForUser executes one scheduling pass. Per-creator failures are
// recorded in the summary and never abort the pass; only a failure to
// select candidates at all is returned as an error.
func (s *Scheduler) RunForUser(ctx context.Context, userID string) (model.RunSummary, error) {
	start := time.Now()
	metrics.ScrapeRuns.Inc()
	summary := model.RunSummary{PerUser: map[string]int{}, Errors: []model.CreatorError{}}

	staleCreators, err := s.db.ListStale(ctx, userID, time.Now().UTC().Add(-s.staleAfter))
	if err != nil {
		return summary, fmt.Errorf("select stale creators for user %s: %w", userID, err)
	}
	for _, a := range quota.Allocate(staleCreators, s.budget) {
		s.fetchOne(ctx, a, &summary)
	}
	logging.Info("scrape_run", map[string]any{
		"user": userID, "candidates": len(staleCreators),
		"stored": summary.TotalScraped, "errors": len(summary.Errors),
	})
	metrics.ObserveScrapeDuration(start)
	return summary, nil
}

// RunAll runs a pass for every user owning active creators. Users' passes
// are independent; a fatal pass (selection failure) is reported in the
// returned error but does not stop the remaining users.
func (s *Scheduler) RunAll(ctx context.Context) (model.RunSummary, error) {
	total := model.RunSummary{PerUser: map[string]int{}, Errors: []model.CreatorError{}}
	users, err := s.db.UserIDs(ctx)
	if err != nil {
		return total, fmt.Errorf("list users: %w", err)
	}
	var fatal []error
	for _, u := range users {
		sum, err := s.RunForUser(ctx, u)
		if err != nil {
			fatal = append(fatal, err)
			logging.Error("scrape_run_failed", map[string]any{"user": u, "error": err.Error()})
			continue
		}
		total.Merge(sum)
	}
	return total, errors.Join(fatal...)
}

// RefreshCreator refreshes a single creator on demand. Selection is
// bypassed, but the grant still comes from allocating the user's full
// active set against the budget, so the refresh is scaled fairly against
// the others' standing requests.
func (s *Scheduler) RefreshCreator(ctx context.Context, userID, handle string) (model.RunSummary, error) {
	summary := model.RunSummary{PerUser: map[string]int{}, Errors: []model.CreatorError{}}
	active, err := s.db.ListActive(ctx, userID)
	if err != nil {
		return summary, fmt.Errorf("list active creators for user %s: %w", userID, err)
	}
	handle = provider.NormalizeHandle(handle)
	for _, a := range quota.Allocate(active, s.budget) {
		if a.Creator.Handle != handle {
			continue
		}
		s.fetchOne(ctx, a, &summary)
		return summary, nil
	}
	return summary, fmt.Errorf("no active creator %q for user %s", handle, userID)
}

// fetchOne performs one paced fetch-and-store step. Any failure is
// recorded against the creator; the caller moves on regardless. The
// creator's last-fetch timestamp advances only when both the fetch and
// the store succeed.
func (s *Scheduler) fetchOne(ctx context.Context, a model.Allocation, summary *model.RunSummary) {
	c := a.Creator
	if err := s.limiter.Wait(ctx); err != nil {
		summary.Errors = append(summary.Errors, model.CreatorError{Creator: c.Handle, Reason: err.Error()})
		return
	}
	var since time.Time
	if c.LastFetchedAt != nil {
		since = *c.LastFetchedAt
	}
	items, err := s.adapter.FetchItems(ctx, c.Handle, a.Granted, since)
	if err != nil {
		s.recordFailure(summary, c, err)
		return
	}
	n, err := s.db.UpsertTweets(ctx, c.ID, items)
	if err != nil {
		s.recordFailure(summary, c, err)
		return
	}
	if err := s.db.TouchLastFetched(ctx, c.ID, time.Now().UTC()); err != nil {
		logging.Warn("touch_last_fetched_failed", map[string]any{"creator": c.Handle, "error": err.Error()})
	}
	summary.TotalScraped += n
	summary.PerUser[c.UserID] += n
	metrics.TweetsStored.Add(float64(n))
}

func (s *Scheduler) recordFailure(summary *model.RunSummary, c model.Creator, err error) {
	summary.Errors = append(summary.Errors, model.CreatorError{Creator: c.Handle, Reason: err.Error()})
	metrics.ScrapeErrors.WithLabelValues(s.adapter.Name()).Inc()
	logging.Error("creator_fetch_failed", map[string]any{"creator": c.Handle, "error": err.Error()})
}
