// Package trigger is the HTTP entry point for the external job trigger.
// Every route verifies a shared secret before doing any work; an invalid
// or missing secret short-circuits with no side effects.
package trigger

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"creatorpulse/internal/logging"
	"creatorpulse/internal/metrics"
	"creatorpulse/internal/model"
	"creatorpulse/internal/ratelimit"
	"creatorpulse/internal/worker"
)

// SecretHeader carries the shared secret supplied by the trigger.
const SecretHeader = "X-Trigger-Secret"

// Runner is the scheduling surface the trigger drives.
type Runner interface {
	RunAll(ctx context.Context) (model.RunSummary, error)
	RefreshCreator(ctx context.Context, userID, handle string) (model.RunSummary, error)
}

// Sweeper is the retention surface the trigger drives.
type Sweeper interface {
	SweepOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Server struct {
	runner    Runner
	sweeper   Sweeper
	pool      *worker.Pool
	secret    string
	manual    *ratelimit.Limiter
	retention time.Duration
}

func NewServer(runner Runner, sweeper Sweeper, pool *worker.Pool, secret string, manual *ratelimit.Limiter, retention time.Duration) *Server {
	return &Server{runner: runner, sweeper: sweeper, pool: pool, secret: secret, manual: manual, retention: retention}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requireSecret)
	r.Post("/jobs/ingest", s.handleIngest)
	r.Post("/jobs/sweep", s.handleSweep)
	r.Post("/jobs/refresh", s.handleRefresh)
	return r
}

// requireSecret fails closed: an unconfigured secret rejects everything.
func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretHeader)
		if s.secret == "" || got == "" ||
			subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	sum, err := s.runner.RunAll(r.Context())
	if err != nil {
		// surfaced with context so the trigger can alert, not retry blindly
		logging.Error("trigger_ingest_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "summary": sum})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.sweeper.SweepOlderThan(r.Context(), time.Now().UTC().Add(-s.retention))
	if err != nil {
		logging.Error("trigger_sweep_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	metrics.SweepDeleted.Add(float64(deleted))
	logging.Info("retention_sweep", map[string]any{"deleted": deleted})
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// handleRefresh queues an on-demand single-creator refresh. The work runs
// on the pool with its own error channel rather than an unobserved
// goroutine, and is capped per user by the request counter.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	handle := r.URL.Query().Get("handle")
	if userID == "" || handle == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user and handle are required"})
		return
	}
	ok, err := s.manual.Allow(r.Context(), "refresh:"+userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "manual refresh cap reached"})
		return
	}
	queued := s.pool.Submit(worker.Task{
		Name: "refresh " + userID + "/" + handle,
		Run: func(ctx context.Context) error {
			_, err := s.runner.RefreshCreator(ctx, userID, handle)
			return err
		},
	})
	if !queued {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "refresh queue full"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
