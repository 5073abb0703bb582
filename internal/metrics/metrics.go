package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScrapeRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "creatorpulse_scrape_runs_total",
		Help: "Total scheduling runs",
	})
	ScrapeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "creatorpulse_scrape_errors_total",
		Help: "Total per-creator scrape failures",
	}, []string{"provider"})
	TweetsStored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "creatorpulse_tweets_stored_total",
		Help: "Total items handed to the store",
	})
	SweepDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "creatorpulse_sweep_deleted_total",
		Help: "Total items removed by the retention sweep",
	})
	ScrapeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "creatorpulse_scrape_duration_seconds",
		Help:    "Scheduling run duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "creatorpulse_api_retries_total",
		Help: "Total upstream retry attempts",
	}, []string{"provider"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "creatorpulse_command_runs_total",
		Help: "Total CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "creatorpulse_command_errors_total",
		Help: "Total CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(ScrapeRuns, ScrapeErrors, TweetsStored, SweepDeleted, ScrapeDuration, APIRetries, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveScrapeDuration records a run duration.
func ObserveScrapeDuration(start time.Time) {
	ScrapeDuration.Observe(time.Since(start).Seconds())
}

// IncAPIRetry increments the retry counter for a provider.
func IncAPIRetry(provider string) { APIRetries.WithLabelValues(provider).Inc() }

// IncCommandRun and IncCommandError track CLI invocations.
func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
