package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"creatorpulse/internal/cmdlog"
	"creatorpulse/internal/config"
	"creatorpulse/internal/logging"
	"creatorpulse/internal/metrics"
	"creatorpulse/internal/model"
	"creatorpulse/internal/provider"
	"creatorpulse/internal/ratelimit"
	"creatorpulse/internal/schedule"
	"creatorpulse/internal/scheduler"
	"creatorpulse/internal/store"
	"creatorpulse/internal/trigger"
	"creatorpulse/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "add":
		cmdAdd()
	case "creators":
		cmdCreators()
	case "recent":
		cmdRecent()
	case "run":
		cmdRun()
	case "refresh":
		cmdRefresh()
	case "sweep":
		cmdSweep()
	case "serve":
		cmdServe()
	default:
		printHelp()
	}
}

func printHelp() {
	fmt.Println("Usage: creatorpulse <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./creatorpulse.yaml")
	fmt.Println("  add         Validate a handle and start tracking it for a user")
	fmt.Println("  creators    List a user's tracked creators")
	fmt.Println("  recent      Show a user's recent items, balanced across creators")
	fmt.Println("  run         Run one ingestion pass (all users, or -user)")
	fmt.Println("  refresh     Refresh a single creator on demand")
	fmt.Println("  sweep       Delete items older than the retention window")
	fmt.Println("  serve       Run the trigger server with scheduled jobs")
}

func fatal(err error) {
	fmt.Println("error:", err)
	os.Exit(1)
}

func mustLoad(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatal(err)
	}
	return cfg
}

func mustOpen(cfg config.Config) *store.DB {
	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		fatal(err)
	}
	return db
}

func mustAdapter(cfg config.Config) provider.Adapter {
	if cfg.Provider.BearerToken == "" {
		fmt.Println("warning: missing bearer token; provider calls will fail")
	}
	a, err := provider.New(cfg.Provider)
	if err != nil {
		fatal(err)
	}
	return a
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./creatorpulse.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		fatal(err)
	}
	abs, _ := filepath.Abs(*path)
	fmt.Println("Config written to:", abs)
}

func cmdAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	cfgPath := fs.String("config", "./creatorpulse.yaml", "config path")
	user := fs.String("user", "", "owning user id")
	handle := fs.String("handle", "", "creator handle, with or without @")
	count := fs.Int("count", 10, "items to request per run (1-100)")
	_ = fs.Parse(os.Args[2:])
	if *user == "" || *handle == "" {
		fatal(errors.New("-user and -handle are required"))
	}
	cfg := mustLoad(*cfgPath)
	adapter := mustAdapter(cfg)
	db := mustOpen(cfg)
	defer db.Close()

	err := cmdlog.Run("add", func() error {
		ctx := context.Background()
		v := adapter.ValidateHandle(ctx, *handle)
		if !v.Valid {
			return fmt.Errorf("handle rejected: %s", v.Reason)
		}
		normalized, _ := provider.CheckHandle(*handle)
		c := model.Creator{
			ID:             uuid.NewString(),
			UserID:         *user,
			Handle:         normalized,
			Active:         true,
			Requested:      *count,
			ProviderUserID: v.ProviderUserID,
		}
		if err := db.CreateCreator(ctx, c); err != nil {
			return err
		}
		fmt.Printf("Tracking @%s for %s (provider id %s)\n", normalized, *user, v.ProviderUserID)
		return nil
	})
	if err != nil {
		fatal(err)
	}
}

func cmdCreators() {
	fs := flag.NewFlagSet("creators", flag.ExitOnError)
	cfgPath := fs.String("config", "./creatorpulse.yaml", "config path")
	user := fs.String("user", "", "owning user id")
	_ = fs.Parse(os.Args[2:])
	if *user == "" {
		fatal(errors.New("-user is required"))
	}
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()

	creators, err := db.ListActive(context.Background(), *user)
	if err != nil {
		fatal(err)
	}
	for _, c := range creators {
		last := "never"
		if c.LastFetchedAt != nil {
			last = c.LastFetchedAt.Format(time.RFC3339)
		}
		fmt.Printf("@%-16s requested=%-3d last_fetched=%s\n", c.Handle, c.Requested, last)
	}
}

func cmdRecent() {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	cfgPath := fs.String("config", "./creatorpulse.yaml", "config path")
	user := fs.String("user", "", "owning user id")
	count := fs.Int("count", 20, "total items to show")
	days := fs.Int("days", 7, "lookback window in days")
	_ = fs.Parse(os.Args[2:])
	if *user == "" {
		fatal(errors.New("-user is required"))
	}
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()

	tweets, err := db.BalancedRecent(context.Background(), *user, *count, time.Duration(*days)*24*time.Hour)
	if err != nil {
		fatal(err)
	}
	printJSON(tweets)
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./creatorpulse.yaml", "config path")
	user := fs.String("user", "", "limit the pass to one user")
	_ = fs.Parse(os.Args[2:])
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()
	sched := scheduler.New(db, mustAdapter(cfg), cfg.Ingest)

	err := cmdlog.Run("run", func() error {
		ctx := context.Background()
		var sum model.RunSummary
		var err error
		if *user != "" {
			sum, err = sched.RunForUser(ctx, *user)
		} else {
			sum, err = sched.RunAll(ctx)
		}
		printJSON(sum)
		return err
	})
	if err != nil {
		fatal(err)
	}
}

func cmdRefresh() {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	cfgPath := fs.String("config", "./creatorpulse.yaml", "config path")
	user := fs.String("user", "", "owning user id")
	handle := fs.String("handle", "", "creator handle")
	_ = fs.Parse(os.Args[2:])
	if *user == "" || *handle == "" {
		fatal(errors.New("-user and -handle are required"))
	}
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()
	sched := scheduler.New(db, mustAdapter(cfg), cfg.Ingest)

	err := cmdlog.Run("refresh", func() error {
		sum, err := sched.RefreshCreator(context.Background(), *user, *handle)
		printJSON(sum)
		return err
	})
	if err != nil {
		fatal(err)
	}
}

func cmdSweep() {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	cfgPath := fs.String("config", "./creatorpulse.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := mustLoad(*cfgPath)
	db := mustOpen(cfg)
	defer db.Close()

	err := cmdlog.Run("sweep", func() error {
		deleted, err := db.SweepOlderThan(context.Background(), time.Now().UTC().Add(-retention(cfg)))
		if err != nil {
			return err
		}
		metrics.SweepDeleted.Add(float64(deleted))
		fmt.Printf("Deleted %d items\n", deleted)
		return nil
	})
	if err != nil {
		fatal(err)
	}
}

func retention(cfg config.Config) time.Duration {
	days := cfg.Retention.Days
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

func cmdServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "./creatorpulse.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := mustLoad(*cfgPath)

	metrics.StartServer(cfg.MetricsAddr)
	db := mustOpen(cfg)
	defer db.Close()
	sched := scheduler.New(db, mustAdapter(cfg), cfg.Ingest)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool := worker.NewPool(2, 16)
	pool.Start(ctx)
	go func() {
		for te := range pool.Errors() {
			logging.Error("task_failed", map[string]any{"task": te.Name, "error": te.Err.Error()})
		}
	}()

	var counterStore ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.Storage.RedisAddr != "" {
		counterStore = ratelimit.NewRedisStore(cfg.Storage.RedisAddr, "")
	}
	manual := ratelimit.NewLimiter(counterStore, cfg.Trigger.ManualPerHour, time.Hour)

	srv := trigger.NewServer(sched, db, pool, cfg.Trigger.Secret, manual, retention(cfg))
	httpSrv := &http.Server{Addr: cfg.Trigger.Addr, Handler: srv.Router()}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("trigger_server_failed", map[string]any{"error": err.Error()})
			cancel()
		}
	}()

	// ingestion and cleanup run on independent daily schedules, offset so
	// the sweep never races a fresh ingest for the same cron tick
	c := cron.New()
	_, err := c.AddFunc("15 6 * * *", func() {
		if d := time.Until(schedule.NextWindow(time.Now().UTC(), cfg.Ingest.QuietHours)); d > 0 {
			logging.Info("ingest_deferred", map[string]any{"delay": d.String()})
			time.Sleep(d)
		}
		if _, err := sched.RunAll(ctx); err != nil {
			logging.Error("scheduled_ingest_failed", map[string]any{"error": err.Error()})
		}
	})
	if err != nil {
		fatal(err)
	}
	_, err = c.AddFunc("45 18 * * *", func() {
		deleted, err := db.SweepOlderThan(ctx, time.Now().UTC().Add(-retention(cfg)))
		if err != nil {
			logging.Error("scheduled_sweep_failed", map[string]any{"error": err.Error()})
			return
		}
		metrics.SweepDeleted.Add(float64(deleted))
		logging.Info("retention_sweep", map[string]any{"deleted": deleted})
	})
	if err != nil {
		fatal(err)
	}
	c.Start()

	logging.Info("serve_started", map[string]any{"addr": cfg.Trigger.Addr, "provider": cfg.Provider.Name})
	<-ctx.Done()

	c.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	pool.Close()
	logging.Info("serve_stopped", nil)
}
