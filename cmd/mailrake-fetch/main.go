package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailrake/internal/config"
	"github.com/joshsymonds/mailrake/internal/fetch"
	"github.com/joshsymonds/mailrake/internal/rate"
	"github.com/joshsymonds/mailrake/internal/runtime"
	"github.com/joshsymonds/mailrake/internal/store"
)

type fetchFlags struct {
	configPath  string
	credentials string
	dbPath      string
	limit       int
	pageSize    int
	rps         int
}

func main() {
	flags := parseFetchFlags()
	if err := run(flags); err != nil {
		runtime.DefaultLogger().Error("mailrake-fetch failed", "error", err)
		os.Exit(1)
	}
}

func parseFetchFlags() fetchFlags {
	configPath := flag.String("config", config.DefaultPath(), "config file path")
	credentials := flag.String("credentials", "", "OAuth credentials directory (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	limit := flag.Int("limit", 0, "maximum messages to fetch (overrides config)")
	pageSize := flag.Int("page-size", 0, "Gmail list page size, <=500 (overrides config)")
	rps := flag.Int("rps", 0, "max requests per second (overrides config)")
	flag.Parse()

	return fetchFlags{
		configPath:  *configPath,
		credentials: *credentials,
		dbPath:      *dbPath,
		limit:       *limit,
		pageSize:    *pageSize,
		rps:         *rps,
	}
}

func run(flags fetchFlags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.credentials != "" {
		cfg.CredentialsDir = flags.credentials
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.limit > 0 {
		cfg.MaxFetch = flags.limit
	}
	if flags.pageSize > 0 {
		cfg.PageSize = flags.pageSize
	}
	if flags.rps > 0 {
		cfg.RPS = flags.rps
	}

	client, err := runtime.NewGmailClient(ctx, cfg.CredentialsDir, runtime.ScopeReadonly)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var limiter rate.Limiter = rate.Unlimited{}
	if cfg.RPS > 0 {
		bucket := rate.NewTokenBucket(cfg.RPS)
		defer bucket.Stop()
		limiter = bucket
	}

	logger := runtime.DefaultLogger()
	svc := fetch.NewService(client, st, limiter, logger)

	fmt.Printf("Fetching up to %d emails from Gmail...\n", cfg.MaxFetch)
	ids, err := svc.Run(ctx, fetch.Options{Limit: cfg.MaxFetch, PageSize: cfg.PageSize})
	if err != nil {
		return fmt.Errorf("run fetch: %w", err)
	}
	fmt.Printf("Fetched %d emails.\n", len(ids))
	return nil
}
