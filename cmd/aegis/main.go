// Command aegis runs the AI risk assessment service and its operational
// subcommands (one-shot assessment, chain verification, evidence export).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aletheia-ai/aegis/pkg/api"
	"github.com/aletheia-ai/aegis/pkg/config"
	"github.com/aletheia-ai/aegis/pkg/engine"
	"github.com/aletheia-ai/aegis/pkg/ledger"
	"github.com/aletheia-ai/aegis/pkg/observability"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands; it is the entrypoint for tests.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(stderr)
	}
	switch args[1] {
	case "server", "serve":
		return runServer(stderr)
	case "assess":
		return runAssessCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: aegis <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  server   Start the assessment HTTP service (default)")
	fmt.Fprintln(w, "  assess   Run a one-shot assessment for a profile file")
	fmt.Fprintln(w, "  verify   Verify an assessment run's audit chain")
	fmt.Fprintln(w, "  export   Export a signed evidence pack for a run")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// openStore selects the ledger backend from configuration.
func openStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.LedgerDriver {
	case "memory":
		return ledger.NewMemoryStore(), nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return ledger.NewSQLiteStore(db)
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return ledger.NewPostgresStore(db)
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.LedgerDriver)
	}
}

func runServer(stderr io.Writer) int {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var provider *observability.Provider
	if cfg.OTLPEndpoint != "" {
		var err error
		provider, err = observability.New(ctx, &observability.Config{
			ServiceName:    "aegis",
			ServiceVersion: "1.0.0",
			Environment:    cfg.Environment,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			SampleRate:     1.0,
			BatchTimeout:   5 * time.Second,
			Enabled:        true,
			Insecure:       cfg.OTLPInsecure,
		})
		if err != nil {
			fmt.Fprintf(stderr, "observability init failed: %v\n", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
	}

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "ledger store init failed: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	ruleSet, err := config.LoadRuleSet(cfg.RuleSetPath)
	if err != nil {
		fmt.Fprintf(stderr, "rule set load failed: %v\n", err)
		return 1
	}
	weights, err := config.LoadWeights(cfg.WeightsPath)
	if err != nil {
		fmt.Fprintf(stderr, "weights load failed: %v\n", err)
		return 1
	}

	led := ledger.New(store)
	opts := engine.Options{
		RuleSet: ruleSet,
		Weights: weights,
		Logger:  logger,
	}
	if provider != nil {
		opts.Tracker = provider.TrackAssessment
	}
	eng, err := engine.New(led, opts)
	if err != nil {
		fmt.Fprintf(stderr, "engine init failed: %v\n", err)
		return 1
	}

	var exporter *ledger.Exporter
	if cfg.ExportSecret != "" {
		signer, err := ledger.NewSigner([]byte(cfg.ExportSecret))
		if err != nil {
			fmt.Fprintf(stderr, "export signer init failed: %v\n", err)
			return 1
		}
		exporter = ledger.NewExporter(led, signer)
	}

	var idem api.IdempotencyStore
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(stderr, "redis url parse failed: %v\n", err)
			return 1
		}
		idem = api.NewRedisIdempotencyStore(redis.NewClient(redisOpts), 24*time.Hour)
	} else {
		idem = api.NewMemoryIdempotencyStore(24 * time.Hour)
	}

	handler := api.NewRouter(api.NewService(eng, exporter), api.RouterOptions{
		Logger:      logger,
		JWTSecret:   []byte(cfg.JWTSecret),
		RateLimiter: api.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Idempotency: idem,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"port", cfg.Port,
			"ledger_driver", cfg.LedgerDriver,
			"rule_set_version", eng.RuleSetVersion())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "shutdown failed: %v\n", err)
			return 1
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(stderr, "server failed: %v\n", err)
			return 1
		}
	}
	return 0
}
