package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"invoice-console/internal/backend"
	"invoice-console/internal/config"
	"invoice-console/internal/console"
	"invoice-console/internal/events"
	"invoice-console/internal/health"
	"invoice-console/internal/history"
	"invoice-console/internal/metrics"
	"invoice-console/internal/session"
	"invoice-console/internal/view"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "serve":
		runServe()
	case "generate":
		runGenerate(args)
	case "health":
		runHealth(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\nusage: invoice-console [serve|generate|health] [flags]\n", cmd)
		os.Exit(2)
	}
}

func runServe() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel)
	logConfig(logger, cfg)

	client, err := backend.NewClient(cfg.BackendURL, cfg.GenerateTimeout)
	if err != nil {
		logger.Error("failed to create backend client", "err", err)
		os.Exit(2)
	}

	m := metrics.New()
	bus := events.NewBus(cfg.EventBuffer)
	poller := health.NewPoller(client, cfg.HealthCheckInterval, cfg.HealthCheckTimeout, m, bus, logger)

	hist, err := openHistory(cfg, logger)
	if err != nil {
		logger.Error("failed to open attempt storage", "err", err)
		os.Exit(2)
	}

	sessions := session.NewStore(cfg.SessionTTL)

	h := console.NewHandler(cfg, sessions, client, poller, bus, m, hist, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting invoice-console", "listen", cfg.ListenAddr, "backend", cfg.BackendURL)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	poller.Shutdown()
	bus.Shutdown()
	sessions.Stop()
	if hist != nil {
		_ = hist.Close()
	}
}

// openHistory returns the configured attempt store, or nil when disabled.
func openHistory(cfg config.Config, logger *slog.Logger) (history.Store, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		return history.NewSQLiteStore(cfg.StoragePath, cfg.StorageMaxRows, logger)
	case config.StorageMemory:
		return history.NewMemoryStore(cfg.StorageMaxRows), nil
	default:
		return nil, nil
	}
}

// runGenerate submits one generation from the command line, without a session
// or a browser: stage, submit, write the artifacts next to you.
func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	poPath := fs.String("po", "", "purchase order PDF (required)")
	tsGlob := fs.String("timesheets", "", "glob matching timesheet PDFs (required)")
	tplPath := fs.String("template", "", "invoice template XLSX (required)")
	cfgPath := fs.String("engineer-config", "", "engineer config JSON file")
	strict := fs.Bool("strict", true, "fail on engineers missing from the config")
	outPath := fs.String("out", view.ReportFilename, "where to write the report")
	auditPath := fs.String("audit-out", view.AuditFilename, "where to write the audit trail")
	backendURL := fs.String("backend", envOr("BACKEND_URL", "http://127.0.0.1:8000"), "invoice backend base URL")
	timeout := fs.Duration("timeout", 2*time.Minute, "generation timeout")
	fs.Parse(args)

	if *poPath == "" || *tsGlob == "" || *tplPath == "" {
		fmt.Fprintln(os.Stderr, "generate: -po, -timesheets, and -template are required")
		fs.Usage()
		os.Exit(2)
	}

	req := backend.GenerateRequest{
		PO:       mustReadFile(*poPath),
		Template: mustReadFile(*tplPath),
		Strict:   *strict,
	}

	matches, err := filepath.Glob(*tsGlob)
	if err != nil || len(matches) == 0 {
		fmt.Fprintf(os.Stderr, "generate: no timesheets match %q\n", *tsGlob)
		os.Exit(2)
	}
	sort.Strings(matches)
	for _, m := range matches {
		req.Timesheets = append(req.Timesheets, mustReadFile(m))
	}

	if *cfgPath != "" {
		data, err := os.ReadFile(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate:", err)
			os.Exit(2)
		}
		req.EngineerConfig = string(data)
	}

	client, err := backend.NewClient(*backendURL, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	resp, err := client.Generate(ctx, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(1)
	}

	if !resp.Success {
		fmt.Fprintf(os.Stderr, "generation failed (%s):\n", resp.ErrorType)
		for _, e := range resp.Errors {
			fmt.Fprintln(os.Stderr, " -", e)
		}
		os.Exit(1)
	}

	report, err := view.DecodeReport(resp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, report, 0644); err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(1)
	}

	if resp.Audit != nil {
		audit, err := view.AuditJSON(resp)
		if err == nil {
			err = os.WriteFile(*auditPath, audit, 0644)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate: audit:", err)
			os.Exit(1)
		}
	}

	if s := resp.Summary; s != nil {
		fmt.Printf("contract %s: %d engineers, %s, grand total %s\n",
			s.ContractNumber, s.TotalEngineers, view.FormatHours(s.TotalHours), view.FormatUSD(s.GrandTotalUSD))
	}
	fmt.Println("wrote", *outPath)
}

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	backendURL := fs.String("backend", envOr("BACKEND_URL", "http://127.0.0.1:8000"), "invoice backend base URL")
	timeout := fs.Duration("timeout", 5*time.Second, "health check timeout")
	fs.Parse(args)

	client, err := backend.NewClient(*backendURL, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "health:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		fmt.Println("offline:", err)
		os.Exit(1)
	}
	fmt.Println("ok")
}

func mustReadFile(path string) backend.File {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(2)
	}
	return backend.File{Name: filepath.Base(path), Data: data}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newLogger(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch level {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "info":
		lvl.Set(slog.LevelInfo)
	case "warn", "warning":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

func logConfig(logger *slog.Logger, cfg config.Config) {
	logger.Info("configuration",
		"listen_addr", cfg.ListenAddr,
		"backend_url", cfg.BackendURL,
		"session_ttl", cfg.SessionTTL,
		"max_upload_bytes", cfg.MaxUploadBytes,
		"strict_default", cfg.StrictDefault,
		"generate_timeout", cfg.GenerateTimeout,
		"storage", string(cfg.Storage),
		"storage_path", cfg.StoragePath,
		"storage_max_rows", cfg.StorageMaxRows,
		"health_check_interval", cfg.HealthCheckInterval,
		"health_check_timeout", cfg.HealthCheckTimeout,
		"event_buffer", cfg.EventBuffer,
		"cors_allow_origin", cfg.CORSAllowOrigin,
		"log_level", cfg.LogLevel,
	)
}
