// Braind is the retrieval-and-context daemon: it keeps the memory store
// connection pool warm and serves health and Prometheus metrics. The
// actual indexing and retrieval operations are driven out-of-process by
// braindctl (typically from Claude Code hooks), not over an RPC surface
// this binary exposes, so the daemon's own job is small: hold the
// long-lived resources (store pool, embedding/LLM clients) that would be
// wasteful to reconnect on every CLI invocation, and report on their
// health.
//
// Usage:
//
//	# Start with defaults
//	braind
//
//	# Point at a specific config file
//	braind --config /etc/braind/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/braind/internal/appinit"
	"github.com/fyrsmithlabs/braind/internal/config"
	"github.com/fyrsmithlabs/braind/internal/logging"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: ~/.config/braind/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 && args[0] == "version" {
		printVersion()
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "braind: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("braind\nVersion:    %s\nCommit:     %s\nBuild Date: %s\n", version, gitCommit, buildDate)
}

// run initializes configuration, logging and every dependency, starts
// the health/metrics HTTP server, and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	zl := logger.Underlying()
	defer func() { _ = zl.Sync() }()

	zl.Info("starting braind",
		zap.Int("port", cfg.Server.Port),
		zap.String("memorystore_backend", cfg.MemoryStore.Backend),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	deps, err := appinit.Build(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("build dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			zl.Warn("error closing dependencies", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zl.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	zl.Info("braind shutdown complete")
	return nil
}
