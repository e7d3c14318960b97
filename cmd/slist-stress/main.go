package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/23skdu/slist/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := LoadConfig(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	if err := ParseFlags(args, &cfg); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if err := ValidateConfig(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 2
	}

	logger, err := logging.NewLogger(logging.Config{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		Output: os.Stdout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := NewRunner(cfg, logger).Run(ctx)
	if err != nil {
		logger.Error().Err(err).Str("mode", cfg.Mode).Msg("stress run aborted")
		return 1
	}

	ev := logger.Info()
	if !res.OK() {
		ev = logger.Error()
	}
	ev.Str("mode", res.Mode).
		Str("codec", res.Codec).
		Int64("pushes", res.Pushes).
		Int64("pushed", res.Pushed).
		Int64("popped", res.Popped).
		Int64("flushed", res.Flushed).
		Int64("missing", res.Missing).
		Int64("duplicates", res.Duplicates).
		Dur("elapsed", res.Elapsed).
		Float64("ops_per_sec", float64(res.Pushed+res.Popped)/res.Elapsed.Seconds()).
		Bool("ok", res.OK()).
		Msg("stress run finished")
	if !res.OK() {
		return 1
	}
	return 0
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("address", addr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Failed to start metrics server")
		}
	}()
	return srv
}
