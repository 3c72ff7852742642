// Package main is the entry point for the overdue task rescheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"overdue/internal/backend/googletasks"
	"overdue/internal/backend/todoist"
	"overdue/internal/config"
	"overdue/internal/exitcode"
	"overdue/internal/logging"
	"overdue/internal/reschedule"
	"overdue/internal/service"
)

func main() {
	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Stderr)
	stop()
	os.Exit(code)
}

// ServiceFactory creates the backend selected by cfg.
type ServiceFactory func(ctx context.Context, cfg *config.Config) (service.Service, error)

func newService(ctx context.Context, cfg *config.Config) (service.Service, error) {
	switch cfg.Backend {
	case config.BackendGoogleTasks:
		return googletasks.New(ctx, cfg)
	default:
		return todoist.New(ctx, cfg)
	}
}

func run(ctx context.Context, errOut io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet: the level and format come from the same config.
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.ConfigError
	}
	log := logging.New(errOut, cfg.LogLevel, cfg.LogFormat)
	return execute(ctx, cfg, log, newService)
}

// execute builds the backend and runs one batch. Split from run so the
// exit-code mapping can be tested without the environment.
func execute(ctx context.Context, cfg *config.Config, log zerolog.Logger, factory ServiceFactory) int {
	svc, err := factory(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.Backend).Msg("failed to create backend client")
		return exitcode.ConfigError
	}

	runner := reschedule.New(svc,
		reschedule.WithLogger(log),
		reschedule.WithLocation(cfg.Location),
		reschedule.WithFilter(cfg.Filter),
		reschedule.WithConcurrency(cfg.Concurrency),
		reschedule.WithRateLimit(rate.Limit(cfg.RatePerSec), cfg.RateBurst),
	)

	if _, err := runner.Run(ctx); err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return exitcode.ConfigError
		}
		return exitcode.BackendError
	}
	return exitcode.Success
}
