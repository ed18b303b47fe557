package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/peteski22/sitebridge/internal/metrics"
	"github.com/peteski22/sitebridge/internal/sync"
)

const (
	defaultSchedule  = "@daily"
	defaultServeAddr = ":9090"
	shutdownTimeout  = 10 * time.Second
)

// cronParser accepts five-field expressions and descriptors such as @hourly.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// cycleRunner runs sync cycles and reports integration status.
type cycleRunner interface {
	// RunCycle runs one sync cycle across every provider.
	RunCycle(ctx context.Context) map[string]*sync.Result

	// Snapshot builds the report from the last cycle without contacting any provider.
	Snapshot(ctx context.Context) sync.Report
}

// serveConfig holds the serve command settings.
type serveConfig struct {
	// addr is the HTTP listen address.
	addr string

	// logger is the structured logger.
	logger *slog.Logger

	// metrics serves the Prometheus endpoint.
	metrics http.Handler

	// ready is called with the bound address once the server accepts connections, may be nil.
	ready func(addr string)

	// runNow runs a cycle immediately instead of waiting for the first scheduled time.
	runNow bool

	// schedule is the cron expression for sync cycles.
	schedule string
}

// newServeCmd creates the serve command.
func newServeCmd(opts rootOptions) *cobra.Command {
	var (
		addr     string
		runNow   bool
		schedule string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run sync cycles on a schedule and expose metrics and status over HTTP",
		Long: `serve runs a sync cycle on every tick of a cron schedule and serves:

  /metrics  Prometheus metrics
  /status   the integration report as JSON
  /healthz  liveness`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := parseSchedule(schedule); err != nil {
				return err
			}

			collector, err := metrics.New()
			if err != nil {
				return fmt.Errorf("creating metrics collector: %w", err)
			}

			svc, err := newLocalService(cmd.Context(), opts, localServiceFlags{}, collector)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := opts.logger
			if logger == nil {
				logger = slog.Default()
			}

			return serve(ctx, svc, serveConfig{
				addr:     addr,
				logger:   logger,
				metrics:  collector.Handler(),
				runNow:   runNow,
				schedule: schedule,
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultServeAddr, "HTTP listen address")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run a cycle at startup")
	cmd.Flags().StringVar(&schedule, "schedule", defaultSchedule, "cron schedule for sync cycles")

	return cmd
}

// parseSchedule parses a cron expression.
func parseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

// serve runs scheduled cycles and the HTTP server until ctx is done.
func serve(ctx context.Context, runner cycleRunner, cfg serveConfig) error {
	sched, err := parseSchedule(cfg.schedule)
	if err != nil {
		return err
	}

	// Overlapping ticks are skipped while a cycle is still running.
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		start := time.Now()
		cfg.logger.Info("scheduled sync starting")
		logResults(cfg.logger, runner.RunCycle(ctx))
		cfg.logger.Info("scheduled sync complete", "duration", time.Since(start))
	}))

	scheduler := cron.New(cron.WithParser(cronParser))
	scheduler.Schedule(sched, job)

	listener, err := net.Listen("tcp", cfg.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.addr, err)
	}

	server := &http.Server{
		Handler:           newServeMux(runner, cfg.metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	scheduler.Start()
	if cfg.runNow {
		go job.Run()
	}

	cfg.logger.Info("serving", "addr", listener.Addr().String(), "schedule", cfg.schedule)
	if cfg.ready != nil {
		cfg.ready(listener.Addr().String())
	}

	var serveErr error
	select {
	case <-ctx.Done():
		cfg.logger.Info("shutting down")
	case serveErr = <-errChan:
		serveErr = fmt.Errorf("serving HTTP: %w", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("shutting down HTTP server: %w", err))
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		cfg.logger.Warn("sync cycle still running at shutdown")
	}

	return serveErr
}

// newServeMux routes the metrics, status and liveness endpoints.
func newServeMux(runner cycleRunner, metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := writeJSON(w, runner.Snapshot(r.Context())); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
