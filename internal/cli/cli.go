// ============================================================================
// Taskpool CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra command tree for the taskpool demo/bench binary.
//
// Command Structure:
//   taskpool                       # Root command
//   ├── run                        # Run a demo workload through a pool
//   │   └── --config, -c           # Specify config file
//   └── bench                      # Measure submit-to-drain throughput
//       ├── --jobs, -n             # Number of no-op jobs to submit
//       └── --config, -c           # Specify config file
//
// run Command:
//   Builds a WorkPool from config, submits one task aimed at each
//   AsyncResult terminal category (success, domain error, cancel,
//   interruption), optionally serves /metrics, and waits for the pool
//   to drain before shutting down on SIGINT/SIGTERM or completion.
//   The cancel task ends CANCELLED only if Cancel runs before a worker
//   starts it. The interruption task ends INTERRUPTED only if the pool
//   is stopped while it is still waiting; otherwise it succeeds after
//   10 seconds.
//
// bench Command:
//   Submits --jobs no-op tasks and reports submit-to-drain wall time and
//   throughput.
//
// ============================================================================

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kellanburke/taskpool/internal/config"
	"github.com/kellanburke/taskpool/internal/metrics"
	"github.com/kellanburke/taskpool/internal/workpool"
	"github.com/kellanburke/taskpool/pkg/asyncresult"
)

var log = slog.Default()

var configFile string

// BuildCLI assembles the taskpool root command and its subcommands.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "taskpool",
		Short: "taskpool: an AsyncResult-driven worker pool",
		Long: `taskpool demonstrates a bounded, resizable worker pool built on
AsyncResult handles: cooperative cancellation, category-filtered
completion callbacks, and Prometheus metrics over every terminal
outcome.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (defaults built in if omitted)")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildBenchCommand())

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.Load(configFile)
}

func buildRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a demo workload through the pool",
		Long:  "Submits a handful of tasks spanning every terminal category, optionally serving Prometheus metrics, then waits for the pool to drain.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
	return cmd
}

func runDemo() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("cli: %w", err)
	}

	m := metrics.New()
	pool := workpool.New(workpool.Config{Workers: cfg.Pool.Workers, MaxQueue: cfg.Pool.MaxQueue}, m)
	if err := pool.Run(); err != nil {
		return fmt.Errorf("cli: start pool: %w", err)
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(m, cfg.Metrics.Addr)
	}

	log.Info("running demo workload", "workers", cfg.Pool.Workers, "max_queue", cfg.Pool.MaxQueue)
	if err := submitDemoWorkload(pool); err != nil {
		return fmt.Errorf("cli: submit demo workload: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	drained := make(chan struct{})
	go func() {
		pool.Wait(0)
		close(drained)
	}()

	select {
	case <-drained:
		log.Info("workload drained")
	case <-sigCh:
		log.Info("received shutdown signal")
	}

	if err := pool.Stop(5 * time.Second); err != nil && !errors.Is(err, workpool.ErrNotRunning) {
		return fmt.Errorf("cli: stop pool: %w", err)
	}
	log.Info("stopped")
	return nil
}

// submitDemoWorkload submits one task aimed at each AsyncResult terminal
// category, logging each outcome from the callback passed to Submit. The
// cancel and interruption tasks reach their target status only under the
// timing described in the run command notes above.
func submitDemoWorkload(pool *workpool.WorkPool) error {
	logOutcome := func(label string) asyncresult.Callback {
		return func(ar *asyncresult.AsyncResult) {
			log.Info("task finished", "task", label, "status", ar.Status().String())
		}
	}

	if _, err := pool.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
		asyncresult.SetResult(ar, "ok")
		return nil
	}, logOutcome("success")); err != nil {
		return err
	}

	if _, err := pool.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
		return errors.New("demo: intentional domain error")
	}, logOutcome("error")); err != nil {
		return err
	}

	cancelled, err := pool.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
		return nil
	}, logOutcome("cancel"))
	if err != nil {
		return err
	}
	cancelled.Cancel()

	if _, err := pool.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error {
		select {
		case <-ctx.Done():
			return fmt.Errorf("demo: unwinding: %w", asyncresult.ErrInterrupted)
		case <-time.After(10 * time.Second):
			return nil
		}
	}, logOutcome("interrupt")); err != nil {
		return err
	}

	return nil
}

func serveMetrics(m *metrics.Metrics, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	log.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server error", "error", err)
	}
}

func buildBenchCommand() *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure submit-to-drain throughput",
		Long:  "Submits a batch of no-op tasks and reports wall time and throughput from submission through the pool draining.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(jobs)
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "n", 10000, "number of no-op jobs to submit")
	return cmd
}

func runBench(jobs int) error {
	if jobs <= 0 {
		return fmt.Errorf("cli: --jobs must be positive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("cli: %w", err)
	}

	pool := workpool.New(workpool.Config{Workers: cfg.Pool.Workers, MaxQueue: cfg.Pool.MaxQueue}, metrics.New())
	if err := pool.Run(); err != nil {
		return fmt.Errorf("cli: start pool: %w", err)
	}

	start := time.Now()
	submitted := 0
	for submitted < jobs {
		_, err := pool.Submit(func(ctx context.Context, ar *asyncresult.AsyncResult) error { return nil }, nil)
		switch {
		case err == nil:
			submitted++
		case errors.Is(err, workpool.ErrPoolFull):
			time.Sleep(time.Millisecond)
		default:
			pool.Stop(time.Second)
			return fmt.Errorf("cli: submit: %w", err)
		}
	}

	pool.Wait(0)
	elapsed := time.Since(start)
	pool.Stop(time.Second)

	log.Info("bench complete", "jobs", jobs, "elapsed", elapsed, "jobs_per_sec", float64(jobs)/elapsed.Seconds())
	return nil
}
