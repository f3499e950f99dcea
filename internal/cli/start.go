package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/internal/tracing"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	startFor      time.Duration
	startEntryURL string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the replay pipeline in the foreground",
	Long: `Run the retry scheduler over the data directory in the foreground until
interrupted. Queued events are replayed on the configured schedule, and consent
granted from another process resumes sending immediately.`,
	Args: cobra.NoArgs,
	RunE: withEnvironment(runStart),
}

func init() {
	startCmd.Flags().DurationVar(&startFor, "for", 0, "stop after this long (0 runs until interrupted)")
	startCmd.Flags().StringVar(&startEntryURL, "entry-url", "", "entry URL whose utm_* parameters seed attribution")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string, env *environment) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if startFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, startFor)
		defer cancel()
	}

	logger := env.log.Component("cli")

	if env.cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(env.cfg.Tracing.ServiceName,
			sdktrace.NewBatchSpanProcessor(tracing.NewLogExporter(env.log.GetZerolog()))); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Failed to shut down tracing")
			}
		}()
	}

	if env.cfg.Metrics.Enabled {
		srv := startMetricsServer(env.cfg.Metrics.Addr, func(err error) {
			logger.Error().Err(err).Msg("Metrics server failed")
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info().Str("addr", env.cfg.Metrics.Addr).Msg("Serving metrics")
	}

	env.tracker.Init(ctx, startEntryURL)
	env.tracker.NotifyOnline()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pipeline running (collector %s, schedule %s)\n", env.cfg.Collector.URL, env.cfg.Retry.Schedule)

	<-ctx.Done()

	fmt.Fprintf(out, "Pipeline stopped, %d event(s) queued\n", env.tracker.Stats(context.Background()).Queued)
	return nil
}

func startMetricsServer(addr string, onError func(error)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			onError(err)
		}
	}()

	return srv
}
