package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rlmtrace/internal/events"
	"rlmtrace/internal/history"
	"rlmtrace/internal/journal"
	"rlmtrace/internal/logging"
	"rlmtrace/internal/observability"
	"rlmtrace/internal/server"
	"rlmtrace/internal/session"
	"rlmtrace/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Consume the configured stream and serve the trace over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewComponentLogger("Serve")

	metrics, err := observability.NewMetrics(cfg.Metrics)
	if err != nil {
		return err
	}
	store, err := history.New(cfg.HistorySize)
	if err != nil {
		return err
	}
	tracer := session.NewTracer(
		session.WithMetrics(metrics),
		session.WithHistory(store),
	)
	broadcaster := server.NewBroadcaster(logger, metrics)

	var writer *journal.Writer
	if cfg.JournalPath != "" {
		if writer, err = journal.NewWriter(cfg.JournalPath); err != nil {
			return err
		}
		defer func() { _ = writer.Close() }()
	}

	consumer := stream.NewConsumer(
		stream.WithMetrics(metrics),
		stream.WithRecordSink(func(rec events.Record) {
			broadcaster.Publish(rec)
			if writer != nil {
				writer.Append(rec)
			}
		}),
	)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewRouter(tracer, store, broadcaster, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.StreamURL != "" {
		binding := tracer.Begin()
		g.Go(func() error {
			runErr := consumer.Run(ctx, cfg.StreamURL, func(ev events.Event) {
				tracer.Apply(binding, ev)
			})
			tracer.Conclude(runErr)
			var transportErr *stream.TransportError
			if errors.As(runErr, &transportErr) {
				// The server keeps serving whatever trace exists.
				logger.Error("Stream failed: %v", transportErr)
			}
			return nil
		})
	} else {
		logger.Warn("No stream_url configured; serving an empty trace")
	}

	g.Go(func() error {
		logger.Info("Listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
