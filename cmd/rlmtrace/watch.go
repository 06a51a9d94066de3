package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rlmtrace/internal/events"
	"rlmtrace/internal/history"
	"rlmtrace/internal/journal"
	"rlmtrace/internal/observability"
	"rlmtrace/internal/session"
	"rlmtrace/internal/stream"
)

var watchCmd = &cobra.Command{
	Use:   "watch [stream-url]",
	Short: "Follow a live execution stream and print its trace",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	url := cfg.StreamURL
	if len(args) > 0 {
		url = args[0]
	}
	if url == "" {
		return errors.New("no stream url: pass one as an argument or set stream_url")
	}

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

	var consumerOpts []stream.Option
	consumerOpts = append(consumerOpts, stream.WithMetrics(metrics))
	if cfg.JournalPath != "" {
		writer, err := journal.NewWriter(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer func() { _ = writer.Close() }()
		consumerOpts = append(consumerOpts, stream.WithRecordSink(writer.Append))
	}
	consumer := stream.NewConsumer(consumerOpts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.RunTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.RunTimeoutSeconds)*time.Second)
		defer cancel()
	}

	binding := tracer.Begin()
	runErr := consumer.Run(ctx, url, func(ev events.Event) {
		if tracer.Apply(binding, ev) {
			fmt.Println(eventLine(ev))
		}
	})
	tracer.Conclude(runErr)

	printSummary(tracer.Snapshot(), tracer.Stats())

	var transportErr *stream.TransportError
	if errors.As(runErr, &transportErr) {
		return transportErr
	}
	return nil
}
