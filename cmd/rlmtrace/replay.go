package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rlmtrace/internal/events"
	"rlmtrace/internal/history"
	"rlmtrace/internal/journal"
	"rlmtrace/internal/observability"
	"rlmtrace/internal/session"
)

var replayCmd = &cobra.Command{
	Use:   "replay <journal-file>",
	Short: "Rebuild a trace from a journaled run",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	metrics, err := observability.NewMetrics(observability.MetricsConfig{})
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
	binding := tracer.Begin()

	dropped := 0
	err = journal.ReplayFile(args[0], func(rec events.Record) {
		ev, ok := events.Decode(rec)
		if !ok {
			dropped++
			return
		}
		if tracer.Apply(binding, ev) {
			fmt.Println(eventLine(ev))
		}
	})
	if err != nil {
		return err
	}

	printSummary(tracer.Snapshot(), tracer.Stats())
	if dropped > 0 {
		fmt.Println(gray(fmt.Sprintf("%d records dropped at decode", dropped)))
	}
	return nil
}
