package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/classifier"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/db"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
)

func newStatsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-source totals from the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := cc.load()
			if err != nil {
				return err
			}
			if !cfg.DB.Enabled() {
				return failure.Validation("db.connection is not configured", nil)
			}

			store, err := db.NewMongoDB(cmd.Context(), cfg.DB, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Warn("failed to close history store", zap.Error(err))
				}
			}()

			out := cmd.OutOrStdout()
			last, err := store.LastRun(cmd.Context())
			if err != nil {
				return err
			}
			if last == nil {
				fmt.Fprintln(out, "no runs recorded yet")
				return nil
			}
			fmt.Fprintf(out, "last run %s at %s: %d/%d sources ok, %d kept of %d\n",
				last.ID,
				time.Unix(last.FinishedAt, 0).UTC().Format(time.RFC3339),
				last.Succeeded, last.Attempted, last.Kept, last.Scraped)

			stats, err := store.GetSourceStats(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(stats))
			for _, s := range stats {
				rows = append(rows, []string{
					s.Source,
					strconv.Itoa(s.Headlines),
					classifier.FormatScore(s.AvgConfidence),
					strconv.Itoa(s.MaxSeenCount),
				})
			}
			fmt.Fprintln(out, renderTable(statsColumns, rows, nil))
			return nil
		},
	}
}
