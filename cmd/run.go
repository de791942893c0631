package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/adapter"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/app"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/classifier"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/config"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/db"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/metrics"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/sink"
)

func newRunCommand(cc *commandContext) *cobra.Command {
	var threshold float64
	var output string
	var category string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape every enabled source and append crime headlines to the output file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := cc.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("threshold") {
				if threshold < 0 || threshold > 1 {
					return failure.Validation(fmt.Sprintf("threshold %v outside [0,1]", threshold), nil)
				}
				cfg.Logic.Threshold = threshold
			}
			if output != "" {
				cfg.Output.Path = output
			}
			if category != "" {
				if cfg, err = cfg.ForCategory(category); err != nil {
					return failure.Validation("category", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := runPipeline(ctx, cfg, log)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d headlines kept, appended to %s\n",
				report.Stats.Kept, report.Stats.Total, cfg.Output.Path)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&threshold, "threshold", "t", config.DefaultThreshold, "Minimum crime probability for a headline to be kept")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV path (overrides output.path)")
	cmd.Flags().StringVar(&category, "category", "", "Scrape only the named category page of the sources that define it")
	return cmd
}

// runPipeline wires one run. The model is loaded before any source is
// contacted so a broken model never costs a scrape.
func runPipeline(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app.Report, error) {
	model, err := classifier.LoadModel(cfg.Model.Path)
	if err != nil {
		log.Error("failed to load model", zap.String("path", cfg.Model.Path), zap.Error(err))
		return nil, err
	}

	adapters, err := adapter.FromConfig(cfg, newFetcher(cfg), log)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	opts := []app.Option{app.WithMetrics(m, cfg.Metrics.Textfile)}

	if cfg.DB.Enabled() {
		store, err := db.NewMongoDB(ctx, cfg.DB, log)
		if err != nil {
			log.Warn("history store unavailable, continuing without it", zap.Error(err))
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					log.Warn("failed to close history store", zap.Error(err))
				}
			}()
			opts = append(opts, app.WithHistory(store))
		}
	}

	pipeline := app.NewPipeline(
		app.NewOrchestrator(adapters, cfg.Logic.MaxConcurrentSources, m, log),
		classifier.New(model, log),
		sink.NewCSVSink(cfg.Output.Path, log),
		cfg.Logic.Threshold,
		log,
		opts...,
	)
	return pipeline.Run(ctx)
}

func renderReport(report *app.Report) string {
	rows := make([][]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		status, reason := "ok", ""
		if !o.OK() {
			status = string(failure.KindOf(o.Err))
			reason = o.Err.Error()
		}
		rows = append(rows, []string{
			o.Source,
			status,
			strconv.Itoa(o.Records),
			o.Duration.Round(time.Millisecond).String(),
			reason,
		})
	}
	footer := []string{
		"total",
		fmt.Sprintf("%d/%d ok", report.Summary.Succeeded, report.Summary.Attempted),
		strconv.Itoa(report.Summary.Records),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String(),
	}
	return renderTable(reportColumns, rows, footer)
}
