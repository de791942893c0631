package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/adapter"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/metrics"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

// Orchestrator runs every registered adapter and aggregates their records.
// One adapter failing, or panicking, never affects the others.
type Orchestrator struct {
	adapters []adapter.Adapter
	workers  int
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewOrchestrator(adapters []adapter.Adapter, workers int, m *metrics.Metrics, logger *zap.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		adapters: adapters,
		workers:  workers,
		metrics:  m,
		logger:   logger,
	}
}

// ScrapeResult is the aggregate of one orchestrator run. Records are in
// registry order, and within a source in the order the adapter returned.
type ScrapeResult struct {
	Records  []models.NormalizedRecord
	Summary  models.RunSummary
	Outcomes []models.SourceOutcome
}

type sourceResult struct {
	records []models.NormalizedRecord
	outcome models.SourceOutcome
}

func (o *Orchestrator) Run(ctx context.Context) ScrapeResult {
	slots := make([]sourceResult, len(o.adapters))

	if o.workers == 1 || len(o.adapters) <= 1 {
		for i, a := range o.adapters {
			slots[i] = o.runOne(ctx, a)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(o.workers)
		for i, a := range o.adapters {
			g.Go(func() error {
				slots[i] = o.runOne(ctx, a)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := ScrapeResult{Outcomes: make([]models.SourceOutcome, 0, len(slots))}
	for _, slot := range slots {
		res.Summary.Attempted++
		if slot.outcome.OK() {
			res.Summary.Succeeded++
		} else {
			res.Summary.Failed++
		}
		res.Records = append(res.Records, slot.records...)
		res.Outcomes = append(res.Outcomes, slot.outcome)
	}
	res.Summary.Records = len(res.Records)

	o.logger.Info("scrape finished",
		zap.Int("attempted", res.Summary.Attempted),
		zap.Int("succeeded", res.Summary.Succeeded),
		zap.Int("failed", res.Summary.Failed),
		zap.Int("records", res.Summary.Records),
	)
	return res
}

func (o *Orchestrator) runOne(ctx context.Context, a adapter.Adapter) (out sourceResult) {
	name := a.Name()
	start := time.Now()
	out.outcome.Source = name
	log := o.logger.With(zap.String("source", name))

	defer func() {
		if r := recover(); r != nil {
			out.records = nil
			out.outcome.Records = 0
			out.outcome.Err = &failure.Error{
				Kind:   failure.KindPanic,
				Source: name,
				Msg:    "adapter panicked",
				Err:    fmt.Errorf("%v", r),
			}
			log.Error("source panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		out.outcome.Duration = time.Since(start)
		if o.metrics != nil {
			o.metrics.ObserveSource(name, out.outcome.Records, out.outcome.Err, out.outcome.Duration)
		}
	}()

	log.Info("source started")
	candidates, err := a.FetchListing(ctx)
	if err != nil {
		ferr := failure.Wrap(failure.KindParse, "fetch listing", err)
		if ferr.Source == "" {
			ferr = ferr.WithSource(name)
		}
		out.outcome.Err = ferr
		log.Warn("source failed",
			zap.String("kind", string(ferr.Kind)),
			zap.Error(ferr),
			zap.Duration("duration", time.Since(start)),
		)
		return out
	}

	out.records = make([]models.NormalizedRecord, 0, len(candidates))
	for _, c := range candidates {
		out.records = append(out.records, c.Normalize(name))
	}
	out.outcome.Records = len(out.records)
	log.Info("source succeeded",
		zap.Int("records", len(out.records)),
		zap.Duration("duration", time.Since(start)),
	)
	return out
}
