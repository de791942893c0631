package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/classifier"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/db"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/metrics"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

// Sink is the output file of a run.
type Sink interface {
	EnsureHeader() error
	AppendRows(rows []models.PersistedRow) error
}

// HistoryStore mirrors runs and kept headlines. Its failures never abort
// a run.
type HistoryStore interface {
	SaveRun(ctx context.Context, run *models.RunDocument) error
	SaveHeadlines(ctx context.Context, runID string, results []models.ClassificationResult, now time.Time) error
}

type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Threshold  float64
	Summary    models.RunSummary
	Outcomes   []models.SourceOutcome
	Stats      classifier.BatchStats
	Kept       []models.ClassificationResult
}

type Pipeline struct {
	orchestrator *Orchestrator
	classifier   *classifier.Classifier
	sink         Sink
	threshold    float64
	logger       *zap.Logger

	history         HistoryStore
	metrics         *metrics.Metrics
	metricsTextfile string
	now             func() time.Time
}

type Option func(*Pipeline)

func WithHistory(h HistoryStore) Option {
	return func(p *Pipeline) { p.history = h }
}

// WithMetrics records kept and skipped counts on m and, when textfile is
// set, writes the registry there after each run.
func WithMetrics(m *metrics.Metrics, textfile string) Option {
	return func(p *Pipeline) {
		p.metrics = m
		p.metricsTextfile = textfile
	}
}

func NewPipeline(o *Orchestrator, c *classifier.Classifier, sink Sink, threshold float64, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		orchestrator: o,
		classifier:   c,
		sink:         sink,
		threshold:    threshold,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run scrapes every source, classifies the aggregate and appends the kept
// rows. The returned error is fatal: the output file could not be written.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
		Threshold: p.threshold,
	}
	log := p.logger.With(zap.String("run_id", report.RunID))
	log.Info("run started", zap.Float64("threshold", p.threshold))

	if err := p.sink.EnsureHeader(); err != nil {
		log.Error("output file unusable, aborting", zap.Error(err))
		return nil, err
	}

	scrape := p.orchestrator.Run(ctx)
	report.Summary = scrape.Summary
	report.Outcomes = scrape.Outcomes

	report.Kept, report.Stats = p.classifier.FilterBatch(scrape.Records, p.threshold)

	rows := make([]models.PersistedRow, 0, len(report.Kept))
	for _, r := range report.Kept {
		rows = append(rows, r.Row())
	}
	if err := p.sink.AppendRows(rows); err != nil {
		log.Error("failed to append rows, aborting", zap.Error(err))
		return nil, err
	}
	report.FinishedAt = p.now()

	if p.metrics != nil {
		p.metrics.ObserveSkipped(report.Stats.Skipped)
		for _, r := range report.Kept {
			p.metrics.ObserveKept(r.Record.Source)
		}
	}

	// A cancelled run still records what it completed.
	p.mirror(context.WithoutCancel(ctx), log, report)
	p.flushMetrics(log, report.FinishedAt)

	log.Info("run finished",
		zap.Int("sources_attempted", report.Summary.Attempted),
		zap.Int("sources_succeeded", report.Summary.Succeeded),
		zap.Int("sources_failed", report.Summary.Failed),
		zap.Int("records_scraped", report.Summary.Records),
		zap.Int("records_skipped", report.Stats.Skipped),
		zap.Int("records_kept", report.Stats.Kept),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (p *Pipeline) mirror(ctx context.Context, log *zap.Logger, report *Report) {
	if p.history == nil {
		return
	}
	doc := db.BuildRunDocument(db.Run{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Threshold:  report.Threshold,
		Summary:    report.Summary,
		Outcomes:   report.Outcomes,
		Skipped:    report.Stats.Skipped,
		Kept:       report.Stats.Kept,
	})
	if err := p.history.SaveRun(ctx, doc); err != nil {
		log.Warn("failed to save run history", zap.Error(err))
	}
	if err := p.history.SaveHeadlines(ctx, report.RunID, report.Kept, report.FinishedAt); err != nil {
		log.Warn("failed to save headlines", zap.Error(err))
	}
}

func (p *Pipeline) flushMetrics(log *zap.Logger, finished time.Time) {
	if p.metrics == nil || p.metricsTextfile == "" {
		return
	}
	if err := p.metrics.WriteTextfile(p.metricsTextfile, finished); err != nil {
		log.Warn("failed to write metrics textfile", zap.String("path", p.metricsTextfile), zap.Error(err))
	}
}
