package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/adapter"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/app"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/metrics"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

type fakeAdapter struct {
	name       string
	candidates []models.RawCandidate
	err        error
	panicWith  any
	delay      time.Duration
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) FetchListing(ctx context.Context) ([]models.RawCandidate, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func (f *fakeAdapter) FetchFullText(context.Context, string) (string, error) {
	return "", failure.Parse("full text", failure.ErrNoContent)
}

func (f *fakeAdapter) FetchAuxiliary(context.Context, string) ([]string, error) {
	return nil, failure.Parse("auxiliary", failure.ErrNoContent)
}

func candidates(prefix string, n int) []models.RawCandidate {
	out := make([]models.RawCandidate, 0, n)
	for i := range n {
		out = append(out, models.RawCandidate{
			Title: prefix + " headline number " + string(rune('a'+i)),
			Link:  "https://" + prefix + ".com/a/" + string(rune('a'+i)),
		})
	}
	return out
}

func registry() []adapter.Adapter {
	return []adapter.Adapter{
		&fakeAdapter{name: "bbc", candidates: candidates("bbc", 2), delay: 30 * time.Millisecond},
		&fakeAdapter{name: "voa", err: failure.Network("get listing", errors.New("i/o timeout"))},
		&fakeAdapter{name: "dw", panicWith: "index out of range"},
		&fakeAdapter{name: "ap", candidates: candidates("ap", 3)},
		&fakeAdapter{name: "nyt", err: errors.New("plain error")},
	}
}

func sources(records []models.NormalizedRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Source)
	}
	return out
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	m := metrics.New()
	res := app.NewOrchestrator(registry(), 1, m, zap.New(core)).Run(context.Background())

	assert.Equal(t, models.RunSummary{Attempted: 5, Succeeded: 2, Failed: 3, Records: 5}, res.Summary)
	assert.Equal(t, []string{"bbc", "bbc", "ap", "ap", "ap"}, sources(res.Records))
	assert.Equal(t, "https://bbc.com/a/a", res.Records[0].Link)
	assert.Equal(t, "https://ap.com/a/c", res.Records[4].Link)

	require.Len(t, res.Outcomes, 5)
	assert.True(t, res.Outcomes[0].OK())
	assert.Equal(t, 2, res.Outcomes[0].Records)
	assert.Equal(t, failure.KindNetwork, failure.KindOf(res.Outcomes[1].Err))
	assert.Equal(t, failure.KindPanic, failure.KindOf(res.Outcomes[2].Err))
	assert.Contains(t, res.Outcomes[2].Err.Error(), "dw: panic: adapter panicked: index out of range")
	assert.Equal(t, failure.KindParse, failure.KindOf(res.Outcomes[4].Err))
	assert.Contains(t, res.Outcomes[4].Err.Error(), "nyt:")

	assert.Equal(t, 3, logs.FilterMessage("source failed").Len()+logs.FilterMessage("source panicked").Len())
	panicked := logs.FilterMessage("source panicked").All()
	require.Len(t, panicked, 1)
	assert.Equal(t, "dw", panicked[0].ContextMap()["source"])

	assert.InDelta(t, 1, testutil.ToFloat64(m.SourceRuns.WithLabelValues("dw", metrics.OutcomeFailure)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.RecordsScraped.WithLabelValues("ap")), 0)
}

func TestOrchestrator_ParallelKeepsRegistryOrder(t *testing.T) {
	t.Parallel()

	sequential := app.NewOrchestrator(registry(), 1, nil, zap.NewNop()).Run(context.Background())
	parallel := app.NewOrchestrator(registry(), 4, nil, zap.NewNop()).Run(context.Background())

	assert.Equal(t, sequential.Records, parallel.Records)
	assert.Equal(t, sequential.Summary, parallel.Summary)
	for i := range sequential.Outcomes {
		assert.Equal(t, sequential.Outcomes[i].Source, parallel.Outcomes[i].Source)
		assert.Equal(t, sequential.Outcomes[i].OK(), parallel.Outcomes[i].OK())
	}
}

func TestOrchestrator_AllFail(t *testing.T) {
	t.Parallel()

	res := app.NewOrchestrator([]adapter.Adapter{
		&fakeAdapter{name: "a", err: failure.Parse("listing", failure.ErrNoArticles)},
		&fakeAdapter{name: "b", panicWith: errors.New("nil map")},
	}, 2, nil, zap.NewNop()).Run(context.Background())

	assert.Equal(t, models.RunSummary{Attempted: 2, Failed: 2}, res.Summary)
	assert.Empty(t, res.Records)
	assert.ErrorIs(t, res.Outcomes[0].Err, failure.ErrNoArticles)
}

func TestOrchestrator_Empty(t *testing.T) {
	t.Parallel()

	res := app.NewOrchestrator(nil, 0, nil, zap.NewNop()).Run(context.Background())
	assert.Equal(t, models.RunSummary{}, res.Summary)
	assert.Empty(t, res.Outcomes)
}
