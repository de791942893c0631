package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/adapter"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/app"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/classifier"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/config"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/fetch"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/metrics"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/sink"
)

const csvHeader = "source,title,url,confidence_score\n"

type fixedScorer map[string]float64

func (f fixedScorer) Score(text string) float64 { return f[text] }

var scores = fixedScorer{
	"Police arrest suspect in downtown robbery": 0.91,
	"Local bakery opens new branch":             0.10,
	"Court convicts two men over fraud scheme":  0.8765,
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newPipeline(t *testing.T, adapters []adapter.Adapter, out string, opts ...app.Option) *app.Pipeline {
	t.Helper()
	logger := zap.NewNop()
	return app.NewPipeline(
		app.NewOrchestrator(adapters, 1, nil, logger),
		classifier.New(scores, logger),
		sink.NewCSVSink(out, logger),
		0.75,
		logger,
		opts...,
	)
}

func TestPipeline_WritesCrimeRow(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "crime_news.csv")
	p := newPipeline(t, []adapter.Adapter{&fakeAdapter{name: "example", candidates: []models.RawCandidate{
		{Title: "Police arrest suspect in downtown robbery", Link: "https://example.com/a/1"},
	}}}, out)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, classifier.BatchStats{Total: 1, Kept: 1}, report.Stats)

	assert.Equal(t, csvHeader+"example,Police arrest suspect in downtown robbery,https://example.com/a/1,0.91\n", readFile(t, out))
}

func TestPipeline_LowScoreNotWritten(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "crime_news.csv")
	p := newPipeline(t, []adapter.Adapter{&fakeAdapter{name: "example", candidates: []models.RawCandidate{
		{Title: "Local bakery opens new branch", Link: "https://example.com/a/2"},
	}}}, out)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Kept)
	assert.Equal(t, csvHeader, readFile(t, out))
}

func TestPipeline_RepeatedRunsAppend(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "crime_news.csv")
	p := newPipeline(t, []adapter.Adapter{&fakeAdapter{name: "example", candidates: []models.RawCandidate{
		{Title: "Court convicts two men over fraud scheme", Link: "https://example.com/a/3"},
	}}}, out)

	for range 2 {
		_, err := p.Run(context.Background())
		require.NoError(t, err)
	}
	row := "example,Court convicts two men over fraud scheme,https://example.com/a/3,0.877\n"
	assert.Equal(t, csvHeader+row+row, readFile(t, out))
}

func TestPipeline_PersistenceFailureIsFatal(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	called := false
	a := &fakeAdapter{name: "example"}
	p := newPipeline(t, []adapter.Adapter{adapterFunc{a, func() { called = true }}}, filepath.Join(blocker, "out.csv"))

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, failure.IsFatal(err))
	assert.False(t, called, "no source is fetched when the output file is unusable")
}

// adapterFunc calls hook before delegating the listing fetch.
type adapterFunc struct {
	*fakeAdapter
	hook func()
}

func (a adapterFunc) FetchListing(ctx context.Context) ([]models.RawCandidate, error) {
	a.hook()
	return a.fakeAdapter.FetchListing(ctx)
}

type memoryHistory struct {
	mu        sync.Mutex
	runs      []*models.RunDocument
	headlines []models.ClassificationResult
	ctxErrs   []error
	err       error
}

func (m *memoryHistory) SaveRun(ctx context.Context, run *models.RunDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.runs = append(m.runs, run)
	return m.err
}

func (m *memoryHistory) SaveHeadlines(ctx context.Context, _ string, results []models.ClassificationResult, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.headlines = append(m.headlines, results...)
	return m.err
}

func TestPipeline_HistoryAndMetrics(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	history := &memoryHistory{}
	m := metrics.New()
	textfile := filepath.Join(dir, "crimenet.prom")

	p := newPipeline(t, []adapter.Adapter{
		&fakeAdapter{name: "example", candidates: []models.RawCandidate{
			{Title: "Police arrest suspect in downtown robbery", Link: "https://example.com/a/1"},
			{Title: "Local bakery opens new branch", Link: "https://example.com/a/2"},
		}},
		&fakeAdapter{name: "broken", err: failure.Network("get", errors.New("refused"))},
	}, filepath.Join(dir, "out.csv"), app.WithHistory(history), app.WithMetrics(m, textfile))

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, history.runs, 1)
	run := history.runs[0]
	assert.Equal(t, report.RunID, run.ID)
	assert.Equal(t, 1, run.Kept)
	assert.Equal(t, 2, run.Scraped)
	assert.Equal(t, "network", run.Sources[1].ErrorKind)
	require.Len(t, history.headlines, 1)

	prom := readFile(t, textfile)
	assert.Contains(t, prom, `crimenet_records_kept_total{source="example"} 1`)
}

func TestPipeline_CancelledRunStillRecordsHistory(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	history := &memoryHistory{}
	p := newPipeline(t, []adapter.Adapter{
		&fakeAdapter{name: "example", candidates: []models.RawCandidate{
			{Title: "Police arrest suspect in downtown robbery", Link: "https://example.com/a/1"},
		}},
	}, filepath.Join(t.TempDir(), "out.csv"), app.WithHistory(history))

	_, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []error{nil, nil}, history.ctxErrs)
	assert.Len(t, history.runs, 1)
	assert.Len(t, history.headlines, 1)
}

func TestPipeline_HistoryFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := newPipeline(t, []adapter.Adapter{
		&fakeAdapter{name: "example", candidates: []models.RawCandidate{
			{Title: "Police arrest suspect in downtown robbery", Link: "https://example.com/a/1"},
		}},
	}, filepath.Join(dir, "out.csv"),
		app.WithHistory(&memoryHistory{err: errors.New("no reachable servers")}),
		app.WithMetrics(metrics.New(), filepath.Join(dir, "missing", "dir", "x.prom")),
	)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Kept, 1)
}

func TestPipeline_SlowSourceTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	page := func(title string) string {
		return `<html><body><a href="/a/1"><h2>` + title + `</h2></a></body></html>`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/one":
			_, _ = w.Write([]byte(page("Police arrest suspect in downtown robbery")))
		case "/two":
			_, _ = w.Write([]byte(page("Local bakery opens new branch")))
		case "/slow":
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	source := func(name, path string) config.SourceConfig {
		return config.SourceConfig{Name: name, BaseURL: srv.URL, ListingURLs: []string{srv.URL + path}, Domains: []string{"127.0.0.1"}}
	}
	cfg := &config.Config{
		Logic:   config.LogicConfig{TimeoutSec: 1},
		Sources: []config.SourceConfig{source("one", "/one"), source("slow", "/slow"), source("two", "/two")},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	logger := zap.NewNop()
	adapters, err := adapter.FromConfig(cfg, fetch.New(time.Second, "crimenet-test"), logger)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.csv")
	p := app.NewPipeline(app.NewOrchestrator(adapters, 1, nil, logger), classifier.New(scores, logger), sink.NewCSVSink(out, logger), 0.75, logger)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RunSummary{Attempted: 3, Succeeded: 2, Failed: 1, Records: 2}, report.Summary)
	assert.Equal(t, "slow", report.Outcomes[1].Source)
	assert.Equal(t, failure.KindNetwork, failure.KindOf(report.Outcomes[1].Err))

	lines := strings.Split(strings.TrimSpace(readFile(t, out)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "one,Police arrest suspect in downtown robbery,"+srv.URL+"/a/1,0.91"))
}
