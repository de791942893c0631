package sink_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/sink"
)

const header = "source,title,url,confidence_score\n"

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestEnsureHeader_Once(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "crime_news.csv")
	s := sink.NewCSVSink(path, zap.NewNop())

	require.NoError(t, s.EnsureHeader())
	require.NoError(t, s.EnsureHeader())
	assert.Equal(t, header, read(t, path))
}

func TestEnsureHeader_EmptyAndExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	require.NoError(t, sink.NewCSVSink(empty, zap.NewNop()).EnsureHeader())
	assert.Equal(t, header, read(t, empty))

	existing := filepath.Join(dir, "existing.csv")
	prior := header + "bbc,Old row,https://bbc.com/a,0.8\n"
	require.NoError(t, os.WriteFile(existing, []byte(prior), 0o644))
	require.NoError(t, sink.NewCSVSink(existing, zap.NewNop()).EnsureHeader())
	assert.Equal(t, prior, read(t, existing))
}

func TestAppendRows_NeverRewrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	s := sink.NewCSVSink(path, zap.NewNop())
	require.NoError(t, s.EnsureHeader())

	require.NoError(t, s.AppendRows([]models.PersistedRow{
		{Source: "example", Title: "Police arrest suspect in downtown robbery", URL: "https://example.com/a/1", ConfidenceScore: 0.91},
	}))
	first := read(t, path)

	require.NoError(t, s.AppendRows([]models.PersistedRow{
		{Source: "aljazeera", Title: `Minister says "no comment", resigns`, URL: "https://aljazeera.com/a/2", ConfidenceScore: 0.8},
	}))
	require.NoError(t, s.AppendRows(nil))

	got := read(t, path)
	assert.True(t, strings.HasPrefix(got, first))
	assert.Equal(t, header+
		"example,Police arrest suspect in downtown robbery,https://example.com/a/1,0.91\n"+
		"aljazeera,\"Minister says \"\"no comment\"\", resigns\",https://aljazeera.com/a/2,0.8\n", got)
}

func TestAppendRows_Concurrent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.csv")
	s := sink.NewCSVSink(path, zap.NewNop())
	require.NoError(t, s.EnsureHeader())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendRows([]models.PersistedRow{
				{Source: "a", Title: "one", URL: "https://a.com/1", ConfidenceScore: 0.9},
				{Source: "a", Title: "two", URL: "https://a.com/2", ConfidenceScore: 0.95},
			}))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(read(t, path)), "\n")
	require.Len(t, lines, 17)
	for i := 1; i < len(lines); i += 2 {
		assert.Equal(t, "a,one,https://a.com/1,0.9", lines[i])
		assert.Equal(t, "a,two,https://a.com/2,0.95", lines[i+1])
	}
}

func TestSink_PersistenceFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := sink.NewCSVSink(filepath.Join(blocker, "out.csv"), zap.NewNop())
	err := s.EnsureHeader()
	require.Error(t, err)
	assert.Equal(t, failure.KindPersistence, failure.KindOf(err))
	assert.True(t, failure.IsFatal(err))

	err = s.AppendRows([]models.PersistedRow{{Source: "a", Title: "t", URL: "https://a.com", ConfidenceScore: 1}})
	assert.Equal(t, failure.KindPersistence, failure.KindOf(err))
}
