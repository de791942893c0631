// Package sink appends classified headlines to the CSV output file.
package sink

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/classifier"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

// Header is the fixed output schema.
var Header = []string{"source", "title", "url", "confidence_score"}

// CSVSink is an append-only CSV file. Writes are serialized within the
// process by a mutex and across processes by a lock file next to it.
type CSVSink struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	logger *zap.Logger
}

func NewCSVSink(path string, logger *zap.Logger) *CSVSink {
	return &CSVSink{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

func (s *CSVSink) Path() string {
	return s.path
}

// EnsureHeader writes the header when the file is missing or empty. An
// existing non-empty file is left untouched.
func (s *CSVSink) EnsureHeader() error {
	return s.locked(func() error {
		info, err := os.Stat(s.path)
		switch {
		case err == nil && info.Size() > 0:
			return nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return failure.Persistence("stat output file", err)
		}

		data, err := encode([][]string{Header})
		if err != nil {
			return failure.Persistence("encode header", err)
		}
		if err := s.appendBytes(data); err != nil {
			return err
		}
		s.logger.Info("output file initialized", zap.String("path", s.path))
		return nil
	})
}

// AppendRows writes all rows with a single append.
func (s *CSVSink) AppendRows(rows []models.PersistedRow) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{r.Source, r.Title, r.URL, classifier.FormatScore(r.ConfidenceScore)})
	}
	data, err := encode(records)
	if err != nil {
		return failure.Persistence("encode rows", err)
	}

	return s.locked(func() error {
		if err := s.appendBytes(data); err != nil {
			return err
		}
		s.logger.Info("rows appended", zap.String("path", s.path), zap.Int("rows", len(rows)))
		return nil
	})
}

func (s *CSVSink) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return failure.Persistence("create output directory", err)
		}
	}
	if err := s.lock.Lock(); err != nil {
		return failure.Persistence("lock output file", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release output lock", zap.Error(err))
		}
	}()
	return fn()
}

func (s *CSVSink) appendBytes(data []byte) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return failure.Persistence("open output file", err)
	}
	n, err := f.Write(data)
	if err == nil && n < len(data) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(data))
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return failure.Persistence("append output file", err)
	}
	return nil
}

func encode(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
