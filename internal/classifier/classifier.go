// Package classifier labels headlines as crime related by thresholding the
// probability of a pre-trained text model.
package classifier

import (
	"math"
	"strconv"

	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

const logTitleWidth = 50

type BatchStats struct {
	Total   int
	Skipped int
	Kept    int
}

type Classifier struct {
	scorer Scorer
	logger *zap.Logger
}

func New(scorer Scorer, logger *zap.Logger) *Classifier {
	return &Classifier{scorer: scorer, logger: logger}
}

// ScoreText returns the crime probability of text.
func (c *Classifier) ScoreText(text string) float64 {
	return c.scorer.Score(text)
}

// Decide reports whether text is crime related under threshold, along with
// the unrounded probability. The comparison is strict.
func (c *Classifier) Decide(text string, threshold float64) (bool, float64) {
	p := c.scorer.Score(text)
	return p > threshold, p
}

// FilterBatch scores every record title and keeps the crime related ones.
// Records with no title or link are skipped and counted.
func (c *Classifier) FilterBatch(records []models.NormalizedRecord, threshold float64) ([]models.ClassificationResult, BatchStats) {
	stats := BatchStats{Total: len(records)}
	var kept []models.ClassificationResult

	for _, rec := range records {
		if rec.Title == "" || rec.Link == "" {
			stats.Skipped++
			c.logger.Debug("record skipped, missing title or link",
				zap.String("source", rec.Source),
				zap.String("link", rec.Link),
			)
			continue
		}

		isCrime, p := c.Decide(rec.Title, threshold)
		rounded := Round(p)
		c.logger.Info("headline classified",
			zap.String("source", rec.Source),
			zap.String("title", runewidth.Truncate(rec.Title, logTitleWidth, "...")),
			zap.Bool("is_crime", isCrime),
			zap.String("confidence", FormatScore(rounded)),
		)
		if !isCrime {
			continue
		}
		kept = append(kept, models.ClassificationResult{
			Record:      rec,
			Probability: rounded,
			IsCrime:     true,
		})
	}

	stats.Kept = len(kept)
	c.logger.Info("classification finished",
		zap.Int("total", stats.Total),
		zap.Int("kept", stats.Kept),
		zap.Int("skipped", stats.Skipped),
		zap.Float64("threshold", threshold),
	)
	return kept, stats
}

// Round rounds p to 3 decimals.
func Round(p float64) float64 {
	return math.Round(p*1000) / 1000
}

// FormatScore renders a rounded probability without trailing zeros.
func FormatScore(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
