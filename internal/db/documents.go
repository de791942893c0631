// Package db mirrors run summaries and kept headlines into MongoDB.
package db

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/linkset"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Run is what the pipeline knows about a finished run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Threshold  float64
	Summary    models.RunSummary
	Outcomes   []models.SourceOutcome
	Skipped    int
	Kept       int
}

func BuildRunDocument(run Run) *models.RunDocument {
	doc := &models.RunDocument{
		ID:         run.ID,
		StartedAt:  run.StartedAt.Unix(),
		FinishedAt: run.FinishedAt.Unix(),
		Threshold:  run.Threshold,
		Attempted:  run.Summary.Attempted,
		Succeeded:  run.Summary.Succeeded,
		Failed:     run.Summary.Failed,
		Scraped:    run.Summary.Records,
		Skipped:    run.Skipped,
		Kept:       run.Kept,
		Sources:    make([]models.SourceRunDocument, 0, len(run.Outcomes)),
	}
	for _, o := range run.Outcomes {
		src := models.SourceRunDocument{
			Source:   o.Source,
			Status:   StatusSuccess,
			Records:  o.Records,
			Duration: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			src.Status = StatusError
			src.ErrorKind = string(failure.KindOf(o.Err))
			src.ErrorMessage = o.Err.Error()
		}
		doc.Sources = append(doc.Sources, src)
	}
	return doc
}

// HeadlineUpsert returns the filter and update that record r as seen in
// run runID. First-seen fields are only set on insert.
func HeadlineUpsert(r models.ClassificationResult, runID string, now time.Time) (bson.M, bson.M) {
	normalized := linkset.NormalizeURL(r.Record.Link)
	filter := bson.M{"normalized_url": normalized}
	set := bson.M{
		"url":              r.Record.Link,
		"source":           r.Record.Source,
		"title":            r.Record.Title,
		"confidence_score": r.Probability,
		"last_run_id":      runID,
		"last_seen":        now.Unix(),
	}
	if r.Record.Category != "" {
		set["category"] = r.Record.Category
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"first_seen": now.Unix(),
		},
		"$inc": bson.M{"seen_count": 1},
	}
	return filter, update
}

func SourceStatsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$source"},
			{Key: "total_headlines", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg_confidence", Value: bson.D{{Key: "$avg", Value: "$confidence_score"}}},
			{Key: "max_seen_count", Value: bson.D{{Key: "$max", Value: "$seen_count"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}
