package models

import "time"

// RawCandidate is a headline as extracted by one adapter, before it is
// tagged with the source name.
type RawCandidate struct {
	Title       string
	Link        string
	SourceHint  string
	Description string
	PublishedAt string
	Category    string
}

type NormalizedRecord struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
	PublishedAt string `json:"pub_date,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Normalize tags a candidate with the registry name of its source.
func (c RawCandidate) Normalize(source string) NormalizedRecord {
	return NormalizedRecord{
		Title:       c.Title,
		Link:        c.Link,
		Source:      source,
		Description: c.Description,
		PublishedAt: c.PublishedAt,
		Category:    c.Category,
	}
}

type ClassificationResult struct {
	Record      NormalizedRecord
	Probability float64
	IsCrime     bool
}

// PersistedRow is the only shape written to the output file.
type PersistedRow struct {
	Source          string
	Title           string
	URL             string
	ConfidenceScore float64
}

func (r ClassificationResult) Row() PersistedRow {
	return PersistedRow{
		Source:          r.Record.Source,
		Title:           r.Record.Title,
		URL:             r.Record.Link,
		ConfidenceScore: r.Probability,
	}
}

type SourceOutcome struct {
	Source   string
	Records  int
	Err      error
	Duration time.Duration
}

func (o SourceOutcome) OK() bool {
	return o.Err == nil
}

type RunSummary struct {
	Attempted int
	Succeeded int
	Failed    int
	Records   int
}

// RunDocument is one pipeline run in the history store.
type RunDocument struct {
	ID         string              `bson:"_id"`
	StartedAt  int64               `bson:"started_at"`
	FinishedAt int64               `bson:"finished_at"`
	Threshold  float64             `bson:"threshold"`
	Attempted  int                 `bson:"sources_attempted"`
	Succeeded  int                 `bson:"sources_succeeded"`
	Failed     int                 `bson:"sources_failed"`
	Scraped    int                 `bson:"records_scraped"`
	Skipped    int                 `bson:"records_skipped"`
	Kept       int                 `bson:"records_kept"`
	Sources    []SourceRunDocument `bson:"sources"`
}

type SourceRunDocument struct {
	Source       string `bson:"source"`
	Status       string `bson:"status"` // success, error
	Records      int    `bson:"records"`
	Duration     int64  `bson:"duration_ms"`
	ErrorKind    string `bson:"error_kind,omitempty"`
	ErrorMessage string `bson:"error_message,omitempty"`
}

// HeadlineDocument is a kept headline in the history store.
type HeadlineDocument struct {
	NormalizedURL   string  `bson:"normalized_url"`
	URL             string  `bson:"url"`
	Source          string  `bson:"source"`
	Title           string  `bson:"title"`
	Category        string  `bson:"category,omitempty"`
	ConfidenceScore float64 `bson:"confidence_score"`
	RunID           string  `bson:"last_run_id"`
	FirstSeen       int64   `bson:"first_seen"`
	LastSeen        int64   `bson:"last_seen"`
	SeenCount       int     `bson:"seen_count"`
}

type SourceStats struct {
	Source        string  `bson:"_id"`
	Headlines     int     `bson:"total_headlines"`
	AvgConfidence float64 `bson:"avg_confidence"`
	MaxSeenCount  int     `bson:"max_seen_count"`
}
