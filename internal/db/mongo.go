package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/config"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/models"
)

type MongoDB struct {
	client    *mongo.Client
	database  *mongo.Database
	runs      *mongo.Collection
	headlines *mongo.Collection
	timeout   time.Duration
	logger    *zap.Logger
}

func NewMongoDB(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (*MongoDB, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)

	d := &MongoDB{
		client:    client,
		database:  database,
		runs:      database.Collection(cfg.Collections.Runs),
		headlines: database.Collection(cfg.Collections.Headlines),
		timeout:   timeout,
		logger:    logger,
	}

	d.createIndexes(ctx)
	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{d.headlines, mongo.IndexModel{
			Keys:    bson.D{{Key: "normalized_url", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{d.headlines, mongo.IndexModel{Keys: bson.D{{Key: "source", Value: 1}}}},
		{d.runs, mongo.IndexModel{Keys: bson.D{{Key: "started_at", Value: -1}}}},
	}

	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			d.logger.Warn("failed to create index",
				zap.String("collection", idx.coll.Name()),
				zap.Error(err),
			)
		}
	}
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// SaveRun inserts one run document.
func (d *MongoDB) SaveRun(ctx context.Context, run *models.RunDocument) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if _, err := d.runs.InsertOne(ctx, run); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// SaveHeadlines upserts kept headlines by normalized URL.
func (d *MongoDB) SaveHeadlines(ctx context.Context, runID string, results []models.ClassificationResult, now time.Time) error {
	if len(results) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	writes := make([]mongo.WriteModel, 0, len(results))
	for _, r := range results {
		filter, update := HeadlineUpsert(r, runID, now)
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true))
	}

	res, err := d.headlines.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("upsert headlines: %w", err)
	}
	d.logger.Debug("headlines saved",
		zap.Int64("upserted", res.UpsertedCount),
		zap.Int64("modified", res.ModifiedCount),
	)
	return nil
}

// GetSourceStats aggregates stored headlines per source.
func (d *MongoDB) GetSourceStats(ctx context.Context) ([]models.SourceStats, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cursor, err := d.headlines.Aggregate(ctx, SourceStatsPipeline())
	if err != nil {
		return nil, fmt.Errorf("aggregate source stats: %w", err)
	}
	defer cursor.Close(ctx)

	var stats []models.SourceStats
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("decode source stats: %w", err)
	}
	return stats, nil
}

// LastRun returns the most recent run document, or nil when none exist.
func (d *MongoDB) LastRun(ctx context.Context) (*models.RunDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var run models.RunDocument
	opts := options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})
	err := d.runs.FindOne(ctx, bson.M{}, opts).Decode(&run)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find last run: %w", err)
	}
	return &run, nil
}
