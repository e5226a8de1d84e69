package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/institution-matcher/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MetricsRepository daily metrics snapshots in MongoDB
type MetricsRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMetricsRepository tạo mới MetricsRepository
func NewMetricsRepository(db *mongo.Database, logger *zap.Logger) *MetricsRepository {
	return &MetricsRepository{
		collection: db.Collection(CollectionMetricsSnapshots),
		logger:     logger,
	}
}

// EnsureIndexes tạo unique index theo metric_date
func (mr *MetricsRepository) EnsureIndexes(ctx context.Context) error {
	_, err := mr.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{bson.E{Key: "metric_date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create %s indexes: %w", CollectionMetricsSnapshots, err)
	}
	return nil
}

// UpsertSnapshot implements stats.SnapshotWriter
func (mr *MetricsRepository) UpsertSnapshot(ctx context.Context, snapshot *models.MetricsSnapshot) error {
	opts := options.Replace().SetUpsert(true)
	_, err := mr.collection.ReplaceOne(ctx, bson.M{"metric_date": snapshot.MetricDate}, snapshot, opts)
	if err != nil {
		return fmt.Errorf("upsert metrics snapshot %s: %w", snapshot.MetricDate, err)
	}
	return nil
}

// GetSnapshot lấy snapshot theo ngày, nil nếu chưa có
func (mr *MetricsRepository) GetSnapshot(ctx context.Context, date string) (*models.MetricsSnapshot, error) {
	var snapshot models.MetricsSnapshot
	err := mr.collection.FindOne(ctx, bson.M{"metric_date": date}).Decode(&snapshot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find metrics snapshot %s: %w", date, err)
	}
	return &snapshot, nil
}
