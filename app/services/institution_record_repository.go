package services

import (
	"context"
	"fmt"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/grouping"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// InstitutionRecordRepository grouping input records in MongoDB
type InstitutionRecordRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewInstitutionRecordRepository tạo mới InstitutionRecordRepository
func NewInstitutionRecordRepository(db *mongo.Database, logger *zap.Logger) *InstitutionRecordRepository {
	return &InstitutionRecordRepository{
		collection: db.Collection(CollectionInstitutionRecords),
		logger:     logger,
	}
}

// ListRecords implements grouping.RecordSource, ordered by standard code.
func (ir *InstitutionRecordRepository) ListRecords(ctx context.Context, scope grouping.Scope) ([]models.InstitutionRecord, error) {
	filter := bson.M{}
	if scope.Region != "" {
		filter["region_code"] = scope.Region
	}
	if scope.SubRegion != "" {
		filter["sub_region_code"] = scope.SubRegion
	}

	opts := options.Find().SetSort(bson.D{bson.E{Key: "standard_code", Value: 1}})
	cursor, err := ir.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("lỗi query institution records: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]models.InstitutionRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("lỗi decode institution records: %w", err)
	}

	ir.logger.Debug("Loaded institution records",
		zap.String("region", scope.Region),
		zap.String("sub_region", scope.SubRegion),
		zap.Int("count", len(records)))
	return records, nil
}
