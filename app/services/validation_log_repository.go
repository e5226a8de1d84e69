package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/institution-matcher/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const validationLogCounter = "validation_log_id"

// ValidationLogRepository append-only validation log in MongoDB
type ValidationLogRepository struct {
	logs     *mongo.Collection
	counters *mongo.Collection
	logger   *zap.Logger
}

// NewValidationLogRepository tạo mới ValidationLogRepository
func NewValidationLogRepository(db *mongo.Database, logger *zap.Logger) *ValidationLogRepository {
	return &ValidationLogRepository{
		logs:     db.Collection(CollectionValidationLogs),
		counters: db.Collection(CollectionCounters),
		logger:   logger,
	}
}

// EnsureIndexes tạo indexes cho validation_logs
func (vr *ValidationLogRepository) EnsureIndexes(ctx context.Context) error {
	_, err := vr.logs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "log_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{bson.E{Key: "created_at", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "run_id", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "manual_review_status", Value: 1}, bson.E{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create %s indexes: %w", CollectionValidationLogs, err)
	}
	return nil
}

// AppendLog implements audit.LogStore. The log id comes from an atomic
// counter document, so ids are monotonic across replicas.
func (vr *ValidationLogRepository) AppendLog(ctx context.Context, entry *models.ValidationLogEntry) error {
	id, err := vr.nextID(ctx)
	if err != nil {
		return err
	}
	entry.ID = id
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := vr.logs.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert validation log %d: %w", id, err)
	}
	return nil
}

func (vr *ValidationLogRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := vr.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": validationLogCounter},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next validation log id: %w", err)
	}
	return counter.Seq, nil
}

// UpdateReview implements matcher.ReviewStore. Only the review fields change.
func (vr *ValidationLogRepository) UpdateReview(ctx context.Context, id int64, status, notes string) (bool, error) {
	update := bson.M{"$set": bson.M{
		"manual_review_status": status,
		"manual_review_notes":  notes,
		"reviewed_at":          time.Now().UTC(),
	}}
	res, err := vr.logs.UpdateOne(ctx, bson.M{"log_id": id}, update)
	if err != nil {
		return false, fmt.Errorf("update review %d: %w", id, err)
	}
	return res.MatchedCount > 0, nil
}

// GetLog lấy một entry theo log id
func (vr *ValidationLogRepository) GetLog(ctx context.Context, id int64) (*models.ValidationLogEntry, error) {
	var entry models.ValidationLogEntry
	err := vr.logs.FindOne(ctx, bson.M{"log_id": id}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find validation log %d: %w", id, err)
	}
	return &entry, nil
}

// ListLogs implements stats.LogReader: entries with created_at in [from, to).
func (vr *ValidationLogRepository) ListLogs(ctx context.Context, from, to time.Time) ([]models.ValidationLogEntry, error) {
	filter := bson.M{"created_at": bson.M{"$gte": from, "$lt": to}}
	opts := options.Find().SetSort(bson.D{bson.E{Key: "log_id", Value: 1}})
	cursor, err := vr.logs.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("lỗi query validation logs: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.ValidationLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("lỗi decode validation logs: %w", err)
	}
	return entries, nil
}

// ListPending lấy các entry đang chờ review, mới nhất trước
func (vr *ValidationLogRepository) ListPending(ctx context.Context, limit int) ([]models.ValidationLogEntry, error) {
	filter := bson.M{
		"manual_review_status": models.ReviewStatusPending,
		"recommendation":       models.RecommendationManualReview,
	}
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := vr.logs.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("lỗi query review queue: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.ValidationLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("lỗi decode review queue: %w", err)
	}
	return entries, nil
}
