package services

import (
	"context"
	"fmt"
	"time"

	"github.com/institution-matcher/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names
const (
	CollectionRules              = "normalization_rules"
	CollectionRegions            = "region_mappings"
	CollectionRegistry           = "registry_entries"
	CollectionAliases            = "institution_aliases"
	CollectionValidationLogs     = "validation_logs"
	CollectionCounters           = "counters"
	CollectionMetricsSnapshots   = "metrics_snapshots"
	CollectionInstitutionRecords = "institution_records"
)

// RuleRepository đọc rule chuẩn hóa và bảng region từ MongoDB
type RuleRepository struct {
	rules   *mongo.Collection
	regions *mongo.Collection
	logger  *zap.Logger
}

// NewRuleRepository tạo mới RuleRepository
func NewRuleRepository(db *mongo.Database, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{
		rules:   db.Collection(CollectionRules),
		regions: db.Collection(CollectionRegions),
		logger:  logger,
	}
}

// EnsureIndexes tạo indexes cho 2 collection
func (rr *RuleRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := rr.rules.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "rule_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{bson.E{Key: "active", Value: 1}, bson.E{Key: "priority", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("create %s indexes: %w", CollectionRules, err)
	}
	if _, err := rr.regions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{bson.E{Key: "abbreviation", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create %s indexes: %w", CollectionRegions, err)
	}
	return nil
}

// ActiveRules implements normalizer.RuleSource
func (rr *RuleRepository) ActiveRules(ctx context.Context) ([]models.NormalizationRule, error) {
	opts := options.Find().SetSort(bson.D{
		bson.E{Key: "priority", Value: -1},
		bson.E{Key: "rule_id", Value: 1},
	})
	cursor, err := rr.rules.Find(ctx, bson.M{"active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("lỗi query normalization rules: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []models.NormalizationRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("lỗi decode normalization rules: %w", err)
	}
	return rules, nil
}

// RegionMappings implements normalizer.RegionSource
func (rr *RuleRepository) RegionMappings(ctx context.Context) ([]models.RegionMapping, error) {
	cursor, err := rr.regions.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("lỗi query region mappings: %w", err)
	}
	defer cursor.Close(ctx)

	var regions []models.RegionMapping
	if err := cursor.All(ctx, &regions); err != nil {
		return nil, fmt.Errorf("lỗi decode region mappings: %w", err)
	}
	return regions, nil
}

// SeedDefaults upserts rules by rule_id and regions by abbreviation.
func (rr *RuleRepository) SeedDefaults(ctx context.Context, rules []models.NormalizationRule, regions []models.RegionMapping) error {
	startTime := time.Now()
	opts := options.Replace().SetUpsert(true)

	for _, r := range rules {
		if _, err := rr.rules.ReplaceOne(ctx, bson.M{"rule_id": r.ID}, r, opts); err != nil {
			return fmt.Errorf("upsert rule %s: %w", r.ID, err)
		}
	}
	for _, rm := range regions {
		if _, err := rr.regions.ReplaceOne(ctx, bson.M{"abbreviation": rm.Abbreviation}, rm, opts); err != nil {
			return fmt.Errorf("upsert region %s: %w", rm.Abbreviation, err)
		}
	}

	rr.logger.Info("Seeded normalization rules",
		zap.Int("rules", len(rules)),
		zap.Int("regions", len(regions)),
		zap.Duration("processing_time", time.Since(startTime)))
	return nil
}
