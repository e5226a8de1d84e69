package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/internal/search"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// DefaultScanLimit upper bound on entries returned by a Mongo candidate scan
const DefaultScanLimit = 500

// RegistryRepository registry entries and aliases in MongoDB
type RegistryRepository struct {
	client    *mongo.Client
	entries   *mongo.Collection
	aliases   *mongo.Collection
	scanLimit int64
	logger    *zap.Logger
}

// NewRegistryRepository tạo mới RegistryRepository
func NewRegistryRepository(db *mongo.Database, scanLimit int, logger *zap.Logger) *RegistryRepository {
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}
	return &RegistryRepository{
		client:    db.Client(),
		entries:   db.Collection(CollectionRegistry),
		aliases:   db.Collection(CollectionAliases),
		scanLimit: int64(scanLimit),
		logger:    logger,
	}
}

// EnsureIndexes tạo indexes cho registry và alias
func (rr *RegistryRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := rr.entries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "standard_code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{bson.E{Key: "region_code", Value: 1}, bson.E{Key: "active", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "registered_at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create %s indexes: %w", CollectionRegistry, err)
	}
	if _, err := rr.aliases.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "standard_code", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "normalized_name", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create %s indexes: %w", CollectionAliases, err)
	}
	return nil
}

// Candidates implements search.CandidateSource. An entry qualifies when its
// name or an alias shares a query token, or is contained in the query.
// Matches over scanLimit are cut by quick score, never by registration age.
func (rr *RegistryRepository) Candidates(ctx context.Context, query search.CandidateQuery) ([]models.RegistryEntry, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "registered_at", Value: 1}, bson.E{Key: "standard_code", Value: 1}})
	cursor, err := rr.entries.Find(ctx, candidateFilter(query), opts)
	if err != nil {
		return nil, fmt.Errorf("lỗi query registry: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.RegistryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("lỗi decode registry entries: %w", err)
	}

	if int64(len(entries)) > rr.scanLimit {
		rr.logger.Debug("Registry scan capped",
			zap.String("name", query.Name),
			zap.Int("matched", len(entries)),
			zap.Int64("scan_limit", rr.scanLimit))
		entries = search.TopByQuickScore(query, entries, int(rr.scanLimit))
	}
	return entries, nil
}

// candidateFilter builds the Mongo filter for Candidates. Region is strict.
func candidateFilter(query search.CandidateQuery) bson.M {
	filter := bson.M{"active": true}
	if query.Region != "" {
		filter["region_code"] = query.Region
	}

	name := strings.ToLower(strings.TrimSpace(query.Name))
	tokens := uniqueTokens(name)
	if len(tokens) == 0 {
		return filter
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	pattern := strings.Join(quoted, "|")

	filter["$or"] = bson.A{
		// 1. chung ít nhất một token
		bson.M{"canonical_name": bson.M{"$regex": pattern, "$options": "i"}},
		bson.M{"aliases": bson.M{"$regex": pattern, "$options": "i"}},
		// 2. tên hoặc alias nằm trong query
		bson.M{"$expr": bson.M{"$gte": bson.A{
			bson.M{"$indexOfCP": bson.A{name, bson.M{"$toLower": "$canonical_name"}}}, 0,
		}}},
		bson.M{"$expr": bson.M{"$anyElementTrue": bson.A{
			bson.M{"$map": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$aliases", bson.A{}}},
				"as":    "a",
				"in": bson.M{"$gte": bson.A{
					bson.M{"$indexOfCP": bson.A{name, bson.M{"$toLower": "$$a"}}}, 0,
				}},
			}},
		}}},
	}
	return filter
}

func uniqueTokens(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(s) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// GetEntry lấy một entry theo standard code; nil khi không tồn tại
func (rr *RegistryRepository) GetEntry(ctx context.Context, standardCode string) (*models.RegistryEntry, error) {
	var entry models.RegistryEntry
	err := rr.entries.FindOne(ctx, bson.M{"standard_code": standardCode}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find registry entry %s: %w", standardCode, err)
	}
	return &entry, nil
}

// ListEntries trả về toàn bộ registry theo thứ tự đăng ký
func (rr *RegistryRepository) ListEntries(ctx context.Context) ([]models.RegistryEntry, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "registered_at", Value: 1}})
	cursor, err := rr.entries.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("lỗi query registry: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.RegistryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("lỗi decode registry entries: %w", err)
	}
	return entries, nil
}

// EntryExists implements matcher.AliasStore
func (rr *RegistryRepository) EntryExists(ctx context.Context, standardCode string) (bool, error) {
	count, err := rr.entries.CountDocuments(ctx, bson.M{"standard_code": standardCode}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("lỗi check registry entry: %w", err)
	}
	return count > 0, nil
}

// AppendAlias inserts the alias and adds its normalized form to the entry's
// denormalized alias list in one transaction.
func (rr *RegistryRepository) AppendAlias(ctx context.Context, alias *models.Alias) error {
	session, err := rr.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := rr.aliases.InsertOne(sc, alias); err != nil {
			return nil, fmt.Errorf("insert alias: %w", err)
		}
		update := bson.M{"$addToSet": bson.M{"aliases": alias.NormalizedName}}
		res, err := rr.entries.UpdateOne(sc, bson.M{"standard_code": alias.StandardCode}, update)
		if err != nil {
			return nil, fmt.Errorf("update registry aliases: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, fmt.Errorf("registry entry %s vanished", alias.StandardCode)
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	rr.logger.Debug("Alias persisted",
		zap.String("standard_code", alias.StandardCode),
		zap.String("normalized_name", alias.NormalizedName))
	return nil
}

// UpsertEntries merges imported entries by standard_code. Aliases only grow
// and registered_at is written once, on insert.
func (rr *RegistryRepository) UpsertEntries(ctx context.Context, entries []models.RegistryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"standard_code": e.StandardCode}).
			SetUpdate(registryUpsertUpdate(e, now)).
			SetUpsert(true))
	}
	if _, err := rr.entries.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("bulk upsert registry: %w", err)
	}
	return nil
}

func registryUpsertUpdate(e models.RegistryEntry, now time.Time) bson.M {
	registeredAt := e.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = now
	}
	aliases := e.Aliases
	if aliases == nil {
		aliases = []string{}
	}

	set := bson.M{
		"canonical_name": e.CanonicalName,
		"active":         e.Active,
	}
	unset := bson.M{}
	if e.AddressHash != nil {
		set["address_hash"] = *e.AddressHash
	} else {
		unset["address_hash"] = ""
	}
	if e.RegionCode != nil {
		set["region_code"] = *e.RegionCode
	} else {
		unset["region_code"] = ""
	}

	update := bson.M{
		"$set":         set,
		"$addToSet":    bson.M{"aliases": bson.M{"$each": aliases}},
		"$setOnInsert": bson.M{"registered_at": registeredAt},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// CountEntries implements stats.RegistryCounter
func (rr *RegistryRepository) CountEntries(ctx context.Context) (int64, error) {
	return rr.entries.CountDocuments(ctx, bson.M{})
}

// CountAliases implements stats.RegistryCounter
func (rr *RegistryRepository) CountAliases(ctx context.Context) (int64, error) {
	return rr.aliases.CountDocuments(ctx, bson.M{})
}
