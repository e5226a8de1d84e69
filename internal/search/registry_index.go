package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/institution-matcher/app/models"
	"github.com/meilisearch/meilisearch-go"
	"github.com/mozillazg/go-unidecode"
	"go.uber.org/zap"
)

// IndexConfig cấu hình cho Meilisearch
type IndexConfig struct {
	Host          string
	APIKey        string
	IndexName     string
	Timeout       time.Duration
	MaxCandidates int
}

// RegistryIndex is a CandidateSource backed by a Meilisearch index of the registry.
type RegistryIndex struct {
	client        *ClientWrapper
	logger        *zap.Logger
	indexName     string
	maxCandidates int
	timeout       time.Duration
}

// NewRegistryIndex tạo mới RegistryIndex với Meilisearch client
func NewRegistryIndex(config IndexConfig, logger *zap.Logger) (*RegistryIndex, error) {
	client := NewClientWrapper(config.Host, config.APIKey)

	// Test connection
	if _, err := client.cli.Health(); err != nil {
		return nil, fmt.Errorf("không thể kết nối Meilisearch: %w", err)
	}

	maxCandidates := config.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 50
	}
	return &RegistryIndex{
		client:        client,
		logger:        logger,
		indexName:     config.IndexName,
		maxCandidates: maxCandidates,
		timeout:       config.Timeout,
	}, nil
}

// Candidates implements CandidateSource.
func (ri *RegistryIndex) Candidates(ctx context.Context, query CandidateQuery) ([]models.RegistryEntry, error) {
	if query.Name == "" {
		return nil, errors.New("query không được để trống")
	}
	if ri.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ri.timeout)
		defer cancel()
	}

	result, err := ri.client.SearchIndex(ctx, ri.indexName, query.Name, FilterActiveRegion(query.Region), int64(ri.maxCandidates))
	if err != nil {
		return nil, fmt.Errorf("lỗi tìm kiếm Meilisearch: %w", err)
	}
	return ri.parseSearchResults(result), nil
}

// parseSearchResults parse kết quả từ Meilisearch thành RegistryEntry
func (ri *RegistryIndex) parseSearchResults(result *meilisearch.SearchResponse) []models.RegistryEntry {
	entries := make([]models.RegistryEntry, 0, len(result.Hits))

	for _, hit := range result.Hits {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		entry := models.RegistryEntry{}
		if code, ok := hitMap["standard_code"].(string); ok {
			entry.StandardCode = code
		}
		if name, ok := hitMap["canonical_name"].(string); ok {
			entry.CanonicalName = name
		}
		if hash, ok := hitMap["address_hash"].(string); ok && hash != "" {
			entry.AddressHash = &hash
		}
		if region, ok := hitMap["region_code"].(string); ok && region != "" {
			entry.RegionCode = &region
		}
		if active, ok := hitMap["active"].(bool); ok {
			entry.Active = active
		}
		if millis, ok := hitMap["registered_at"].(float64); ok {
			entry.RegisteredAt = time.UnixMilli(int64(millis)).UTC()
		}

		// Parse aliases
		if aliasesRaw, ok := hitMap["aliases"].([]interface{}); ok {
			for _, alias := range aliasesRaw {
				if aliasStr, ok := alias.(string); ok {
					entry.Aliases = append(entry.Aliases, aliasStr)
				}
			}
		}

		if entry.StandardCode == "" {
			continue
		}
		entries = append(entries, entry)
	}

	return entries
}

// BuildIndexes cấu hình index Meilisearch
func (ri *RegistryIndex) BuildIndexes() error {
	index := ri.client.cli.Index(ri.indexName)

	oneTypo := int64(3)
	twoTypos := int64(7)
	task, err := index.UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"canonical_name", "aliases", "name_romanized"},
		FilterableAttributes: []string{"standard_code", "region_code", "active"},
		SortableAttributes:   []string{"registered_at"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		TypoTolerance: &meilisearch.TypoTolerance{
			Enabled: true,
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  oneTypo,
				TwoTypos: twoTypos,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("lỗi cấu hình index: %w", err)
	}

	ri.logger.Info("Đã cấu hình index Meilisearch thành công", zap.Int64("task_uid", task.TaskUID))
	return nil
}

// RegistryDocument converts a registry entry to its index document.
func RegistryDocument(entry models.RegistryEntry) map[string]interface{} {
	return map[string]interface{}{
		"id":             documentID(entry.StandardCode),
		"standard_code":  entry.StandardCode,
		"canonical_name": entry.CanonicalName,
		"name_romanized": unidecode.Unidecode(entry.CanonicalName),
		"aliases":        entry.Aliases,
		"address_hash":   entry.Hash(),
		"region_code":    entry.Region(),
		"active":         entry.Active,
		"registered_at":  entry.RegisteredAt.UnixMilli(),
	}
}

// ClearDocuments xóa toàn bộ documents trong index
func (ri *RegistryIndex) ClearDocuments(ctx context.Context) error {
	task, err := ri.client.cli.Index(ri.indexName).DeleteAllDocumentsWithContext(ctx)
	if err != nil {
		return fmt.Errorf("lỗi xóa documents: %w", err)
	}
	return ri.WaitForTask(ctx, task.TaskUID)
}

// IndexEntries upserts entries into the index; documents with the same id are replaced.
func (ri *RegistryIndex) IndexEntries(ctx context.Context, entries []models.RegistryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	documents := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		documents = append(documents, RegistryDocument(e))
	}

	task, err := ri.client.cli.Index(ri.indexName).AddDocumentsWithContext(ctx, documents, "id")
	if err != nil {
		return fmt.Errorf("lỗi cập nhật documents: %w", err)
	}
	ri.logger.Debug("Đã cập nhật documents",
		zap.Int("count", len(documents)),
		zap.Int64("task_uid", task.TaskUID))
	return nil
}

// SeedEntries nạp registry vào Meilisearch theo batch
func (ri *RegistryIndex) SeedEntries(entries []models.RegistryEntry) error {
	if len(entries) == 0 {
		return errors.New("không có dữ liệu để seed")
	}

	index := ri.client.cli.Index(ri.indexName)

	documents := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		documents = append(documents, RegistryDocument(e))
	}

	// Batch insert (chunks of 1000)
	batchSize := 1000
	for i := 0; i < len(documents); i += batchSize {
		end := i + batchSize
		if end > len(documents) {
			end = len(documents)
		}

		task, err := index.AddDocuments(documents[i:end], "id")
		if err != nil {
			return fmt.Errorf("lỗi thêm documents batch %d-%d: %w", i, end, err)
		}

		ri.logger.Info("Đã thêm batch documents",
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int64("task_uid", task.TaskUID))
	}

	ri.logger.Info("Đã seed registry thành công", zap.Int("total_documents", len(documents)))
	return nil
}

// WaitForTask polls a Meilisearch task until it finishes or ctx ends.
func (ri *RegistryIndex) WaitForTask(ctx context.Context, taskUID int64) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		task, err := ri.client.cli.GetTask(taskUID)
		if err != nil {
			return fmt.Errorf("lỗi check task status: %w", err)
		}
		switch task.Status {
		case "succeeded":
			return nil
		case "failed", "canceled":
			return fmt.Errorf("task %d %s", taskUID, task.Status)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
