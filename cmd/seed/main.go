package main

import (
	"context"
	"os"
	"time"

	"github.com/institution-matcher/app/config"
	"github.com/institution-matcher/app/services"
	"github.com/institution-matcher/helpers/bootstrap"
	"github.com/institution-matcher/internal/external"
	"github.com/institution-matcher/internal/normalizer"
	"github.com/institution-matcher/internal/search"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Seed rule + region mặc định, import registry từ file JSON (seed.registry_file)
// rồi index lại Meilisearch nếu có cấu hình.
func main() {
	bootstrap.LoadConfig()
	if err := config.Load(viper.GetString("matcher.config_path")); err != nil {
		panic(err)
	}
	cfg := config.C

	logger := bootstrap.InitLogger()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	db, err := bootstrap.InitMongoDB(ctx, viper.GetString("mongo.url"), logger)
	if err != nil {
		logger.Fatal("Không thể kết nối MongoDB", zap.Error(err))
	}
	defer db.Client().Disconnect(context.Background())

	ruleRepo := services.NewRuleRepository(db, logger)
	registryRepo := services.NewRegistryRepository(db, 0, logger)
	for _, ensure := range []func(context.Context) error{ruleRepo.EnsureIndexes, registryRepo.EnsureIndexes} {
		if err := ensure(ctx); err != nil {
			logger.Fatal("Lỗi tạo index MongoDB", zap.Error(err))
		}
	}
	ruleStore := normalizer.NewRuleStore(ruleRepo, ruleRepo, cfg.RuleTTL(), logger)

	var registryIndex *search.RegistryIndex
	if url := viper.GetString("meilisearch.url"); url != "" {
		registryIndex, err = search.NewRegistryIndex(search.IndexConfig{
			Host:      url,
			APIKey:    viper.GetString("meilisearch.master_key"),
			IndexName: viper.GetString("meilisearch.index"),
			Timeout:   cfg.MeiliTimeout(),
		}, logger)
		if err != nil {
			logger.Fatal("Không thể kết nối Meilisearch", zap.Error(err))
		}
	}
	admin := services.NewAdminService(db, ruleRepo, registryRepo, registryIndex, ruleStore, nil, logger)

	// 1. Rule + region mặc định
	result, err := admin.SeedDefaults(ctx, false)
	if err != nil {
		logger.Fatal("Lỗi seed rules", zap.Error(err))
	}

	// 2. Registry
	if path := viper.GetString("seed.registry_file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			logger.Fatal("Không mở được registry file", zap.String("path", path), zap.Error(err))
		}
		expandRoad := func(s string) string { return s }
		if cfg.UseLibpostal {
			expandRoad = external.ExpandRoadAddress
		}
		importer := services.NewRegistryImporter(ruleStore, normalizer.NewTextNormalizer(),
			normalizer.NewAddressNormalizer(cfg.LotMarkers, expandRoad), registryRepo, logger)
		n, err := importer.ImportJSON(ctx, f)
		f.Close()
		if err != nil {
			logger.Fatal("Lỗi import registry", zap.Error(err))
		}
		logger.Info("Registry imported", zap.Int("entries", n))
	}

	// 3. Meilisearch
	if registryIndex != nil {
		n, err := admin.RebuildIndex(ctx)
		if err != nil {
			logger.Fatal("Lỗi index Meilisearch", zap.Error(err))
		}
		result.EntriesIndexed = n
	}

	logger.Info("Seed hoàn thành",
		zap.Int("rules", result.RulesSeeded),
		zap.Int("regions", result.RegionsSeeded),
		zap.Int("entries_indexed", result.EntriesIndexed))
}
