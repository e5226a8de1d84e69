package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/institution-matcher/app/config"
	"github.com/institution-matcher/app/controllers"
	"github.com/institution-matcher/app/services"
	"github.com/institution-matcher/helpers/bootstrap"
	"github.com/institution-matcher/internal/audit"
	"github.com/institution-matcher/internal/external"
	"github.com/institution-matcher/internal/grouping"
	"github.com/institution-matcher/internal/matcher"
	"github.com/institution-matcher/internal/normalizer"
	"github.com/institution-matcher/internal/scoring"
	"github.com/institution-matcher/internal/search"
	"github.com/institution-matcher/internal/stats"
	"github.com/institution-matcher/routes"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// 1. Load configuration
	bootstrap.LoadConfig()
	if err := config.Load(viper.GetString("matcher.config_path")); err != nil {
		panic(err)
	}
	cfg := config.C

	// 2. Khởi tạo logger
	logger := bootstrap.InitLogger()
	defer logger.Sync()

	logger.Info("Starting Institution Matcher Service",
		zap.Bool("libpostal", cfg.UseLibpostal && external.LibpostalAvailable))

	// 3. Kết nối MongoDB
	ctx := context.Background()
	db, err := bootstrap.InitMongoDB(ctx, viper.GetString("mongo.url"), logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			logger.Error("Error disconnecting MongoDB", zap.Error(err))
		}
	}()

	// 4. Repositories
	ruleRepo := services.NewRuleRepository(db, logger)
	registryRepo := services.NewRegistryRepository(db, cfg.Retrieval.MeiliCandidates, logger)
	logRepo := services.NewValidationLogRepository(db, logger)
	metricsRepo := services.NewMetricsRepository(db, logger)
	recordRepo := services.NewInstitutionRecordRepository(db, logger)

	for name, ensure := range map[string]func(context.Context) error{
		"rules":           ruleRepo.EnsureIndexes,
		"registry":        registryRepo.EnsureIndexes,
		"validation_logs": logRepo.EnsureIndexes,
		"metrics":         metricsRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			logger.Warn("Failed to ensure indexes", zap.String("collection", name), zap.Error(err))
		}
	}

	// 5. Normalization
	ruleStore := normalizer.NewRuleStore(ruleRepo, ruleRepo, cfg.RuleTTL(), logger)
	textNormalizer := normalizer.NewTextNormalizer()
	expandRoad := func(s string) string { return s }
	if cfg.UseLibpostal {
		expandRoad = external.ExpandRoadAddress
	}
	addressNormalizer := normalizer.NewAddressNormalizer(cfg.LotMarkers, expandRoad)

	scoringEngine, err := scoring.NewEngine(cfg.Scoring)
	if err != nil {
		logger.Fatal("Invalid scoring config", zap.Error(err))
	}

	// 6. Candidate source: Meilisearch nếu có, fallback MongoDB
	var registryIndex *search.RegistryIndex
	var primary search.CandidateSource
	if url := viper.GetString("meilisearch.url"); url != "" {
		registryIndex, err = search.NewRegistryIndex(search.IndexConfig{
			Host:          url,
			APIKey:        viper.GetString("meilisearch.master_key"),
			IndexName:     viper.GetString("meilisearch.index"),
			Timeout:       cfg.MeiliTimeout(),
			MaxCandidates: cfg.Retrieval.MeiliCandidates,
		}, logger)
		if err != nil {
			logger.Warn("Meilisearch unavailable, using MongoDB retrieval only", zap.Error(err))
			registryIndex = nil
		} else {
			primary = registryIndex
		}
	}
	retriever := search.NewRetriever(&search.FallbackSource{
		Primary:   primary,
		Secondary: registryRepo,
		Logger:    logger,
	}, cfg.Retrieval.CandidateLimit, logger)

	// 7. Search cache (LRU L1 + Redis L2)
	localCache, err := services.NewCacheService(cfg.Retrieval.SearchCacheSize, cfg.SearchCacheTTL())
	if err != nil {
		logger.Fatal("Failed to initialize local cache", zap.Error(err))
	}
	var sharedCache services.ISearchCache
	var redisCache *services.RedisCacheService
	if url := viper.GetString("redis.url"); url != "" {
		redisCache, err = services.NewRedisCacheService(url, cfg.SearchCacheTTL(), logger)
		if err != nil {
			logger.Warn("Redis unavailable, using local cache only", zap.Error(err))
		} else {
			sharedCache = redisCache
		}
	}
	searchCache := services.NewHybridCacheService(localCache, sharedCache, logger)
	defer searchCache.Close()

	// 8. Audit: MongoDB + Kafka (optional)
	var publisher audit.Publisher
	var kafkaPublisher *services.ValidationPublisher
	if brokers := bootstrap.Brokers(viper.GetString("kafka.brokers")); len(brokers) > 0 {
		kafkaPublisher = services.NewValidationPublisher(brokers, viper.GetString("kafka.topic"), logger)
		publisher = kafkaPublisher
	}
	auditWriter := audit.NewWriter(logRepo, publisher, cfg.AuditBufferSize, logger)

	// 9. Domain services
	var indexSync matcher.IndexSync
	if registryIndex != nil {
		indexSync = services.NewRegistryIndexSync(registryRepo, registryIndex)
	}
	m := matcher.NewMatcher(matcher.Deps{
		Rules:      ruleStore,
		Text:       textNormalizer,
		Address:    addressNormalizer,
		Engine:     scoringEngine,
		Retriever:  retriever,
		Aliases:    registryRepo,
		Reviews:    logRepo,
		Audit:      auditWriter,
		Cache:      searchCache,
		Index:      indexSync,
		SourceName: viper.GetString("matcher.source_table"),
	}, logger)

	groupingEngine, err := grouping.NewEngine(recordRepo, ruleStore, textNormalizer, cfg.Grouping.Engine, logger)
	if err != nil {
		logger.Fatal("Invalid grouping config", zap.Error(err))
	}
	aggregator := stats.NewAggregator(logRepo, registryRepo, metricsRepo, logger)
	batchService := services.NewBatchService(m, viper.GetString("matcher.source_table"), viper.GetInt("batch.workers"), logger)
	adminService := services.NewAdminService(db, ruleRepo, registryRepo, registryIndex, ruleStore, searchCache, logger)

	// 10. Controllers
	checks := map[string]controllers.HealthCheck{
		"mongodb": func(ctx context.Context) error { return db.Client().Ping(ctx, nil) },
	}
	if redisCache != nil {
		checks["redis"] = redisCache.Ping
	}
	ctl := routes.Controllers{
		Institution: controllers.NewInstitutionController(m, batchService, checks, cfg.RequestTimeout(), viper.GetString("app.version"), logger),
		Alias:       controllers.NewAliasController(m, logger),
		Review:      controllers.NewReviewController(logRepo, m, logger),
		Group:       controllers.NewGroupController(groupingEngine, cfg.Grouping.Threshold, 30*time.Second, logger),
		Metrics:     controllers.NewMetricsController(metricsRepo, aggregator, logger),
		Admin:       controllers.NewAdminController(adminService, logger),
	}

	// 11. Router
	if viper.GetString("app.env") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupAllRoutes(router, ctl, logger)

	// 12. Khởi động server
	port := viper.GetString("app.port")
	srv := &http.Server{Addr: ":" + port, Handler: router}
	go func() {
		logger.Info("Institution Matcher Service starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	// drain audit queue trước khi đóng Kafka
	if err := auditWriter.Close(shutdownCtx); err != nil {
		logger.Warn("Audit writer did not drain", zap.Error(err))
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("Failed to close Kafka writer", zap.Error(err))
		}
	}

	logger.Info("Server exited", zap.Any("audit", auditWriter.Stats()))
}
