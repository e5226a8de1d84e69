package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/institution-matcher/app/services"
	"github.com/institution-matcher/helpers/bootstrap"
	"github.com/institution-matcher/internal/stats"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Worker tính metrics snapshot theo ngày. Mỗi lượt tính lại hôm qua và hôm nay
// (UTC), nên một lượt bị lỡ sẽ được bù ở lượt kế tiếp.
func main() {
	// 1. Load configuration
	bootstrap.LoadConfig()

	// 2. Khởi tạo logger
	logger := bootstrap.InitLogger()
	defer logger.Sync()

	interval := viper.GetDuration("worker.interval")
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	logger.Info("Starting Institution Matcher Worker", zap.Duration("interval", interval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Kết nối MongoDB
	db, err := bootstrap.InitMongoDB(ctx, viper.GetString("mongo.url"), logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			logger.Error("Error disconnecting MongoDB", zap.Error(err))
		}
	}()

	logRepo := services.NewValidationLogRepository(db, logger)
	registryRepo := services.NewRegistryRepository(db, 0, logger)
	metricsRepo := services.NewMetricsRepository(db, logger)
	if err := metricsRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure metrics indexes", zap.Error(err))
	}
	aggregator := stats.NewAggregator(logRepo, registryRepo, metricsRepo, logger)

	rollup := func() {
		today := time.Now().UTC()
		for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
			if _, err := aggregator.RecordMetrics(ctx, day); err != nil {
				logger.Error("Metrics rollup failed", zap.Time("date", day), zap.Error(err))
			}
		}
	}

	rollup()
	if viper.GetBool("worker.once") {
		logger.Info("Worker exited")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rollup()
		case <-ctx.Done():
			logger.Info("Worker exited")
			return
		}
	}
}
