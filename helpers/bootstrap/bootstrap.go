// Package bootstrap gom phần khởi tạo dùng chung cho các binary trong cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"
)

// DefaultDatabase tên database khi URI không chỉ định
const DefaultDatabase = "institution_matcher"

// LoadConfig load configuration từ file app.yaml và env vars
func LoadConfig() {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	// Set defaults
	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("matcher.config_path", "config/matcher.yaml")
	viper.SetDefault("matcher.source_table", "api")
	viper.SetDefault("mongo.url", "mongodb://localhost:27017/"+DefaultDatabase)
	viper.SetDefault("meilisearch.url", "")
	viper.SetDefault("meilisearch.master_key", "")
	viper.SetDefault("meilisearch.index", "registry_entries")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("kafka.brokers", "")
	viper.SetDefault("kafka.topic", "institution.validation")
	viper.SetDefault("batch.workers", 4)
	viper.SetDefault("worker.interval", "15m")

	// MONGO_URL -> mongo.url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Cannot read config file: %v", err)
	}
}

// InitLogger khởi tạo structured logger
func InitLogger() *zap.Logger {
	var config zap.Config
	if viper.GetString("app.env") == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	logger, err := config.Build()
	if err != nil {
		log.Fatal("Cannot initialize logger:", err)
	}
	return logger
}

// InitMongoDB khởi tạo kết nối MongoDB; database lấy từ path của URI
func InitMongoDB(ctx context.Context, mongoURL string, logger *zap.Logger) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	dbName := DefaultDatabase
	if cs, err := connstring.ParseAndValidate(mongoURL); err == nil && cs.Database != "" {
		dbName = cs.Database
	}

	logger.Info("Connected to MongoDB", zap.String("database", dbName))
	return client.Database(dbName), nil
}

// Brokers tách danh sách Kafka broker từ chuỗi phân cách bằng dấu phẩy
func Brokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// GetEnv lấy environment variable với default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt lấy environment variable as int với default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
