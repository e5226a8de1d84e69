// Package routes đăng ký toàn bộ HTTP routes của Institution Matcher.
//
// Cấu trúc:
//   - api.go: API routes (/v1/*), health và Prometheus
//   - web.go: Web routes (/, /docs)
//
// Sử dụng:
//
//	routes.SetupAllRoutes(router, routes.Controllers{...}, logger)
package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/institution-matcher/internal/metrics"
	"go.uber.org/zap"
)

// SetupAllRoutes thiết lập tất cả routes
func SetupAllRoutes(router *gin.Engine, ctl Controllers, logger *zap.Logger) {
	// Thiết lập middleware
	setupMiddleware(router, logger)

	// Thiết lập các loại routes
	SetupWebRoutes(router)
	SetupHealthRoutes(router, ctl.Institution)
	SetupAPIRoutes(router, ctl)
	SetupMetricsRoutes(router)

	// 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"error":  "Route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})
}

// setupMiddleware thiết lập middleware cho router
func setupMiddleware(router *gin.Engine, logger *zap.Logger) {
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
}

// requestLogger log request bằng zap và ghi HTTP metrics
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), elapsed)

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", elapsed))
	}
}
