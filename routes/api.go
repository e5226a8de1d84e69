package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/institution-matcher/app/controllers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controllers tất cả controller được đăng ký route
type Controllers struct {
	Institution *controllers.InstitutionController
	Alias       *controllers.AliasController
	Review      *controllers.ReviewController
	Group       *controllers.GroupController
	Metrics     *controllers.MetricsController
	Admin       *controllers.AdminController
}

// SetupAPIRoutes thiết lập tất cả API routes
func SetupAPIRoutes(router *gin.Engine, ctl Controllers) {
	// API v1 group
	v1 := router.Group("/v1")
	{
		institutions := v1.Group("/institutions")
		{
			institutions.POST("/resolve", ctl.Institution.Resolve)
			institutions.GET("/search", ctl.Institution.Search)
			institutions.POST("/jobs", ctl.Institution.BatchResolve)
			institutions.GET("/jobs/:jobID/status", ctl.Institution.GetJobStatus)
			institutions.GET("/jobs/:jobID/results", ctl.Institution.GetJobResults)
		}

		v1.POST("/aliases", ctl.Alias.AddAlias)
		v1.POST("/groups", ctl.Group.Group)

		reviews := v1.Group("/validation-logs")
		{
			reviews.GET("/pending", ctl.Review.ListPending)
			reviews.GET("/:id", ctl.Review.GetLog)
			reviews.POST("/:id/review", ctl.Review.Review)
		}

		snapshots := v1.Group("/metrics")
		{
			snapshots.GET("/:date", ctl.Metrics.GetSnapshot)
			snapshots.POST("/:date/recompute", ctl.Metrics.Recompute)
		}

		// Admin routes
		admin := v1.Group("/admin")
		{
			admin.POST("/rules/invalidate", ctl.Admin.InvalidateRules)
			admin.POST("/seed", ctl.Admin.Seed)
			admin.POST("/indexes/rebuild", ctl.Admin.RebuildIndex)
			admin.GET("/stats", ctl.Admin.GetStats)
		}

		v1.GET("/health", ctl.Institution.HealthCheck)
	}
}

// SetupHealthRoutes thiết lập health check routes
func SetupHealthRoutes(router *gin.Engine, ic *controllers.InstitutionController) {
	router.GET("/health", ic.HealthCheck)
	router.GET("/ready", ic.HealthCheck)
	router.GET("/live", ic.Live)
}

// SetupMetricsRoutes thiết lập metrics routes (cho Prometheus)
func SetupMetricsRoutes(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
