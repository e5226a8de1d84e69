package routes

import (
	"github.com/gin-gonic/gin"
)

// SetupWebRoutes thiết lập web routes
func SetupWebRoutes(router *gin.Engine) {
	web := router.Group("/")
	{
		web.GET("/", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"message": "Institution Matcher Service",
				"docs":    "/docs",
			})
		})

		web.GET("/docs", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"api": "Institution Matcher API v1",
				"endpoints": map[string]string{
					"resolve":     "POST /v1/institutions/resolve",
					"search":      "GET /v1/institutions/search?name=&region_code=&limit=",
					"batch":       "POST /v1/institutions/jobs",
					"job_status":  "GET /v1/institutions/jobs/:jobID/status",
					"job_results": "GET /v1/institutions/jobs/:jobID/results?format=ndjson&gzip=1",
					"add_alias":   "POST /v1/aliases",
					"group":       "POST /v1/groups",
					"pending":     "GET /v1/validation-logs/pending",
					"review":      "POST /v1/validation-logs/:id/review",
					"metrics":     "GET /v1/metrics/:date",
					"recompute":   "POST /v1/metrics/:date/recompute",
					"health":      "GET /v1/health",
				},
			})
		})
	}
}
