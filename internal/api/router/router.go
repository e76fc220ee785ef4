package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint, wired to the database
	r.GET("/health", func(c *gin.Context) {
		if err := deps.Health.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "traxyard-api-service",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "traxyard-api-service",
		})
	})

	exportHandler := handler.NewExportHandler(deps)
	movementHandler := handler.NewMovementHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		exports := v1.Group("/exports")
		{
			// POST /api/v1/exports - Submit an export job
			exports.POST("", exportHandler.SubmitExport)

			// GET /api/v1/exports/:job_id/status - Poll job progress
			exports.GET("/:job_id/status", exportHandler.GetExportStatus)
		}

		movements := v1.Group("/movements")
		{
			// GET /api/v1/movements - Browse movement history
			movements.GET("", movementHandler.ListMovements)

			// POST /api/v1/movements - Log a guard event
			movements.POST("", movementHandler.LogMovement)
		}
	}

	return r
}
