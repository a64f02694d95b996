package api

import (
	"net/http"

	authDelivery "plantpal-backend/internal/auth/delivery"
	authUsecase "plantpal-backend/internal/auth/usecase"
	taskDelivery "plantpal-backend/internal/task/delivery"
	"plantpal-backend/pkg/metrics"
	"plantpal-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, verifier authUsecase.TokenVerifier, taskHandler *taskDelivery.TaskHandler, deviceHandler *authDelivery.DeviceHandler, settings *RuntimeSettings, sseManager *sse.Manager, m *metrics.Metrics) {
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// SSE endpoint
		api.GET("/events", authDelivery.AuthMiddleware(verifier), func(c *gin.Context) {
			sseManager.ServeHTTP(c, c.GetString("userID"))
		})

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(authDelivery.AuthMiddleware(verifier))
		{
			tasks.GET("", taskHandler.GetTasks)
			tasks.POST("", taskHandler.CreateTask)
			tasks.POST("/refresh", taskHandler.RefreshTasks)
			tasks.GET("/quick", taskHandler.GetQuickTasks)
			tasks.GET("/summary", taskHandler.GetSummary)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.POST("/:id/favorite", taskHandler.ToggleFavorite)
			tasks.POST("/:id/complete", taskHandler.CompleteTask)
			tasks.POST("/:id/skip", taskHandler.SkipTask)
		}

		// Suggestion routes (protected)
		suggestions := api.Group("/suggestions")
		suggestions.Use(authDelivery.AuthMiddleware(verifier))
		{
			suggestions.GET("", taskHandler.GetSuggestions)
			suggestions.POST("/:id/adopt", taskHandler.AdoptSuggestion)
		}

		api.POST("/session/end", authDelivery.AuthMiddleware(verifier), taskHandler.EndSession)

		// Device routes (protected) - push reminder registrations
		devices := api.Group("/devices")
		devices.Use(authDelivery.AuthMiddleware(verifier))
		{
			devices.POST("", deviceHandler.RegisterDevice)
			devices.DELETE("/:token", deviceHandler.UnregisterDevice)
		}

		// Settings routes (protected) - Runtime configuration
		runtime := api.Group("/settings")
		runtime.Use(authDelivery.AuthMiddleware(verifier))
		{
			runtime.GET("", settings.GetSettings)
			runtime.PUT("", settings.UpdateSettings)
		}
	}
}
