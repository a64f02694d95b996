package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	authDelivery "plantpal-backend/internal/auth/delivery"
	authUsecase "plantpal-backend/internal/auth/usecase"
	taskDelivery "plantpal-backend/internal/task/delivery"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	app           *App
	taskHandler   *taskDelivery.TaskHandler
	deviceHandler *authDelivery.DeviceHandler
}

func NewHandler(app *App) *Handler {
	return &Handler{
		app:           app,
		taskHandler:   taskDelivery.NewTaskHandler(app.TaskUsecase, app.Settings.QuickViewLimit),
		deviceHandler: authDelivery.NewDeviceHandler(authUsecase.NewDeviceUsecase(app.Devices)),
	}
}

// Router builds the gin engine with middleware and routes
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.app.Verifier, h.taskHandler, h.deviceHandler, h.app.Settings, h.app.SSE, h.app.Metrics)
	return r
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (h *Handler) Start(ctx context.Context, addr string) error {
	go h.app.SSE.Run()
	defer h.app.SSE.Stop()

	h.app.Scheduler.Start()
	defer h.app.Scheduler.Stop()

	h.app.StartEventRelay(ctx)

	srv := &http.Server{Addr: addr, Handler: h.Router()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Println("Shutting down server")
		// end SSE streams first so Shutdown does not wait on them
		h.app.SSE.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
