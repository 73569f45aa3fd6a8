package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/atelier-erp/backend/internal/infrastructure/persistence"
	"github.com/atelier-erp/backend/internal/interfaces/http/dto"
	"github.com/atelier-erp/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// DatabaseChecker is the part of the database the health check needs
type DatabaseChecker interface {
	Ping(ctx context.Context) error
	Stats() (persistence.ConnectionStats, error)
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	BaseHandler
	db        DatabaseChecker
	version   string
	startTime time.Time
	timeout   time.Duration
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db DatabaseChecker, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		version:   version,
		startTime: time.Now(),
		timeout:   2 * time.Second,
	}
}

// HealthResponse is the body of a healthy check
type HealthResponse struct {
	Status    string                      `json:"status"`
	Version   string                      `json:"version"`
	GoVersion string                      `json:"go_version"`
	Uptime    string                      `json:"uptime"`
	Database  persistence.ConnectionStats `json:"database"`
}

// Health godoc
// @ID           healthCheck
// @Summary      Health check
// @Description  Report service version and database connectivity
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=HealthResponse}
// @Failure      503 {object} dto.Response
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.unavailable(c, err)
		return
	}
	stats, err := h.db.Stats()
	if err != nil {
		h.unavailable(c, err)
		return
	}

	h.Success(c, HealthResponse{
		Status:    "ok",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Database:  stats,
	})
}

func (h *HealthHandler) unavailable(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeServiceUnavailable, "Database is unreachable", middleware.GetRequestID(c)))
}
