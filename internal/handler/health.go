package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// Handler serves the operational endpoints.
type Handler struct {
	db *sqlx.DB
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{"status": "alive"}))
}

// ReadinessCheck reports ready only when the database answers a ping.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, NewErrorResponse("database unreachable"))
			return
		}
	}

	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{"status": "ready"}))
}
