package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	pings []func(ctx context.Context) error
}

// create a new instance of the health handler; nil pings are skipped
func NewHealthHandler(pings ...func(ctx context.Context) error) *HealthHandler {
	h := &HealthHandler{}
	for _, p := range pings {
		if p != nil {
			h.pings = append(h.pings, p)
		}
	}
	return h
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports ready only while every dependency answers: the credential
// store, and the shared proxy cache when one is configured.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second)
	defer cancel()

	for _, ping := range h.pings {
		if err := ping(cctx); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
