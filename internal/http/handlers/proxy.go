package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/geocoder89/dashboard/internal/proxy"
	"github.com/gin-gonic/gin"
)

type ProxyClient interface {
	Weather(ctx context.Context, lat, lon string) (json.RawMessage, error)
	FirstNewsItem(ctx context.Context, feedURL string) (proxy.NewsItem, error)
	Clothes(ctx context.Context) (json.RawMessage, error)
}

type ProxyHandler struct {
	client ProxyClient
}

func NewProxyHandler(client ProxyClient) *ProxyHandler {
	return &ProxyHandler{client: client}
}

func (h *ProxyHandler) Weather(ctx *gin.Context) {
	data, err := h.client.Weather(ctx.Request.Context(), ctx.Query("lat"), ctx.Query("lon"))

	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, data)
}

func (h *ProxyHandler) News(ctx *gin.Context) {
	item, err := h.client.FirstNewsItem(ctx.Request.Context(), ctx.Query("url"))

	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, item)
}

func (h *ProxyHandler) Clothes(ctx *gin.Context) {
	data, err := h.client.Clothes(ctx.Request.Context())

	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, data)
}
