package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/dashboard/internal/auth"
	"github.com/geocoder89/dashboard/internal/domain/user"
	"github.com/geocoder89/dashboard/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (user.Public, error)
	Login(ctx context.Context, in auth.LoginInput) (auth.LoginResult, error)
	Profile(ctx context.Context, userID string) (user.Public, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req auth.RegisterInput

	if !BindJSON(ctx, &req) {
		return
	}

	// hashing plus one insert
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.svc.Register(cctx, req)

	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"user": u,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req auth.LoginInput

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	res, err := h.svc.Login(cctx, req)

	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

// Me returns the caller's profile. Must sit behind RequireAuth.
func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.svc.Profile(cctx, userID)

	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user": u,
	})
}
