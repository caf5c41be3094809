package handlers

import (
	"net/http"

	"github.com/geocoder89/dashboard/internal/apperr"
	"github.com/gin-gonic/gin"
)

// ErrorBody is the shape of every error response: {"error": "..."}.
// Details only appear for malformed or invalid request bodies.
type ErrorBody struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func RespondError(ctx *gin.Context, status int, message string, details interface{}) {
	ctx.JSON(status, ErrorBody{
		Error:   message,
		Details: details,
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, message, details)
}

func RespondUnAuthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, message, nil)
}

// RespondAppError renders err using its apperr kind. Causes are never sent
// to the client; the services log them where they happen.
func RespondAppError(ctx *gin.Context, err error) {
	appErr := apperr.From(err)

	var details interface{}
	if len(appErr.Fields) > 0 {
		details = gin.H{"fields": appErr.Fields}
	}

	_ = ctx.Error(err)
	RespondError(ctx, appErr.Kind.Status(), appErr.Message, details)
}
