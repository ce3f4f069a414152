package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dealscope/services"
)

// writeError maps domain failures onto status codes. Anything unrecognized
// is logged and reported as a generic server error.
func (h *Handler) writeError(c *gin.Context, err error) {
	body := gin.H{"message": err.Error()}
	status := http.StatusInternalServerError

	var verr *services.ValidationError
	var qerr *services.QuotaExceededError
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		status, body["error"] = http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, services.ErrForbidden):
		status, body["error"] = http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrNotFound):
		status, body["error"] = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrTerminalOffer):
		status, body["error"] = http.StatusConflict, "offer_terminal"
	case errors.Is(err, services.ErrOfferArchived):
		status, body["error"] = http.StatusConflict, "offer_archived"
	case errors.Is(err, services.ErrInvalidTransition):
		status, body["error"] = http.StatusConflict, "invalid_transition"
	case errors.As(err, &verr):
		status, body["error"] = http.StatusUnprocessableEntity, "validation_failed"
		body["field"] = verr.Field
	case errors.As(err, &qerr):
		status, body["error"] = http.StatusTooManyRequests, "quota_exceeded"
		body["limit"] = qerr.Limit
	case errors.Is(err, services.ErrExportDisabled):
		status, body["error"] = http.StatusServiceUnavailable, "export_disabled"
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		body["error"] = "internal"
		body["message"] = "Something went wrong. Please try again."
	}

	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": message})
}
