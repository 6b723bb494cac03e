package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/snippetx/backend/internal/mirror"
	"github.com/snippetx/backend/internal/snippets"
	"github.com/snippetx/backend/internal/syncer"
)

// writeError maps domain errors to HTTP. Unexpected failures surface a
// generic message; the detail stays in the logs.
func (h *httpHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, snippets.ErrValidation):
		writeErrorPayload(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, snippets.ErrNotFound):
		writeErrorPayload(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, snippets.ErrConflict):
		writeErrorPayload(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, syncer.ErrMirrorNotConfigured):
		writeErrorPayload(c, http.StatusInternalServerError, "mirror_not_configured", "remote mirror is not configured")
	case errors.Is(err, mirror.ErrCollaborator):
		h.logger.Warn("mirror request failed", zap.Error(err))
		writeErrorPayload(c, http.StatusBadGateway, "mirror_error", "remote mirror request failed")
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		writeErrorPayload(c, http.StatusInternalServerError, "internal_error", "An internal error occurred")
	}
}

func writeErrorPayload(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}
