package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/snippetx/backend/internal/snippets"
	"github.com/snippetx/backend/internal/syncer"
)

func (h *httpHandler) handleCreate(c *gin.Context) {
	var input snippets.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeErrorPayload(c, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	created, err := h.store.Create(input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (h *httpHandler) handleGet(c *gin.Context) {
	record, err := h.store.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (h *httpHandler) handleUpdate(c *gin.Context) {
	var input snippets.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeErrorPayload(c, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	updated, err := h.store.Update(c.Param("id"), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (h *httpHandler) handleDelete(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleToggleFavorite(c *gin.Context) {
	record, err := h.store.ToggleFavorite(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (h *httpHandler) handleList(c *gin.Context) {
	result := h.store.List(snippets.ListFilter{
		Language: c.Query("language"),
		Tags:     splitTags(c.Query("tags")),
		Offset:   intQuery(c, "offset", 0),
		Limit:    intQuery(c, "limit", snippets.DefaultPageLimit),
	})
	c.JSON(http.StatusOK, gin.H{"data": result.Data, "meta": result.Meta})
}

func (h *httpHandler) handleSearch(c *gin.Context) {
	result := h.store.Search(snippets.Query{
		Term:         c.Query("q"),
		Language:     c.Query("language"),
		Tags:         splitTags(c.Query("tags")),
		FavoriteOnly: strings.EqualFold(c.Query("favorite"), "true"),
		Offset:       intQuery(c, "offset", 0),
		Limit:        intQuery(c, "limit", snippets.DefaultPageLimit),
	})
	c.JSON(http.StatusOK, gin.H{"data": result.Data, "meta": result.Meta})
}

func (h *httpHandler) handleLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": snippets.SupportedLanguages})
}

type bulkRequestPayload struct {
	Snippets []syncer.ExternalRecord `json:"snippets"`
}

func (h *httpHandler) handleBulkImport(c *gin.Context) {
	var request bulkRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Snippets == nil {
		writeErrorPayload(c, http.StatusBadRequest, "invalid_request", "snippets must be an array")
		return
	}

	result := h.reconciler.ImportBulk(request.Snippets)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
