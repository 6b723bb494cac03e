package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handlePushMirror(c *gin.Context) {
	report, err := h.reconciler.PushMirror(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (h *httpHandler) handlePullMirror(c *gin.Context) {
	result, err := h.reconciler.PullMirror(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *httpHandler) handleSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.reconciler.Status()})
}

func (h *httpHandler) handleMirrorTest(c *gin.Context) {
	login, err := h.reconciler.TestMirror(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"connected": true, "user": login}})
}
