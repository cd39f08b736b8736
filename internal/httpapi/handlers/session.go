package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartSession creates a new widget session and returns the client-safe
// settings bundle.
func (h *Handler) StartSession(c *gin.Context) {
	sess, err := h.ChatSvc.StartSession(c.Request.Context(), nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error_kind": "unknown",
			"message":    "Failed to create session.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": sess.SessionID,
		"settings": gin.H{
			"welcome_message": h.Cfg.WelcomeMessage,
			"suggestions":     h.Cfg.Suggestions,
		},
	})
}
