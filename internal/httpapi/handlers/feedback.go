package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type feedbackReq struct {
	SessionID string  `json:"session_id" binding:"required"`
	MessageID *uint64 `json:"message_id"`
	Rating    *int    `json:"rating" binding:"required"`
	Comment   string  `json:"comment"`
}

func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Rating == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error_kind": "invalid_request",
			"message":    "session_id and rating are required",
		})
		return
	}
	if *req.Rating != 0 && *req.Rating != 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error_kind": "invalid_request",
			"message":    "rating must be 0 or 1",
		})
		return
	}

	err := h.ChatSvc.SubmitFeedback(c.Request.Context(), req.SessionID, req.MessageID, *req.Rating, req.Comment)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_kind": "invalid_session",
				"message":    "Invalid session ID.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error_kind": "unknown",
			"message":    "Failed to store feedback.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
