package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chatcommerce/assist/internal/chat"
	"github.com/chatcommerce/assist/internal/store/rabbitmq"
)

type leadReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Name      string `json:"name"`
	Email     string `json:"email" binding:"required"`
	Phone     string `json:"phone"`
	Consent   bool   `json:"consent"`
}

func (h *Handler) CaptureLead(c *gin.Context) {
	var req leadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error_kind": "invalid_request",
			"message":    "session_id and email are required",
		})
		return
	}

	lead, err := h.ChatSvc.CaptureLead(c.Request.Context(), req.SessionID, req.Name, req.Email, req.Phone, req.Consent)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrConsentRequired):
			c.JSON(http.StatusBadRequest, gin.H{
				"error_kind": "consent_required",
				"message":    "Consent is required to capture lead information.",
			})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusBadRequest, gin.H{
				"error_kind": "invalid_session",
				"message":    "Invalid session ID.",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_kind": "unknown",
				"message":    "Failed to capture lead.",
			})
		}
		return
	}

	// Notification delivery is async and best-effort; the lead row is the
	// source of truth.
	if h.Rabbit != nil {
		n := rabbitmq.LeadNotification{
			LeadID:    lead.ID,
			SessionID: lead.SessionID,
			Name:      lead.Name,
			Email:     lead.Email,
			Phone:     lead.Phone,
		}
		if err := h.Rabbit.PublishLead(c.Request.Context(), n); err != nil {
			log.Printf("[lead] publish notification failed lead_id=%d err=%v", lead.ID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "lead_id": lead.ID})
}
