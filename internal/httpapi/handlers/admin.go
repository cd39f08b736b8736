package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatcommerce/assist/internal/common"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

// Status reports the active provider configuration and aggregate counters.
func (h *Handler) Status(c *gin.Context) {
	stats, err := h.ChatSvc.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error_kind": "unknown",
			"message":    "failed to collect stats",
		})
		return
	}

	provider := gin.H{
		"name":       h.Cfg.AIProvider,
		"configured": h.ChatSvc.Provider() != nil,
	}
	if p := h.ChatSvc.Provider(); p != nil {
		provider["name"] = p.Name()
		provider["streaming"] = p.SupportsStreaming()
	}
	switch h.Cfg.AIProvider {
	case "huggingface":
		provider["model"] = h.Cfg.HFModel
	default:
		provider["model"] = h.Cfg.OpenAIModel
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"provider": provider,
		"stats": gin.H{
			"sessions": stats.Sessions,
			"messages": stats.Messages,
			"leads":    stats.Leads,
		},
	})
}

// RecentErrors returns the short ring of recent pipeline failures for
// operator diagnostics. Messages are already sanitized at record time.
func (h *Handler) RecentErrors(c *gin.Context) {
	records, err := h.ErrLog.Recent(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error_kind": "unknown",
			"message":    "failed to read error log",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "errors": records})
}

// TestConnection runs a live round trip against the configured upstream.
func (h *Handler) TestConnection(c *gin.Context) {
	p := h.ChatSvc.Provider()
	if p == nil {
		c.JSON(http.StatusOK, gin.H{
			"success":    false,
			"message":    "AI provider is not configured. Check the API key settings.",
			"request_id": common.NewRequestID(),
		})
		return
	}

	res := p.TestConnection(c.Request.Context())
	if !res.Success {
		res.RequestID = common.NewRequestID()
	}
	c.JSON(http.StatusOK, res)
}
