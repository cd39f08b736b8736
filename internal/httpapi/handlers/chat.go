package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chatcommerce/assist/internal/chat"
)

type chatReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func pipelineError(c *gin.Context, e *chat.Error) {
	c.JSON(e.Kind.HTTPStatus(), gin.H{
		"error_kind": string(e.Kind),
		"message":    e.Message,
		"request_id": e.RequestID,
	})
}

// Chat handles one turn. The Accept header negotiates between the live
// event stream and a single buffered JSON response; both run the same
// validate/rate-limit/persist pipeline.
func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error_kind": "invalid_request",
			"message":    "session_id and message are required",
		})
		return
	}

	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		h.streamChat(c, req.SessionID, req.Message)
		return
	}

	res, cerr := h.ChatSvc.HandleTurn(c.Request.Context(), req.SessionID, req.Message)
	if cerr != nil {
		pipelineError(c, cerr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    res.Content,
		"tokens":     res.Tokens,
		"message_id": res.MessageID,
	})
}

// streamChat emits the event stream: one "connected", zero or more
// "message" chunks, then exactly one terminal "done" or "error".
func (h *Handler) streamChat(c *gin.Context, sessionID, message string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\":\"streaming not supported\"}\n\n")
		return
	}

	writeEvent := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			// last-resort: send a simple error that won't break the framing
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\":\"encoding failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\n", event)
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		flusher.Flush()
	}

	writeEvent("connected", gin.H{"status": "ready"})

	ctx := c.Request.Context()
	chunks, end := h.ChatSvc.HandleTurnStream(ctx, sessionID, message)

	// Drain every chunk before touching the terminal channel so "message"
	// events never trail the terminal event.
	for chunks != nil {
		select {
		case ch, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			writeEvent("message", gin.H{"chunk": ch})
		case <-ctx.Done():
			// Client is gone; the pipeline persists the partial on its own.
			return
		}
	}

	select {
	case res, ok := <-end:
		if !ok {
			return
		}
		if res.Err != nil {
			writeEvent("error", gin.H{
				"error":      res.Err.Message,
				"type":       string(res.Err.Kind),
				"request_id": res.Err.RequestID,
			})
			return
		}
		writeEvent("done", gin.H{
			"status":     "complete",
			"tokens":     res.Tokens,
			"message_id": res.MessageID,
		})
	case <-ctx.Done():
	}
}

func (h *Handler) ListMessages(c *gin.Context) {
	sessionID := c.Param("session_id")
	limit, _ := strconv.Atoi(c.Query("limit"))

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), sessionID, limit)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusBadRequest, gin.H{"error_kind": "invalid_session", "message": "Invalid session ID."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error_kind": "unknown", "message": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}
