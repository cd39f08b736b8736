package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatcommerce/assist/internal/common"
	"github.com/chatcommerce/assist/internal/config"
	"github.com/chatcommerce/assist/internal/httpapi/handlers"
	"github.com/chatcommerce/assist/internal/httpapi/middleware"
)

// NewRouter wires the public widget endpoints and the JWT-guarded admin
// group.
func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger(), middleware.Recovery(), middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	r.POST("/session/start", h.StartSession)
	r.POST("/chat/stream", h.Chat)
	r.POST("/feedback", h.SubmitFeedback)
	r.POST("/lead", h.CaptureLead)
	r.GET("/session/:session_id/messages", h.ListMessages)

	admin := r.Group("/admin", middleware.AuthRequired(cfg.JWTSecret))
	{
		admin.GET("/status", h.Status)
		admin.GET("/errors", h.RecentErrors)
		admin.POST("/test-connection", h.TestConnection)
	}

	return r
}
