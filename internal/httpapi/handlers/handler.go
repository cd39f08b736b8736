package handlers

import (
	"github.com/chatcommerce/assist/internal/chat"
	"github.com/chatcommerce/assist/internal/config"
	"github.com/chatcommerce/assist/internal/diag"
	"github.com/chatcommerce/assist/internal/store/rabbitmq"
)

// Handler carries the request-serving dependencies. Everything is
// constructed once in cmd/server and passed in explicitly.
type Handler struct {
	Cfg     config.Config
	ChatSvc *chat.Service
	ErrLog  diag.ErrorLog
	Rabbit  *rabbitmq.Publisher // nil when messaging is not configured
}

func NewHandler(cfg config.Config, svc *chat.Service, errlog diag.ErrorLog, rabbit *rabbitmq.Publisher) *Handler {
	return &Handler{
		Cfg:     cfg,
		ChatSvc: svc,
		ErrLog:  errlog,
		Rabbit:  rabbit,
	}
}
