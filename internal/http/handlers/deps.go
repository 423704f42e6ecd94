package handlers

import (
	"github.com/jmoiron/sqlx"

	"shopfront/internal/config"
	"shopfront/internal/realtime"
	"shopfront/internal/repos"
	"shopfront/internal/services"
)

type Deps struct {
	AuthHandler    *AuthHandler
	OrderHandler   *OrderHandler
	MessageHandler *MessageHandler
	EventsHandler  *EventsHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, auth *services.AuthService, hub *realtime.Hub, rt realtime.Publisher, events services.EventPublisher) *Deps {
	prodRepo := repos.NewProductRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	msgRepo := repos.NewMessageRepo(db)

	orderSvc := services.NewOrderService(db, prodRepo, orderRepo, cfg.TaxRate, events)
	msgSvc := services.NewMessageService(db, msgRepo, auth.Users, rt)

	return &Deps{
		AuthHandler:    &AuthHandler{Auth: auth},
		OrderHandler:   &OrderHandler{Order: orderSvc, Repo: orderRepo},
		MessageHandler: &MessageHandler{Messages: msgSvc},
		EventsHandler:  &EventsHandler{Hub: hub},
	}
}
