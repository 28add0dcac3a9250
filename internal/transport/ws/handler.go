package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/D371L/asmodeus/internal/app"
)

// Handler handles WebSocket connections
type Handler struct {
	hub      *app.WheelHub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *app.WheelHub, logger *slog.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Wheels are shared by link; any origin may watch
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wheelID := strings.ToUpper(r.URL.Query().Get("wheelId"))
	if wheelID == "" {
		http.Error(w, "wheelId is required", http.StatusBadRequest)
		return
	}

	// Clients may keep their ID across reconnects
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.New().String()
	}

	session, err := h.hub.GetSession(wheelID)
	if err != nil {
		http.Error(w, "Wheel not found", http.StatusNotFound)
		return
	}

	// Upgrade connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, session, clientID, h.logger)
	session.RegisterClient(clientID, client)

	h.logger.Info("websocket connected",
		"wheelId", wheelID,
		"clientId", clientID,
	)

	client.sendConnected()
	client.Run()
}
