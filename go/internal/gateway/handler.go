package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler exposes the hub over HTTP
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// HandleAuctions upgrades to a websocket. Without auction_id the client gets every event.
func (h *Handler) HandleAuctions(w http.ResponseWriter, r *http.Request) {
	auctionID := uuid.Nil
	if raw := r.URL.Query().Get("auction_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid auction_id format", http.StatusBadRequest)
			return
		}
		auctionID = id
	}
	if err := h.hub.Upgrade(w, r, auctionID); err != nil {
		// Upgrade has already written the HTTP error.
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("failed to upgrade websocket connection")
	}
}

// HandleStats reports open subscriptions
func (h *Handler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"total_connections": h.hub.ConnectionCount(),
		"subscriptions":     h.hub.Stats(),
	})
}

// RegisterRoutes mounts the websocket routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/auctions", h.HandleAuctions)
	r.Get("/ws/stats", h.HandleStats)
}
