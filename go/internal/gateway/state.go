package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/transfermarket/go/internal/auction"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/rs/zerolog/log"
)

// StateProvider is what a client needs to catch up before following the
// websocket stream
type StateProvider interface {
	GetAuctionStatus(ctx context.Context, id uuid.UUID) (*auction.StatusView, error)
	ListActiveAuctions(ctx context.Context) ([]models.Auction, error)
}

// AuctionSummary is one row of the active auction board
type AuctionSummary struct {
	AuctionID       uuid.UUID `json:"auction_id"`
	PlayerName      string    `json:"player_name"`
	SellingClubID   uuid.UUID `json:"selling_club_id"`
	CurrentPrice    int64     `json:"current_price"`
	BuyNowPrice     int64     `json:"buy_now_price"`
	BidCount        int       `json:"bid_count"`
	EndTime         time.Time `json:"end_time"`
	TimeLeftSeconds int64     `json:"time_left_seconds"`
}

// StateHandler serves auction snapshots over plain HTTP
type StateHandler struct {
	provider StateProvider
	clock    clockwork.Clock
}

func NewStateHandler(provider StateProvider, clock clockwork.Clock) *StateHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StateHandler{provider: provider, clock: clock}
}

// HandleGetAuctionState handles GET /api/auctions/{id}/state
func (h *StateHandler) HandleGetAuctionState(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid auction id format", http.StatusBadRequest)
		return
	}

	state, err := h.provider.GetAuctionStatus(r.Context(), auctionID)
	switch {
	case errors.Is(err, models.ErrAuctionNotFound):
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	case err != nil:
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("failed to get auction state")
		http.Error(w, "failed to get auction state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, state)
}

// HandleGetActiveAuctions handles GET /api/auctions/active, soonest ending first
func (h *StateHandler) HandleGetActiveAuctions(w http.ResponseWriter, r *http.Request) {
	list, err := h.provider.ListActiveAuctions(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get active auctions")
		http.Error(w, "failed to get active auctions", http.StatusInternalServerError)
		return
	}

	now := h.clock.Now()
	out := make([]AuctionSummary, 0, len(list))
	for i := range list {
		a := &list[i]
		out = append(out, AuctionSummary{
			AuctionID:       a.ID,
			PlayerName:      a.PlayerName,
			SellingClubID:   a.SellingClubID,
			CurrentPrice:    a.CurrentPrice,
			BuyNowPrice:     a.BuyNowPrice,
			BidCount:        len(a.Bids),
			EndTime:         a.EndTime,
			TimeLeftSeconds: int64(a.TimeLeft(now).Seconds()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	writeJSON(w, out)
}

func (h *StateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/auctions/active", h.HandleGetActiveAuctions)
	r.Get("/api/auctions/{id}/state", h.HandleGetAuctionState)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
