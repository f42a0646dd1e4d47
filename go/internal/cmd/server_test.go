package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/transfermarket/go/clients"
	"github.com/mcdev12/transfermarket/go/internal/assets"
	"github.com/mcdev12/transfermarket/go/internal/auction"
	"github.com/mcdev12/transfermarket/go/internal/config"
	"github.com/mcdev12/transfermarket/go/internal/gateway"
	"github.com/mcdev12/transfermarket/go/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerWiring(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Default()
	services, err := setupServices(nil, cfg)
	require.NoError(t, err)
	require.NoError(t, services.seed(ctx))

	hub := gateway.NewHub(cfg.Gateway)
	go hub.Start(ctx)
	worker := outbox.NewWorker(services.Outbox, outbox.Fanout{hub}, cfg.Outbox, nil)
	services.Events.OnInsert(worker.Wake)
	require.NoError(t, worker.Start(ctx))
	defer worker.Stop()

	srv := httptest.NewServer(setupServer(cfg, services, hub, outbox.NewHealthChecker(worker, services.Outbox, nil, 0)).Handler)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health outbox.HealthStatus
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, health.Healthy)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/auctions", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	client := clients.NewMarketClient(clients.NewBaseClient(srv.URL))
	seller, err := client.FindClub(ctx, "Napoli")
	require.NoError(t, err)
	players, err := client.ListClubPlayers(ctx, seller.ID)
	require.NoError(t, err)
	require.NotEmpty(t, players)

	a, err := client.CreateAuction(ctx, auction.CreateAuctionParams{
		PlayerID:      players[0].ID.String(),
		SellingClubID: seller.ID.String(),
	})
	require.NoError(t, err)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var ev gateway.MarketEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, a.ID.String(), ev.AuctionID)
}

func TestWatchURL(t *testing.T) {
	u, err := watchURL("https://market.example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://market.example.com/ws/auctions", u)

	u, err = watchURL("http://localhost:8080", []string{"6f1c1b0e-4a7e-4c53-9a6f-3d1d8a0f2c11"})
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/auctions?auction_id=6f1c1b0e-4a7e-4c53-9a6f-3d1d8a0f2c11", u)

	_, err = watchURL("http://localhost:8080", []string{"nope"})
	assert.Error(t, err)
}

func TestPlayerRefAndMoney(t *testing.T) {
	assert.Equal(t, assets.PlayerID("Cole Palmer"), playerRef(" Cole Palmer "))
	id := assets.PlayerID("Bukayo Saka")
	assert.Equal(t, id, playerRef(id.String()))

	assert.Equal(t, "€12.5M", money(12_500_000))
	assert.Equal(t, "€850K", money(850_000))
	assert.Equal(t, "€99", money(99))
}
