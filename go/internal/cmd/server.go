package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcdev12/transfermarket/go/internal/auction"
	"github.com/mcdev12/transfermarket/go/internal/club"
	"github.com/mcdev12/transfermarket/go/internal/config"
	"github.com/mcdev12/transfermarket/go/internal/gateway"
	"github.com/mcdev12/transfermarket/go/internal/outbox"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg config.Config, services *Services, hub *gateway.Hub, health *outbox.HealthChecker) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Market-Error-Kind"},
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		registerServices(r, services)
		setupHealthCheck(r, health)
		gateway.NewStateHandler(services.Auctions, nil).RegisterRoutes(r)
	})

	// Websocket routes stay outside the timeout group; connections are long-lived.
	gateway.NewHandler(hub).RegisterRoutes(r)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           h2c.NewHandler(c.Handler(r), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerServices(r chi.Router, services *Services) {
	clubServicePath, clubServiceHandler := club.NewClubServiceHandler(club.NewService(services.Clubs))
	r.Handle(clubServicePath+"*", clubServiceHandler)

	auctionServicePath, auctionServiceHandler := auction.NewAuctionServiceHandler(auction.NewService(services.Auctions))
	r.Handle(auctionServicePath+"*", auctionServiceHandler)
}

func setupHealthCheck(r chi.Router, health *outbox.HealthChecker) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := health.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
