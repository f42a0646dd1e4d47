package auction

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/mcdev12/transfermarket/go/internal/rpc"
)

// ServiceName is the fully-qualified name of the auction service.
const ServiceName = "transfermarket.v1.AuctionService"

var (
	CreateAuctionProcedure      = rpc.Procedure(ServiceName, "CreateAuction")
	PlaceBidProcedure           = rpc.Procedure(ServiceName, "PlaceBid")
	BuyNowProcedure             = rpc.Procedure(ServiceName, "BuyNow")
	ProcessAuctionProcedure     = rpc.Procedure(ServiceName, "ProcessAuction")
	CancelAuctionProcedure      = rpc.Procedure(ServiceName, "CancelAuction")
	GetAuctionProcedure         = rpc.Procedure(ServiceName, "GetAuction")
	GetAuctionStatusProcedure   = rpc.Procedure(ServiceName, "GetAuctionStatus")
	ListAuctionsProcedure       = rpc.Procedure(ServiceName, "ListAuctions")
	ListActiveAuctionsProcedure = rpc.Procedure(ServiceName, "ListActiveAuctions")
)

type CreateAuctionParams struct {
	PlayerID        string `json:"player_id"`
	SellingClubID   string `json:"selling_club_id"`
	StartingPrice   int64  `json:"starting_price,omitempty"`
	BuyNowPrice     int64  `json:"buy_now_price,omitempty"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
	Description     string `json:"description,omitempty"`
}

type AuctionResponse struct {
	Auction *models.Auction `json:"auction"`
}

type PlaceBidRequest struct {
	AuctionID string `json:"auction_id"`
	ClubID    string `json:"club_id"`
	Amount    int64  `json:"amount"`
}

type BuyNowRequest struct {
	AuctionID string `json:"auction_id"`
	ClubID    string `json:"club_id"`
}

// SettledAuctionResponse carries the auction and, when money moved, its transfer
type SettledAuctionResponse struct {
	Auction  *models.Auction  `json:"auction"`
	Transfer *models.Transfer `json:"transfer,omitempty"`
}

type ProcessAuctionRequest struct {
	AuctionID string `json:"auction_id"`
}

type CancelAuctionRequest struct {
	AuctionID string `json:"auction_id"`
	Reason    string `json:"reason,omitempty"`
}

type GetAuctionRequest struct {
	AuctionID string `json:"auction_id"`
}

type GetAuctionStatusResponse struct {
	Status *StatusView `json:"status"`
}

type ListAuctionsRequest struct {
	Status        string `json:"status,omitempty"`
	SellingClubID string `json:"selling_club_id,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

type ListActiveAuctionsRequest struct{}

type ListAuctionsResponse struct {
	Auctions []models.Auction `json:"auctions"`
}

// AuctionApp defines what the service layer needs from the auction application
type AuctionApp interface {
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*models.Auction, error)
	PlaceBid(ctx context.Context, auctionID, clubID uuid.UUID, amount int64) (*models.Auction, error)
	BuyNow(ctx context.Context, auctionID, clubID uuid.UUID) (*models.Auction, *models.Transfer, error)
	Expire(ctx context.Context, auctionID uuid.UUID) (*models.Auction, *models.Transfer, error)
	Cancel(ctx context.Context, auctionID uuid.UUID, reason string) (*models.Auction, error)
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	GetAuctionStatus(ctx context.Context, id uuid.UUID) (*StatusView, error)
	ListAuctions(ctx context.Context, filter ListFilter) ([]models.Auction, error)
	ListActiveAuctions(ctx context.Context) ([]models.Auction, error)
}

// Service implements the AuctionService RPCs
type Service struct {
	app AuctionApp
}

// NewService creates a new auction service
func NewService(app AuctionApp) *Service {
	return &Service{app: app}
}

// NewAuctionServiceHandler mounts every AuctionService procedure under one path prefix.
func NewAuctionServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(CreateAuctionProcedure, rpc.Unary(CreateAuctionProcedure, svc.CreateAuction, opts...))
	mux.Handle(PlaceBidProcedure, rpc.Unary(PlaceBidProcedure, svc.PlaceBid, opts...))
	mux.Handle(BuyNowProcedure, rpc.Unary(BuyNowProcedure, svc.BuyNow, opts...))
	mux.Handle(ProcessAuctionProcedure, rpc.Unary(ProcessAuctionProcedure, svc.ProcessAuction, opts...))
	mux.Handle(CancelAuctionProcedure, rpc.Unary(CancelAuctionProcedure, svc.CancelAuction, opts...))
	mux.Handle(GetAuctionProcedure, rpc.Unary(GetAuctionProcedure, svc.GetAuction, opts...))
	mux.Handle(GetAuctionStatusProcedure, rpc.Unary(GetAuctionStatusProcedure, svc.GetAuctionStatus, opts...))
	mux.Handle(ListAuctionsProcedure, rpc.Unary(ListAuctionsProcedure, svc.ListAuctions, opts...))
	mux.Handle(ListActiveAuctionsProcedure, rpc.Unary(ListActiveAuctionsProcedure, svc.ListActiveAuctions, opts...))
	return "/" + ServiceName + "/", mux
}

// CreateAuction lists a player for sale
func (s *Service) CreateAuction(ctx context.Context, req *CreateAuctionParams) (*AuctionResponse, error) {
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		return nil, rpc.InvalidArgument("player_id: %v", err)
	}
	sellerID, err := uuid.Parse(req.SellingClubID)
	if err != nil {
		return nil, rpc.InvalidArgument("selling_club_id: %v", err)
	}
	if req.StartingPrice < 0 || req.BuyNowPrice < 0 || req.DurationSeconds < 0 {
		return nil, rpc.InvalidArgument("prices and duration cannot be negative")
	}

	a, err := s.app.CreateAuction(ctx, CreateAuctionRequest{
		PlayerID:      playerID,
		SellingClubID: sellerID,
		StartingPrice: req.StartingPrice,
		BuyNowPrice:   req.BuyNowPrice,
		Duration:      time.Duration(req.DurationSeconds) * time.Second,
		Description:   req.Description,
	})
	if err != nil {
		return nil, err
	}
	return &AuctionResponse{Auction: a}, nil
}

// PlaceBid submits a bid
func (s *Service) PlaceBid(ctx context.Context, req *PlaceBidRequest) (*AuctionResponse, error) {
	auctionID, clubID, err := parseAuctionAndClub(req.AuctionID, req.ClubID)
	if err != nil {
		return nil, err
	}
	a, err := s.app.PlaceBid(ctx, auctionID, clubID, req.Amount)
	if err != nil {
		return nil, err
	}
	return &AuctionResponse{Auction: a}, nil
}

// BuyNow purchases the player at the buy now price
func (s *Service) BuyNow(ctx context.Context, req *BuyNowRequest) (*SettledAuctionResponse, error) {
	auctionID, clubID, err := parseAuctionAndClub(req.AuctionID, req.ClubID)
	if err != nil {
		return nil, err
	}
	a, t, err := s.app.BuyNow(ctx, auctionID, clubID)
	if err != nil {
		return nil, err
	}
	return &SettledAuctionResponse{Auction: a, Transfer: t}, nil
}

// ProcessAuction closes an auction past its end time. Safe to call repeatedly.
func (s *Service) ProcessAuction(ctx context.Context, req *ProcessAuctionRequest) (*SettledAuctionResponse, error) {
	id, err := uuid.Parse(req.AuctionID)
	if err != nil {
		return nil, rpc.InvalidArgument("auction_id: %v", err)
	}
	a, t, err := s.app.Expire(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SettledAuctionResponse{Auction: a, Transfer: t}, nil
}

// CancelAuction withdraws an active auction
func (s *Service) CancelAuction(ctx context.Context, req *CancelAuctionRequest) (*AuctionResponse, error) {
	id, err := uuid.Parse(req.AuctionID)
	if err != nil {
		return nil, rpc.InvalidArgument("auction_id: %v", err)
	}
	a, err := s.app.Cancel(ctx, id, req.Reason)
	if err != nil {
		return nil, err
	}
	return &AuctionResponse{Auction: a}, nil
}

// GetAuction retrieves an auction by ID
func (s *Service) GetAuction(ctx context.Context, req *GetAuctionRequest) (*AuctionResponse, error) {
	id, err := uuid.Parse(req.AuctionID)
	if err != nil {
		return nil, rpc.InvalidArgument("auction_id: %v", err)
	}
	a, err := s.app.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AuctionResponse{Auction: a}, nil
}

// GetAuctionStatus retrieves the short-form auction state
func (s *Service) GetAuctionStatus(ctx context.Context, req *GetAuctionRequest) (*GetAuctionStatusResponse, error) {
	id, err := uuid.Parse(req.AuctionID)
	if err != nil {
		return nil, rpc.InvalidArgument("auction_id: %v", err)
	}
	st, err := s.app.GetAuctionStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GetAuctionStatusResponse{Status: st}, nil
}

// ListAuctions lists auctions by status and seller
func (s *Service) ListAuctions(ctx context.Context, req *ListAuctionsRequest) (*ListAuctionsResponse, error) {
	filter := ListFilter{Limit: req.Limit}
	switch status := models.AuctionStatus(req.Status); status {
	case "", models.AuctionStatusActive, models.AuctionStatusEnded, models.AuctionStatusCancelled:
		filter.Status = status
	default:
		return nil, rpc.InvalidArgument("unknown status %q", req.Status)
	}
	if req.SellingClubID != "" {
		id, err := uuid.Parse(req.SellingClubID)
		if err != nil {
			return nil, rpc.InvalidArgument("selling_club_id: %v", err)
		}
		filter.SellingClubID = &id
	}
	list, err := s.app.ListAuctions(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListAuctionsResponse{Auctions: list}, nil
}

// ListActiveAuctions lists auctions open for bidding
func (s *Service) ListActiveAuctions(ctx context.Context, _ *ListActiveAuctionsRequest) (*ListAuctionsResponse, error) {
	list, err := s.app.ListActiveAuctions(ctx)
	if err != nil {
		return nil, err
	}
	return &ListAuctionsResponse{Auctions: list}, nil
}

func parseAuctionAndClub(auctionID, clubID string) (uuid.UUID, uuid.UUID, error) {
	a, err := uuid.Parse(auctionID)
	if err != nil {
		return uuid.Nil, uuid.Nil, rpc.InvalidArgument("auction_id: %v", err)
	}
	c, err := uuid.Parse(clubID)
	if err != nil {
		return uuid.Nil, uuid.Nil, rpc.InvalidArgument("club_id: %v", err)
	}
	return a, c, nil
}
