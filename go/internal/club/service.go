package club

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/mcdev12/transfermarket/go/internal/rpc"
)

// ServiceName is the fully-qualified name of the club service.
const ServiceName = "transfermarket.v1.ClubService"

var (
	GetClubProcedure         = rpc.Procedure(ServiceName, "GetClub")
	ListClubsProcedure       = rpc.Procedure(ServiceName, "ListClubs")
	ListClubPlayersProcedure = rpc.Procedure(ServiceName, "ListClubPlayers")
	GetClubStatsProcedure    = rpc.Procedure(ServiceName, "GetClubStats")
	ListTransfersProcedure   = rpc.Procedure(ServiceName, "ListTransfers")
)

type GetClubRequest struct {
	ClubID string `json:"club_id"`
}

type GetClubResponse struct {
	Club *models.Club `json:"club"`
}

type ListClubsRequest struct{}

type ListClubsResponse struct {
	Clubs []models.Club `json:"clubs"`
}

type ListClubPlayersRequest struct {
	ClubID string `json:"club_id"`
}

type ListClubPlayersResponse struct {
	Players []models.Player `json:"players"`
}

type GetClubStatsRequest struct {
	ClubID string `json:"club_id"`
}

type GetClubStatsResponse struct {
	Stats *models.ClubStats `json:"stats"`
}

type ListTransfersRequest struct {
	ClubID string `json:"club_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type ListTransfersResponse struct {
	Transfers []models.Transfer `json:"transfers"`
}

// ClubApp defines what the service layer needs from the club application
type ClubApp interface {
	GetClub(ctx context.Context, id uuid.UUID) (*models.Club, error)
	ListClubs(ctx context.Context) ([]models.Club, error)
	ListClubPlayers(ctx context.Context, clubID uuid.UUID) ([]models.Player, error)
	GetClubStats(ctx context.Context, clubID uuid.UUID) (*models.ClubStats, error)
	ListTransfers(ctx context.Context, filter TransferFilter) ([]models.Transfer, error)
}

// Service implements the ClubService RPCs
type Service struct {
	app ClubApp
}

// NewService creates a new club service
func NewService(app ClubApp) *Service {
	return &Service{app: app}
}

// NewClubServiceHandler mounts every ClubService procedure under one path prefix.
func NewClubServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(GetClubProcedure, rpc.Unary(GetClubProcedure, svc.GetClub, opts...))
	mux.Handle(ListClubsProcedure, rpc.Unary(ListClubsProcedure, svc.ListClubs, opts...))
	mux.Handle(ListClubPlayersProcedure, rpc.Unary(ListClubPlayersProcedure, svc.ListClubPlayers, opts...))
	mux.Handle(GetClubStatsProcedure, rpc.Unary(GetClubStatsProcedure, svc.GetClubStats, opts...))
	mux.Handle(ListTransfersProcedure, rpc.Unary(ListTransfersProcedure, svc.ListTransfers, opts...))
	return "/" + ServiceName + "/", mux
}

func (s *Service) GetClub(ctx context.Context, req *GetClubRequest) (*GetClubResponse, error) {
	id, err := uuid.Parse(req.ClubID)
	if err != nil {
		return nil, rpc.InvalidArgument("club_id: %v", err)
	}
	c, err := s.app.GetClub(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GetClubResponse{Club: c}, nil
}

func (s *Service) ListClubs(ctx context.Context, _ *ListClubsRequest) (*ListClubsResponse, error) {
	clubs, err := s.app.ListClubs(ctx)
	if err != nil {
		return nil, err
	}
	return &ListClubsResponse{Clubs: clubs}, nil
}

func (s *Service) ListClubPlayers(ctx context.Context, req *ListClubPlayersRequest) (*ListClubPlayersResponse, error) {
	id, err := uuid.Parse(req.ClubID)
	if err != nil {
		return nil, rpc.InvalidArgument("club_id: %v", err)
	}
	players, err := s.app.ListClubPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ListClubPlayersResponse{Players: players}, nil
}

func (s *Service) GetClubStats(ctx context.Context, req *GetClubStatsRequest) (*GetClubStatsResponse, error) {
	id, err := uuid.Parse(req.ClubID)
	if err != nil {
		return nil, rpc.InvalidArgument("club_id: %v", err)
	}
	stats, err := s.app.GetClubStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GetClubStatsResponse{Stats: stats}, nil
}

func (s *Service) ListTransfers(ctx context.Context, req *ListTransfersRequest) (*ListTransfersResponse, error) {
	filter := TransferFilter{Limit: req.Limit}
	if req.ClubID != "" {
		id, err := uuid.Parse(req.ClubID)
		if err != nil {
			return nil, rpc.InvalidArgument("club_id: %v", err)
		}
		filter.ClubID = &id
	}
	transfers, err := s.app.ListTransfers(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListTransfersResponse{Transfers: transfers}, nil
}
