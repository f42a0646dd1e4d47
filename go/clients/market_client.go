package clients

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/auction"
	"github.com/mcdev12/transfermarket/go/internal/club"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/mcdev12/transfermarket/go/internal/rpc"
)

// MarketClient talks to a running market server over the JSON connect
// protocol. Errors come back as the same sentinels the server raised, so
// callers can use errors.Is against the models package.
type MarketClient struct {
	base *BaseClient

	createAuction      *connect.Client[auction.CreateAuctionParams, auction.AuctionResponse]
	placeBid           *connect.Client[auction.PlaceBidRequest, auction.AuctionResponse]
	buyNow             *connect.Client[auction.BuyNowRequest, auction.SettledAuctionResponse]
	processAuction     *connect.Client[auction.ProcessAuctionRequest, auction.SettledAuctionResponse]
	cancelAuction      *connect.Client[auction.CancelAuctionRequest, auction.AuctionResponse]
	getAuction         *connect.Client[auction.GetAuctionRequest, auction.AuctionResponse]
	getAuctionStatus   *connect.Client[auction.GetAuctionRequest, auction.GetAuctionStatusResponse]
	listAuctions       *connect.Client[auction.ListAuctionsRequest, auction.ListAuctionsResponse]
	listActiveAuctions *connect.Client[auction.ListActiveAuctionsRequest, auction.ListAuctionsResponse]

	getClub         *connect.Client[club.GetClubRequest, club.GetClubResponse]
	listClubs       *connect.Client[club.ListClubsRequest, club.ListClubsResponse]
	listClubPlayers *connect.Client[club.ListClubPlayersRequest, club.ListClubPlayersResponse]
	getClubStats    *connect.Client[club.GetClubStatsRequest, club.GetClubStatsResponse]
	listTransfers   *connect.Client[club.ListTransfersRequest, club.ListTransfersResponse]
}

func NewMarketClient(base *BaseClient) *MarketClient {
	url := base.BaseURL()
	return &MarketClient{
		base: base,

		createAuction:      rpc.NewClient[auction.CreateAuctionParams, auction.AuctionResponse](base, url, auction.CreateAuctionProcedure),
		placeBid:           rpc.NewClient[auction.PlaceBidRequest, auction.AuctionResponse](base, url, auction.PlaceBidProcedure),
		buyNow:             rpc.NewClient[auction.BuyNowRequest, auction.SettledAuctionResponse](base, url, auction.BuyNowProcedure),
		processAuction:     rpc.NewClient[auction.ProcessAuctionRequest, auction.SettledAuctionResponse](base, url, auction.ProcessAuctionProcedure),
		cancelAuction:      rpc.NewClient[auction.CancelAuctionRequest, auction.AuctionResponse](base, url, auction.CancelAuctionProcedure),
		getAuction:         rpc.NewClient[auction.GetAuctionRequest, auction.AuctionResponse](base, url, auction.GetAuctionProcedure),
		getAuctionStatus:   rpc.NewClient[auction.GetAuctionRequest, auction.GetAuctionStatusResponse](base, url, auction.GetAuctionStatusProcedure),
		listAuctions:       rpc.NewClient[auction.ListAuctionsRequest, auction.ListAuctionsResponse](base, url, auction.ListAuctionsProcedure),
		listActiveAuctions: rpc.NewClient[auction.ListActiveAuctionsRequest, auction.ListAuctionsResponse](base, url, auction.ListActiveAuctionsProcedure),

		getClub:         rpc.NewClient[club.GetClubRequest, club.GetClubResponse](base, url, club.GetClubProcedure),
		listClubs:       rpc.NewClient[club.ListClubsRequest, club.ListClubsResponse](base, url, club.ListClubsProcedure),
		listClubPlayers: rpc.NewClient[club.ListClubPlayersRequest, club.ListClubPlayersResponse](base, url, club.ListClubPlayersProcedure),
		getClubStats:    rpc.NewClient[club.GetClubStatsRequest, club.GetClubStatsResponse](base, url, club.GetClubStatsProcedure),
		listTransfers:   rpc.NewClient[club.ListTransfersRequest, club.ListTransfersResponse](base, url, club.ListTransfersProcedure),
	}
}

// Health returns the raw body of the server's /health endpoint.
func (c *MarketClient) Health(ctx context.Context) ([]byte, error) {
	return c.base.Get(ctx, "/health")
}

func (c *MarketClient) CreateAuction(ctx context.Context, req auction.CreateAuctionParams) (*models.Auction, error) {
	res, err := rpc.Call(ctx, c.createAuction, &req)
	if err != nil {
		return nil, err
	}
	return res.Auction, nil
}

func (c *MarketClient) PlaceBid(ctx context.Context, auctionID, clubID uuid.UUID, amount int64) (*models.Auction, error) {
	res, err := rpc.Call(ctx, c.placeBid, &auction.PlaceBidRequest{
		AuctionID: auctionID.String(),
		ClubID:    clubID.String(),
		Amount:    amount,
	})
	if err != nil {
		return nil, err
	}
	return res.Auction, nil
}

func (c *MarketClient) BuyNow(ctx context.Context, auctionID, clubID uuid.UUID) (*models.Auction, *models.Transfer, error) {
	res, err := rpc.Call(ctx, c.buyNow, &auction.BuyNowRequest{
		AuctionID: auctionID.String(),
		ClubID:    clubID.String(),
	})
	if err != nil {
		return nil, nil, err
	}
	return res.Auction, res.Transfer, nil
}

// ProcessAuction asks the server to close an auction whose end time has passed.
func (c *MarketClient) ProcessAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, *models.Transfer, error) {
	res, err := rpc.Call(ctx, c.processAuction, &auction.ProcessAuctionRequest{AuctionID: auctionID.String()})
	if err != nil {
		return nil, nil, err
	}
	return res.Auction, res.Transfer, nil
}

func (c *MarketClient) CancelAuction(ctx context.Context, auctionID uuid.UUID, reason string) (*models.Auction, error) {
	res, err := rpc.Call(ctx, c.cancelAuction, &auction.CancelAuctionRequest{AuctionID: auctionID.String(), Reason: reason})
	if err != nil {
		return nil, err
	}
	return res.Auction, nil
}

func (c *MarketClient) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	res, err := rpc.Call(ctx, c.getAuction, &auction.GetAuctionRequest{AuctionID: auctionID.String()})
	if err != nil {
		return nil, err
	}
	return res.Auction, nil
}

func (c *MarketClient) GetAuctionStatus(ctx context.Context, auctionID uuid.UUID) (*auction.StatusView, error) {
	res, err := rpc.Call(ctx, c.getAuctionStatus, &auction.GetAuctionRequest{AuctionID: auctionID.String()})
	if err != nil {
		return nil, err
	}
	return res.Status, nil
}

func (c *MarketClient) ListAuctions(ctx context.Context, req auction.ListAuctionsRequest) ([]models.Auction, error) {
	res, err := rpc.Call(ctx, c.listAuctions, &req)
	if err != nil {
		return nil, err
	}
	return res.Auctions, nil
}

func (c *MarketClient) ListActiveAuctions(ctx context.Context) ([]models.Auction, error) {
	res, err := rpc.Call(ctx, c.listActiveAuctions, &auction.ListActiveAuctionsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Auctions, nil
}

func (c *MarketClient) GetClub(ctx context.Context, clubID uuid.UUID) (*models.Club, error) {
	res, err := rpc.Call(ctx, c.getClub, &club.GetClubRequest{ClubID: clubID.String()})
	if err != nil {
		return nil, err
	}
	return res.Club, nil
}

// GetBudget reads a club's current budget from the server
func (c *MarketClient) GetBudget(ctx context.Context, clubID uuid.UUID) (int64, error) {
	cl, err := c.GetClub(ctx, clubID)
	if err != nil {
		return 0, err
	}
	return cl.Budget, nil
}

func (c *MarketClient) ListClubs(ctx context.Context) ([]models.Club, error) {
	res, err := rpc.Call(ctx, c.listClubs, &club.ListClubsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Clubs, nil
}

// FindClub accepts either a club id or a case-insensitive club name.
func (c *MarketClient) FindClub(ctx context.Context, ref string) (*models.Club, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return c.GetClub(ctx, id)
	}
	clubs, err := c.ListClubs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range clubs {
		if strings.EqualFold(clubs[i].Name, strings.TrimSpace(ref)) {
			return &clubs[i], nil
		}
	}
	return nil, models.ErrClubNotFound
}

func (c *MarketClient) ListClubPlayers(ctx context.Context, clubID uuid.UUID) ([]models.Player, error) {
	res, err := rpc.Call(ctx, c.listClubPlayers, &club.ListClubPlayersRequest{ClubID: clubID.String()})
	if err != nil {
		return nil, err
	}
	return res.Players, nil
}

func (c *MarketClient) GetClubStats(ctx context.Context, clubID uuid.UUID) (*models.ClubStats, error) {
	res, err := rpc.Call(ctx, c.getClubStats, &club.GetClubStatsRequest{ClubID: clubID.String()})
	if err != nil {
		return nil, err
	}
	return res.Stats, nil
}

func (c *MarketClient) ListTransfers(ctx context.Context, clubID *uuid.UUID, limit int) ([]models.Transfer, error) {
	req := &club.ListTransfersRequest{Limit: limit}
	if clubID != nil {
		req.ClubID = clubID.String()
	}
	res, err := rpc.Call(ctx, c.listTransfers, req)
	if err != nil {
		return nil, err
	}
	return res.Transfers, nil
}
