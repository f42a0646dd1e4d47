package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/transfermarket/go/clients"
	"github.com/mcdev12/transfermarket/go/internal/assets"
	"github.com/mcdev12/transfermarket/go/internal/auction"
	"github.com/mcdev12/transfermarket/go/internal/gateway"
	"github.com/spf13/cobra"
)

func newAuctionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "auctions",
		Aliases: []string{"auction"},
		Short:   "List, create and bid on auctions through a running server",
	}
	cmd.AddCommand(
		newAuctionsListCmd(opts),
		newAuctionsShowCmd(opts),
		newAuctionsStatusCmd(opts),
		newAuctionsCreateCmd(opts),
		newAuctionsBidCmd(opts),
		newAuctionsBuyNowCmd(opts),
		newAuctionsProcessCmd(opts),
		newAuctionsCancelCmd(opts),
		newAuctionsWatchCmd(opts),
	)
	return cmd
}

func newAuctionsListCmd(opts *rootOptions) *cobra.Command {
	var status, seller string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List auctions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := opts.client()

			req := auction.ListAuctionsRequest{Status: status, Limit: limit}
			if seller != "" {
				c, err := client.FindClub(ctx, seller)
				if err != nil {
					return err
				}
				req.SellingClubID = c.ID.String()
			}
			list, err := client.ListAuctions(ctx, req)
			if err != nil {
				return err
			}
			printAuctions(list, clubNames(ctx, client))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "active", "active, ended, cancelled or empty for all")
	cmd.Flags().StringVar(&seller, "seller", "", "selling club name or id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum auctions to show")
	return cmd
}

func newAuctionsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <auction-id>",
		Short: "Show an auction with its bid history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid auction id: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := opts.client()
			a, err := client.GetAuction(ctx, id)
			if err != nil {
				return err
			}
			printAuction(a, clubNames(ctx, client))
			return nil
		},
	}
}

func newAuctionsStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <auction-id>",
		Short: "Show the short-form state of an auction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid auction id: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := opts.client().GetAuctionStatus(ctx, id)
			if err != nil {
				return err
			}
			printStatus(st)
			return nil
		},
	}
}

func newAuctionsCreateCmd(opts *rootOptions) *cobra.Command {
	var player, seller, description string
	var start, buyNow int64
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "create",
		Short: "List a player for sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := opts.client()

			c, err := client.FindClub(ctx, seller)
			if err != nil {
				return err
			}
			a, err := client.CreateAuction(ctx, auction.CreateAuctionParams{
				PlayerID:        playerRef(player).String(),
				SellingClubID:   c.ID.String(),
				StartingPrice:   start,
				BuyNowPrice:     buyNow,
				DurationSeconds: int64(duration / time.Second),
				Description:     description,
			})
			if err != nil {
				return err
			}
			printSuccess("Listed %s for %s (buy now %s), auction %s", a.PlayerName, money(a.StartingPrice), money(a.BuyNowPrice), a.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "player name or id")
	cmd.Flags().StringVar(&seller, "seller", "", "selling club name or id")
	cmd.Flags().Int64Var(&start, "start", 0, "starting price, defaults to the player's valuation")
	cmd.Flags().Int64Var(&buyNow, "buy-now", 0, "buy now price, defaults to a markup on the starting price")
	cmd.Flags().DurationVar(&duration, "duration", 0, "auction length, defaults to the server setting")
	cmd.Flags().StringVar(&description, "description", "", "free-text notes")
	_ = cmd.MarkFlagRequired("player")
	_ = cmd.MarkFlagRequired("seller")
	return cmd
}

func newAuctionsBidCmd(opts *rootOptions) *cobra.Command {
	var club string
	var amount int64
	cmd := &cobra.Command{
		Use:   "bid <auction-id>",
		Short: "Place a bid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid auction id: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := opts.client()
			c, err := client.FindClub(ctx, club)
			if err != nil {
				return err
			}
			a, err := client.PlaceBid(ctx, id, c.ID, amount)
			if err != nil {
				return err
			}
			printSuccess("%s leads %s at %s", c.Name, a.PlayerName, money(a.HighestBid))
			return nil
		},
	}
	cmd.Flags().StringVar(&club, "club", "", "bidding club name or id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "bid amount")
	_ = cmd.MarkFlagRequired("club")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newAuctionsBuyNowCmd(opts *rootOptions) *cobra.Command {
	var club string
	cmd := &cobra.Command{
		Use:   "buy-now <auction-id>",
		Short: "Buy the player at the buy now price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid auction id: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := opts.client()
			c, err := client.FindClub(ctx, club)
			if err != nil {
				return err
			}
			a, tr, err := client.BuyNow(ctx, id, c.ID)
			if err != nil {
				return err
			}
			if tr == nil {
				printWarn("%s: %s", a.PlayerName, statusLabel(a))
				return nil
			}
			printSuccess("%s bought %s for %s", c.Name, a.PlayerName, money(tr.Amount))
			return nil
		},
	}
	cmd.Flags().StringVar(&club, "club", "", "buying club name or id")
	_ = cmd.MarkFlagRequired("club")
	return cmd
}

func newAuctionsProcessCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <auction-id>",
		Short: "Close an auction whose end time has passed and settle it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid auction id: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			a, tr, err := opts.client().ProcessAuction(ctx, id)
			if err != nil {
				return err
			}
			if tr != nil {
				printSuccess("%s sold for %s", a.PlayerName, money(tr.Amount))
				return nil
			}
			printWarn("%s: %s", a.PlayerName, statusLabel(a))
			return nil
		},
	}
}

func newAuctionsCancelCmd(opts *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <auction-id>",
		Short: "Withdraw an active auction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid auction id: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			a, err := opts.client().CancelAuction(ctx, id, reason)
			if err != nil {
				return err
			}
			printSuccess("Cancelled auction for %s", a.PlayerName)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the listing was withdrawn")
	return cmd
}

func newAuctionsWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [auction-id]",
		Short: "Stream live market events from the websocket gateway",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			u, err := watchURL(opts.cfg.Server.URL, args)
			if err != nil {
				return err
			}
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
			if err != nil {
				return fmt.Errorf("dial %s: %w", u, err)
			}
			defer conn.Close()
			go func() {
				<-ctx.Done()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
			}()

			accent.Printf("watching %s\n", u)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				var ev gateway.MarketEvent
				if err := json.Unmarshal(data, &ev); err != nil {
					printWarn("unreadable event: %v", err)
					continue
				}
				auctionID := ev.AuctionID
				if len(auctionID) > 8 {
					auctionID = auctionID[:8]
				}
				fmt.Printf("%s  %-22s %s  %s\n",
					ev.Timestamp.Local().Format(time.TimeOnly), ev.Type, auctionID, string(ev.Data))
			}
		},
	}
}

func watchURL(serverURL string, args []string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/auctions"
	if len(args) == 1 {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid auction id: %w", err)
		}
		u.RawQuery = url.Values{"auction_id": {id.String()}}.Encode()
	}
	return u.String(), nil
}

// playerRef accepts a player id or a name from the bundled snapshot.
func playerRef(ref string) uuid.UUID {
	if id, err := uuid.Parse(ref); err == nil {
		return id
	}
	return assets.PlayerID(strings.TrimSpace(ref))
}

func clubNames(ctx context.Context, client *clients.MarketClient) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string)
	list, err := client.ListClubs(ctx)
	if err != nil {
		return names
	}
	for _, c := range list {
		names[c.ID] = c.Name
	}
	return names
}
