package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mcdev12/transfermarket/go/internal/auction"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(format string, args ...any) {
	success.Printf(format+"\n", args...)
}

func printWarn(format string, args ...any) {
	warn.Printf(format+"\n", args...)
}

// money renders whole euros as €12.5M / €850K.
func money(amount int64) string {
	switch {
	case amount >= 1_000_000:
		return fmt.Sprintf("€%.1fM", float64(amount)/1_000_000)
	case amount >= 1_000:
		return fmt.Sprintf("€%.0fK", float64(amount)/1_000)
	default:
		return fmt.Sprintf("€%d", amount)
	}
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func statusColor(a *models.Auction) *color.Color {
	switch {
	case a.Status == models.AuctionStatusActive:
		return success
	case a.SettlementStatus == models.SettlementStatusFailed:
		return danger
	case a.Status == models.AuctionStatusCancelled:
		return warn
	default:
		return neutral
	}
}

func printAuctions(list []models.Auction, clubNames map[uuid.UUID]string) {
	if len(list) == 0 {
		printWarn("No auctions.")
		return
	}
	tw := newTable(os.Stdout)
	fmt.Fprintln(tw, "ID\tPLAYER\tSELLER\tPRICE\tBUY NOW\tLEADER\tBIDS\tSTATUS\tENDS")
	for i := range list {
		a := &list[i]
		leader := "-"
		if a.HighestBidderClubID != nil {
			leader = nameOr(clubNames, *a.HighestBidderClubID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			shortID(a.ID), a.PlayerName, nameOr(clubNames, a.SellingClubID),
			money(a.CurrentPrice), money(a.BuyNowPrice), leader, len(a.Bids),
			statusColor(a).Sprint(statusLabel(a)), a.EndTime.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func printAuction(a *models.Auction, clubNames map[uuid.UUID]string) {
	accent.Printf("%s  (%s)\n", a.PlayerName, a.ID)
	fmt.Printf("  seller:     %s\n", nameOr(clubNames, a.SellingClubID))
	fmt.Printf("  price:      %s (start %s, buy now %s)\n", money(a.CurrentPrice), money(a.StartingPrice), money(a.BuyNowPrice))
	fmt.Printf("  status:     %s\n", statusColor(a).Sprint(statusLabel(a)))
	fmt.Printf("  ends:       %s\n", a.EndTime.Local().Format(time.DateTime))
	if a.Description != "" {
		fmt.Printf("  notes:      %s\n", a.Description)
	}
	if a.SettlementError != "" {
		danger.Printf("  settlement: %s\n", a.SettlementError)
	}
	for _, b := range a.Bids {
		fmt.Printf("  #%d %-24s %s  %s\n", b.Seq, nameOr(clubNames, b.ClubID), money(b.Amount), b.PlacedAt.Local().Format(time.TimeOnly))
	}
}

func printStatus(st *auction.StatusView) {
	fmt.Printf("%s  %s  price %s  bids %d  left %s  settlement %s\n",
		shortID(st.AuctionID), st.Status, money(st.CurrentPrice), st.BidCount,
		time.Duration(st.TimeLeftSeconds)*time.Second, st.SettlementStatus)
}

func statusLabel(a *models.Auction) string {
	if a.EndReason != models.EndReasonNone && a.Status == models.AuctionStatusEnded {
		return fmt.Sprintf("%s/%s/%s", a.Status, a.EndReason, a.SettlementStatus)
	}
	return string(a.Status)
}

func nameOr(names map[uuid.UUID]string, id uuid.UUID) string {
	if n, ok := names[id]; ok {
		return n
	}
	return shortID(id)
}
