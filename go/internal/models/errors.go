package models

import "errors"

var (
	ErrAuctionNotFound                = errors.New("auction not found")
	ErrClubNotFound                   = errors.New("club not found")
	ErrPlayerNotFound                 = errors.New("player not found")
	ErrAuctionNotActive               = errors.New("auction is not active")
	ErrAuctionExpired                 = errors.New("auction has expired")
	ErrAuctionStillOpen               = errors.New("auction has not reached its end time")
	ErrBidTooLow                      = errors.New("bid too low")
	ErrBidAtOrAboveBuyNow             = errors.New("bid at or above buy now price")
	ErrInsufficientBudget             = errors.New("insufficient budget")
	ErrInsufficientBudgetAtSettlement = errors.New("insufficient budget at settlement")
	ErrDuplicateActiveListing         = errors.New("player already has an active auction")
	ErrPlayerNotOwned                 = errors.New("player is not on the selling club's roster")
	ErrOwnListing                     = errors.New("club cannot bid on its own listing")
	ErrInvalidListing                 = errors.New("invalid listing")
	ErrVersionConflict                = errors.New("auction was modified concurrently")
)

// ErrorKind is the stable, machine-readable name of a market failure
type ErrorKind string

const (
	KindUnknown                        ErrorKind = "UNKNOWN"
	KindAuctionNotFound                ErrorKind = "AUCTION_NOT_FOUND"
	KindClubNotFound                   ErrorKind = "CLUB_NOT_FOUND"
	KindPlayerNotFound                 ErrorKind = "PLAYER_NOT_FOUND"
	KindAuctionNotActive               ErrorKind = "AUCTION_NOT_ACTIVE"
	KindAuctionExpired                 ErrorKind = "AUCTION_EXPIRED"
	KindAuctionStillOpen               ErrorKind = "AUCTION_STILL_OPEN"
	KindBidTooLow                      ErrorKind = "BID_TOO_LOW"
	KindBidAtOrAboveBuyNow             ErrorKind = "BID_AT_OR_ABOVE_BUY_NOW"
	KindInsufficientBudget             ErrorKind = "INSUFFICIENT_BUDGET"
	KindInsufficientBudgetAtSettlement ErrorKind = "INSUFFICIENT_BUDGET_AT_SETTLEMENT"
	KindDuplicateActiveListing         ErrorKind = "DUPLICATE_ACTIVE_LISTING"
	KindPlayerNotOwned                 ErrorKind = "PLAYER_NOT_OWNED"
	KindOwnListing                     ErrorKind = "OWN_LISTING"
	KindInvalidListing                 ErrorKind = "INVALID_LISTING"
	KindConcurrentModification         ErrorKind = "CONCURRENT_MODIFICATION"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrAuctionNotFound, KindAuctionNotFound},
	{ErrClubNotFound, KindClubNotFound},
	{ErrPlayerNotFound, KindPlayerNotFound},
	{ErrAuctionNotActive, KindAuctionNotActive},
	{ErrAuctionExpired, KindAuctionExpired},
	{ErrAuctionStillOpen, KindAuctionStillOpen},
	{ErrBidTooLow, KindBidTooLow},
	{ErrBidAtOrAboveBuyNow, KindBidAtOrAboveBuyNow},
	{ErrInsufficientBudgetAtSettlement, KindInsufficientBudgetAtSettlement},
	{ErrInsufficientBudget, KindInsufficientBudget},
	{ErrDuplicateActiveListing, KindDuplicateActiveListing},
	{ErrPlayerNotOwned, KindPlayerNotOwned},
	{ErrOwnListing, KindOwnListing},
	{ErrInvalidListing, KindInvalidListing},
	{ErrVersionConflict, KindConcurrentModification},
}

// KindOf returns the ErrorKind of the first taxonomy sentinel found in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindUnknown
}

// ErrorForKind is the inverse of KindOf. It returns nil for unknown kinds.
func ErrorForKind(kind ErrorKind) error {
	for _, ek := range errorKinds {
		if ek.kind == kind {
			return ek.err
		}
	}
	return nil
}
