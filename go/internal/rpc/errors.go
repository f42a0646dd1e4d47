package rpc

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/mcdev12/transfermarket/go/internal/models"
)

// ErrorKindHeader carries models.ErrorKind on failed responses.
const ErrorKindHeader = "Market-Error-Kind"

// CodeForKind picks the connect status for a market error kind.
func CodeForKind(kind models.ErrorKind) connect.Code {
	switch kind {
	case models.KindAuctionNotFound, models.KindClubNotFound, models.KindPlayerNotFound:
		return connect.CodeNotFound
	case models.KindBidTooLow, models.KindBidAtOrAboveBuyNow, models.KindInvalidListing:
		return connect.CodeInvalidArgument
	case models.KindDuplicateActiveListing:
		return connect.CodeAlreadyExists
	case models.KindConcurrentModification:
		return connect.CodeAborted
	case models.KindAuctionNotActive, models.KindAuctionExpired, models.KindAuctionStillOpen,
		models.KindInsufficientBudget, models.KindInsufficientBudgetAtSettlement,
		models.KindPlayerNotOwned, models.KindOwnListing:
		return connect.CodeFailedPrecondition
	default:
		return connect.CodeInternal
	}
}

// ToConnectError wraps err in a *connect.Error with the matching code and kind header.
func ToConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	kind := models.KindOf(err)
	out := connect.NewError(CodeForKind(kind), err)
	if kind != models.KindUnknown {
		out.Meta().Set(ErrorKindHeader, string(kind))
	}
	return out
}

// FromConnectError restores the domain sentinel named by the kind header
// so callers can keep using errors.Is across the wire.
func FromConnectError(err error) error {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return err
	}
	sentinel := models.ErrorForKind(models.ErrorKind(connectErr.Meta().Get(ErrorKindHeader)))
	if sentinel == nil {
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, connectErr.Message())
}

// InvalidArgument reports a malformed request field.
func InvalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}
