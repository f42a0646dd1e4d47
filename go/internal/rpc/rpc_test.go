package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/mcdev12/transfermarket/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Text string `json:"text"`
	Fail bool   `json:"fail"`
}

type echoResponse struct {
	Text string `json:"text"`
}

const echoProcedure = "/transfermarket.v1.TestService/Echo"

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(echoProcedure, Unary(echoProcedure, func(_ context.Context, req *echoRequest) (*echoResponse, error) {
		if req.Fail {
			return nil, fmt.Errorf("%w: need more than 4", models.ErrBidTooLow)
		}
		return &echoResponse{Text: req.Text}, nil
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestUnaryRoundTrip(t *testing.T) {
	srv := newEchoServer(t)
	client := NewClient[echoRequest, echoResponse](srv.Client(), srv.URL, echoProcedure)

	res, err := Call(context.Background(), client, &echoRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
}

func TestErrorKindSurvivesTheWire(t *testing.T) {
	srv := newEchoServer(t)
	client := NewClient[echoRequest, echoResponse](srv.Client(), srv.URL, echoProcedure)

	_, err := Call(context.Background(), client, &echoRequest{Fail: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrBidTooLow)
	assert.Contains(t, err.Error(), "need more than 4")
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code connect.Code
		kind string
	}{
		{"not found", fmt.Errorf("get: %w", models.ErrAuctionNotFound), connect.CodeNotFound, "AUCTION_NOT_FOUND"},
		{"duplicate", models.ErrDuplicateActiveListing, connect.CodeAlreadyExists, "DUPLICATE_ACTIVE_LISTING"},
		{"conflict", models.ErrVersionConflict, connect.CodeAborted, "CONCURRENT_MODIFICATION"},
		{"budget", models.ErrInsufficientBudgetAtSettlement, connect.CodeFailedPrecondition, "INSUFFICIENT_BUDGET_AT_SETTLEMENT"},
		{"plain", errors.New("disk on fire"), connect.CodeInternal, ""},
		{"canceled", context.Canceled, connect.CodeCanceled, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var connectErr *connect.Error
			require.ErrorAs(t, ToConnectError(tt.err), &connectErr)
			assert.Equal(t, tt.code, connectErr.Code())
			assert.Equal(t, tt.kind, connectErr.Meta().Get(ErrorKindHeader))
		})
	}
}

func TestFromConnectErrorWithoutKind(t *testing.T) {
	err := connect.NewError(connect.CodeUnavailable, errors.New("down"))
	assert.Same(t, err, FromConnectError(err))
}
