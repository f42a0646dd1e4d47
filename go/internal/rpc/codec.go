// Package rpc carries the Connect plumbing shared by the market services:
// a plain JSON codec, unary handler/client helpers and error-kind mapping.
package rpc

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
)

// JSONCodec marshals plain Go structs. It replaces connect's protojson codec,
// which only accepts proto.Message values.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// WithJSON installs JSONCodec on a handler or client.
func WithJSON() connect.Option {
	return connect.WithCodec(JSONCodec{})
}

// Procedure builds the "/<service>/<method>" path connect routes on.
func Procedure(service, method string) string {
	return "/" + service + "/" + method
}

// Unary adapts a plain request/response function into a connect handler.
// Domain errors are translated with ToConnectError.
func Unary[Req, Res any](procedure string, fn func(context.Context, *Req) (*Res, error), opts ...connect.HandlerOption) http.Handler {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	return connect.NewUnaryHandler(procedure, func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
		res, err := fn(ctx, req.Msg)
		if err != nil {
			return nil, ToConnectError(err)
		}
		return connect.NewResponse(res), nil
	}, opts...)
}

// NewClient builds a JSON connect client for one procedure.
func NewClient[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts ...connect.ClientOption) *connect.Client[Req, Res] {
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return connect.NewClient[Req, Res](httpClient, baseURL+procedure, opts...)
}

// Call performs a unary call and maps the error back to a domain sentinel.
func Call[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], req *Req) (*Res, error) {
	res, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, FromConnectError(err)
	}
	return res.Msg, nil
}
