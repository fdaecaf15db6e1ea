package lndc

import (
	"bytes"
	"context"
	"encoding/hex"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
)

func key(b byte) string {
	return hex.EncodeToString(append([]byte{2}, bytes.Repeat([]byte{b}, 32)...))
}

var (
	selfKey = key(0x01)
	keyA    = key(0x0a)
	keyB    = key(0x0b)
	keyC    = key(0x0c)
	keyD    = key(0x0d)
)

// query is what a QueryRoutes call asked for. The client reuses its
// request across calls.
type query struct {
	AmtMsat       int64
	CltvLimit     uint32
	LastHopPubkey []byte
	IgnoredPairs  []*lnrpc.NodePair
}

// fakeLightning implements the lnd calls the client makes. Anything else
// panics through the nil embedded interface.
type fakeLightning struct {
	lnrpc.LightningClient

	channels []*lnrpc.Channel
	edges    map[uint64]*lnrpc.ChannelEdge
	routes   []*lnrpc.Route
	queryErr error
	payReq   *lnrpc.PayReq

	queries  []query
	listReqs []*lnrpc.ListChannelsRequest
}

func (f *fakeLightning) GetInfo(ctx context.Context, in *lnrpc.GetInfoRequest,
	opts ...grpc.CallOption) (*lnrpc.GetInfoResponse, error) {

	return &lnrpc.GetInfoResponse{IdentityPubkey: selfKey, BlockHeight: 100}, nil
}

func (f *fakeLightning) GetChanInfo(ctx context.Context, in *lnrpc.ChanInfoRequest,
	opts ...grpc.CallOption) (*lnrpc.ChannelEdge, error) {

	edge, ok := f.edges[in.ChanId]
	if !ok {
		return nil, errors.New("edge not found")
	}

	return edge, nil
}

func (f *fakeLightning) ListChannels(ctx context.Context, in *lnrpc.ListChannelsRequest,
	opts ...grpc.CallOption) (*lnrpc.ListChannelsResponse, error) {

	f.listReqs = append(f.listReqs, in)

	return &lnrpc.ListChannelsResponse{Channels: f.channels}, nil
}

func (f *fakeLightning) QueryRoutes(ctx context.Context, in *lnrpc.QueryRoutesRequest,
	opts ...grpc.CallOption) (*lnrpc.QueryRoutesResponse, error) {

	f.queries = append(f.queries, query{
		AmtMsat:       in.AmtMsat,
		CltvLimit:     in.CltvLimit,
		LastHopPubkey: in.LastHopPubkey,
		IgnoredPairs:  in.IgnoredPairs,
	})

	if f.queryErr != nil {
		return nil, f.queryErr
	}

	if len(f.routes) == 0 {
		return nil, errors.New("unable to find a path to destination")
	}

	route := f.routes[0]
	f.routes = f.routes[1:]

	return &lnrpc.QueryRoutesResponse{Routes: []*lnrpc.Route{route}}, nil
}

func (f *fakeLightning) DecodePayReq(ctx context.Context, in *lnrpc.PayReqString,
	opts ...grpc.CallOption) (*lnrpc.PayReq, error) {

	if f.payReq == nil {
		return nil, errors.New("invalid payment request")
	}

	return f.payReq, nil
}

type fakeRouter struct {
	routerrpc.RouterClient

	attempts []*lnrpc.HTLCAttempt
	sendErr  error
	built    *lnrpc.Route

	sent   []*routerrpc.SendToRouteRequest
	builds []*routerrpc.BuildRouteRequest
}

func (f *fakeRouter) SendToRouteV2(ctx context.Context, in *routerrpc.SendToRouteRequest,
	opts ...grpc.CallOption) (*lnrpc.HTLCAttempt, error) {

	f.sent = append(f.sent, in)

	if f.sendErr != nil {
		return nil, f.sendErr
	}

	attempt := f.attempts[0]
	f.attempts = f.attempts[1:]

	return attempt, nil
}

func (f *fakeRouter) BuildRoute(ctx context.Context, in *routerrpc.BuildRouteRequest,
	opts ...grpc.CallOption) (*routerrpc.BuildRouteResponse, error) {

	f.builds = append(f.builds, in)

	if f.built == nil {
		return nil, errors.New("no route")
	}

	return &routerrpc.BuildRouteResponse{Route: f.built}, nil
}

func newTestClient(lightning *fakeLightning, router *fakeRouter) *Client {
	return &Client{lightning: lightning, router: router, macaroon: "00"}
}

// rpcRoute builds a route where every relaying hop charges 1000 msat.
func rpcRoute(amtMsat int64, hops ...*lnrpc.Hop) *lnrpc.Route {
	route := &lnrpc.Route{Hops: hops, TotalTimeLock: 300}

	var fees int64
	for i := len(hops) - 1; i >= 0; i-- {
		hops[i].AmtToForwardMsat = amtMsat + fees
		if i < len(hops)-1 {
			hops[i].FeeMsat = 1000
			fees += 1000
		}
	}

	route.TotalFeesMsat = fees
	route.TotalAmtMsat = amtMsat + fees

	return route
}

func failedAttempt(code lnrpc.Failure_FailureCode, index uint32) *lnrpc.HTLCAttempt {
	return &lnrpc.HTLCAttempt{
		Status:  lnrpc.HTLCAttempt_FAILED,
		Failure: &lnrpc.Failure{Code: code, FailureSourceIndex: index},
	}
}
