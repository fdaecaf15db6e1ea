// Package node describes what probing and paying needs from a Lightning
// node.
package node

import (
	"context"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"time"
)

type WalletInfo struct {
	PublicKey          bdb.PubKey
	CurrentBlockHeight uint32
}

type GetChannelsRequest struct {
	IsActive         bool
	PartnerPublicKey bdb.PubKey
}

type RouteThroughHopsRequest struct {
	CltvDelta       uint32
	Mtokens         lnwire.MilliSatoshi
	OutgoingChannel bdb.ChanId
	PublicKeys      []bdb.PubKey
	PaymentAddr     []byte
	TotalMtokens    lnwire.MilliSatoshi
	Messages        []*bdb.Message
}

type ProbeForRouteRequest struct {
	CltvDelta       uint32
	Destination     bdb.PubKey
	Mtokens         lnwire.MilliSatoshi
	Ignore          []bdb.IgnorePair
	IncomingPeer    bdb.PubKey
	OutgoingChannel bdb.ChanId
	MaxTimeout      uint32
	Routes          [][]*bdb.HintHop
	PathTimeout     time.Duration
	ProbeTimeout    time.Duration
}

// ProbeHandlers observe the attempts a route probe makes.
type ProbeHandlers struct {
	OnProbing        func(route *bdb.Route)
	OnRoutingFailure func(failure *bdb.RoutingFailure)
}

type PayViaRouteRequest struct {
	Id    lntypes.Hash
	Route *bdb.Route
}

// PayViaRouteResult carries either the preimage or the failure of an
// attempt.
type PayViaRouteResult struct {
	Secret  *lntypes.Preimage
	Failure *bdb.RoutingFailure
	Route   *bdb.Route
}

type ChannelGetter interface {
	GetChannel(ctx context.Context, id bdb.ChanId) (*bdb.Channel, error)
}

type ChannelLister interface {
	GetChannels(ctx context.Context, req *GetChannelsRequest) ([]*bdb.LocalChannel, error)
}

type WalletInfoGetter interface {
	GetWalletInfo(ctx context.Context) (*WalletInfo, error)
}

type RouteBuilder interface {
	GetRouteThroughHops(ctx context.Context, req *RouteThroughHopsRequest) (*bdb.Route, error)
}

// RouteProber searches for a route that reaches the destination. A nil
// route without an error means no route was found.
type RouteProber interface {
	ProbeForRoute(ctx context.Context, req *ProbeForRouteRequest, handlers *ProbeHandlers) (*bdb.Route, error)
}

// RoutePayer attempts a single HTLC along a route. Errors are transport
// failures; routing failures are reported in the result.
type RoutePayer interface {
	PayViaRoute(ctx context.Context, req *PayViaRouteRequest) (*PayViaRouteResult, error)
}

type RequestParser interface {
	ParsePaymentRequest(ctx context.Context, request string) (*bdb.PaymentRequest, error)
}

type Lightning interface {
	ChannelGetter
	ChannelLister
	WalletInfoGetter
	RouteBuilder
	RouteProber
	RoutePayer
	RequestParser
}
