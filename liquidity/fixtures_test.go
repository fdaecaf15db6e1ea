package liquidity

import (
	"context"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node"
	"github.com/the-lightning-land/splitpay/node/nodetest"
	"testing"
	"time"
)

const self = bdb.PubKey("self")

func noJitter(t *testing.T) {
	previous := jitterSource
	jitterSource = func() float64 { return 0 }
	t.Cleanup(func() { jitterSource = previous })
}

func channel(id bdb.ChanId, from, to bdb.PubKey, capacity btcutil.Amount, base lnwire.MilliSatoshi) *bdb.Channel {
	return &bdb.Channel{
		Id:       id,
		Capacity: capacity,
		Policies: [2]bdb.Policy{
			{PublicKey: from, BaseFeeMtokens: base, FeeRate: 1, CltvDelta: 40},
			{PublicKey: to},
		},
	}
}

func route(hops ...*bdb.Hop) *bdb.Route {
	r := &bdb.Route{}
	for _, hop := range hops {
		r.Hops = append(r.Hops, &bdb.RouteHop{Channel: hop.Channel, PublicKey: hop.PublicKey})
	}

	return r
}

// payableUpTo settles probes leaving through a local channel as long as
// the channel balance covers the route amount.
func payableUpTo(channels []*bdb.LocalChannel) func(ctx context.Context, req *node.PayViaRouteRequest) (*node.PayViaRouteResult, error) {
	return func(ctx context.Context, req *node.PayViaRouteRequest) (*node.PayViaRouteResult, error) {
		for _, channel := range channels {
			if channel.Id != req.Route.Hops[0].Channel {
				continue
			}

			if req.Route.Mtokens <= lnwire.NewMSatFromSatoshis(channel.LocalBalance) {
				return nodetest.Reject(req.Route, bdb.UnknownPaymentHash), nil
			}
		}

		failure := nodetest.Reject(req.Route, bdb.TemporaryChannelFailure)
		failure.Failure.Index = 1

		return failure, nil
	}
}

// probeRoutes returns the first candidate route none of whose edges are
// ignored.
func probeRoutes(routes ...*bdb.Route) func(ctx context.Context, req *node.ProbeForRouteRequest, handlers *node.ProbeHandlers) (*bdb.Route, error) {
	return func(ctx context.Context, req *node.ProbeForRouteRequest, handlers *node.ProbeHandlers) (*bdb.Route, error) {
		ignored := make(map[bdb.IgnorePair]bool)
		for _, pair := range req.Ignore {
			ignored[pair] = true
		}

	candidates:
		for _, route := range routes {
			from := self
			for _, hop := range route.Hops {
				if ignored[bdb.IgnorePair{From: from, To: hop.PublicKey}] || ignored[bdb.IgnorePair{From: hop.PublicKey}] {
					continue candidates
				}
				from = hop.PublicKey
			}

			handlers.OnProbing(route)

			return route, nil
		}

		return nil, nil
	}
}

// twoPathNode knows two ways to c: through b directly and through b and d.
func twoPathNode() *nodetest.Node {
	locals := []*bdb.LocalChannel{
		{Id: 1, IsActive: true, PartnerPublicKey: "b", LocalBalance: 2000000},
		{Id: 2, IsActive: true, PartnerPublicKey: "b", LocalBalance: 3000000},
	}

	return &nodetest.Node{
		GetWalletInfoFunc: nodetest.WalletInfo(self, 500),
		GetChannelsFunc:   nodetest.Channels(locals...),
		GetChannelFunc: nodetest.Graph(
			channel(1, self, "b", 5000000, 0),
			channel(2, self, "b", 5000000, 0),
			channel(9, "b", "c", 10000000, 1000),
			channel(10, "b", "d", 10000000, 1000),
			channel(11, "d", "c", 10000000, 1000),
		),
		ProbeForRouteFunc: probeRoutes(
			route(&bdb.Hop{Channel: 1, PublicKey: "b"}, &bdb.Hop{Channel: 9, PublicKey: "c"}),
			route(&bdb.Hop{Channel: 1, PublicKey: "b"}, &bdb.Hop{Channel: 10, PublicKey: "d"}, &bdb.Hop{Channel: 11, PublicKey: "c"}),
		),
		PayViaRouteFunc: payableUpTo(locals),
	}
}

const testDelay = time.Microsecond
