package payments

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node"
	"github.com/the-lightning-land/splitpay/node/nodetest"
)

const self = bdb.PubKey("self")

var (
	testSecret = lntypes.Preimage{1, 2, 3}
	testId     = testSecret.Hash()
	testAddr   = []byte{9, 9, 9}
)

func channel(id bdb.ChanId, from, to bdb.PubKey, base lnwire.MilliSatoshi) *bdb.Channel {
	return &bdb.Channel{
		Id:       id,
		Capacity: 1000000,
		Policies: [2]bdb.Policy{
			{PublicKey: from, BaseFeeMtokens: base, CltvDelta: 40},
			{PublicKey: to},
		},
	}
}

func pathThroughA() *bdb.Path {
	return &bdb.Path{Channels: []bdb.ChanId{1, 3}, Relays: []bdb.PubKey{"a", "d"}, Fee: 1, FeeMtokens: 1000, Liquidity: 500}
}

func pathThroughB() *bdb.Path {
	return &bdb.Path{Channels: []bdb.ChanId{2, 4}, Relays: []bdb.PubKey{"b", "d"}, Fee: 2, FeeMtokens: 2000, Liquidity: 500}
}

type payBehavior func(route *bdb.Route) (*node.PayViaRouteResult, error)

func settle(route *bdb.Route) (*node.PayViaRouteResult, error) {
	secret := testSecret
	return &node.PayViaRouteResult{Secret: &secret, Route: route}, nil
}

func fail(reason string) payBehavior {
	return func(route *bdb.Route) (*node.PayViaRouteResult, error) {
		return nodetest.Reject(route, reason), nil
	}
}

func broken(route *bdb.Route) (*node.PayViaRouteResult, error) {
	return nil, errors.New("connection reset")
}

// payNode pays through a or b to d, deciding the outcome by the first
// channel of the route.
func payNode(behaviors map[bdb.ChanId]payBehavior) *nodetest.Node {
	return &nodetest.Node{
		GetWalletInfoFunc: nodetest.WalletInfo(self, 1),
		GetChannelsFunc: nodetest.Channels(
			&bdb.LocalChannel{Id: 1, IsActive: true, PartnerPublicKey: "a", LocalBalance: 1000},
			&bdb.LocalChannel{Id: 2, IsActive: true, PartnerPublicKey: "b", LocalBalance: 1000},
		),
		GetChannelFunc: nodetest.Graph(
			channel(1, self, "a", 0),
			channel(2, self, "b", 0),
			channel(3, "a", "d", 1000),
			channel(4, "b", "d", 2000),
		),
		PayViaRouteFunc: func(ctx context.Context, req *node.PayViaRouteRequest) (*node.PayViaRouteResult, error) {
			behavior, ok := behaviors[req.Route.Hops[0].Channel]
			if !ok {
				return settle(req.Route)
			}

			return behavior(req.Route)
		},
	}
}
