package payments

import (
	"context"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/graph"
	"github.com/the-lightning-land/splitpay/node"
	"github.com/the-lightning-land/splitpay/routing"
)

type RouteForPaymentRequest struct {
	CltvDelta    uint32
	Destination  bdb.PubKey
	Messages     []*bdb.Message
	Mtokens      lnwire.MilliSatoshi
	Path         *bdb.Path
	PaymentAddr  []byte
	Routes       [][]*bdb.HintHop
	TotalMtokens lnwire.MilliSatoshi
}

func (req *RouteForPaymentRequest) validate() error {
	switch {
	case req.CltvDelta == 0:
		return bdb.NewError(bdb.InvalidInput, "Expected final cltv delta to get route for payment", nil)
	case req.Destination == "":
		return bdb.NewError(bdb.InvalidInput, "Expected destination to get route for payment", nil)
	case req.Mtokens == 0:
		return bdb.NewError(bdb.InvalidInput, "Expected mtokens to get route for payment", nil)
	case req.Path == nil || len(req.Path.Channels) == 0:
		return bdb.NewError(bdb.InvalidInput, "Expected path to get route for payment", nil)
	case len(req.PaymentAddr) == 0:
		return bdb.NewError(bdb.InvalidInput, "Expected payment identifier to get route for payment", nil)
	case req.TotalMtokens == 0:
		return bdb.NewError(bdb.InvalidInput, "Expected total mtokens to get route for payment", nil)
	}

	return nil
}

// GetRouteForPayment builds the route carrying one shard over a path. The
// node is asked to build the route first; when that fails or hints are
// involved the route is assembled from live channel policies.
func GetRouteForPayment(ctx context.Context, n node.Lightning, req *RouteForPaymentRequest) (*bdb.Route, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	hops, err := req.Path.Hops()
	if err != nil {
		return nil, err
	}

	if req.Routes == nil {
		route, err := n.GetRouteThroughHops(ctx, &node.RouteThroughHopsRequest{
			CltvDelta:       req.CltvDelta,
			Mtokens:         req.Mtokens,
			OutgoingChannel: hops[0].Channel,
			PublicKeys:      req.Path.Relays,
			PaymentAddr:     req.PaymentAddr,
			TotalMtokens:    req.TotalMtokens,
			Messages:        req.Messages,
		})
		if err == nil {
			return route, nil
		}

		peers, err := n.GetChannels(ctx, &node.GetChannelsRequest{
			IsActive:         true,
			PartnerPublicKey: hops[0].PublicKey,
		})
		if err != nil {
			return nil, bdb.WrapError(bdb.UnexpectedError, "Could not get channels with first hop", err)
		}

		if len(peers) == 0 {
			return nil, bdb.NewError(bdb.RouteConstructionError, "Expected active channel with first hop", map[string]interface{}{
				"public_key": hops[0].PublicKey,
			})
		}
	}

	hints, err := routing.ChannelsFromHints(ctx, n, "", req.Routes)
	if err != nil {
		return nil, err
	}

	channels, err := graph.GetPoliciesForChannels(ctx, n, hints, hops)
	if err != nil {
		return nil, err
	}

	info, err := n.GetWalletInfo(ctx)
	if err != nil {
		return nil, bdb.WrapError(bdb.UnexpectedError, "Could not get wallet info", err)
	}

	return routing.RouteFromChannels(&routing.RouteFromChannelsRequest{
		Channels:     channels,
		CltvDelta:    req.CltvDelta,
		Height:       info.CurrentBlockHeight,
		Mtokens:      req.Mtokens,
		PaymentAddr:  req.PaymentAddr,
		TotalMtokens: req.TotalMtokens,
		Messages:     req.Messages,
	})
}
