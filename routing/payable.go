package routing

import (
	"context"
	"crypto/rand"
	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node"
	"time"
)

// DefaultPathfindingTimeout bounds a single probe attempt.
const DefaultPathfindingTimeout = 90 * time.Minute

// Prober is what a payability probe needs from the node.
type Prober interface {
	node.WalletInfoGetter
	node.RouteBuilder
	node.RoutePayer
}

type IsRoutePayableRequest struct {
	Channels  []*bdb.Channel
	CltvDelta uint32
	Mtokens   lnwire.MilliSatoshi
	Timeout   time.Duration
}

// IsRoutePayable sends an htlc nobody can settle along the channels. The
// destination rejecting the unknown payment hash proves the amount made it
// there.
func IsRoutePayable(ctx context.Context, prober Prober, req *IsRoutePayableRequest) (bool, *bdb.Route, error) {
	if req.CltvDelta == 0 {
		return false, nil, bdb.NewError(bdb.InvalidInput, "Expected final cltv delta to test payable route", nil)
	}

	if len(req.Channels) == 0 {
		return false, nil, bdb.NewError(bdb.InvalidInput, "Expected channels to test payable route", nil)
	}

	if req.Mtokens == 0 {
		return false, nil, bdb.NewError(bdb.InvalidInput, "Expected mtokens to test payable route", nil)
	}

	info, err := prober.GetWalletInfo(ctx)
	if err != nil {
		return false, nil, bdb.WrapError(bdb.UnexpectedError, "Could not get wallet info", err)
	}

	keys := make([]bdb.PubKey, len(req.Channels))
	for i, channel := range req.Channels {
		keys[i] = channel.Destination
	}

	route, err := prober.GetRouteThroughHops(ctx, &node.RouteThroughHopsRequest{
		CltvDelta:       req.CltvDelta,
		Mtokens:         req.Mtokens,
		OutgoingChannel: req.Channels[0].Id,
		PublicKeys:      keys,
	})
	if err != nil {
		route, err = RouteFromChannels(&RouteFromChannelsRequest{
			Channels:  req.Channels,
			CltvDelta: req.CltvDelta,
			Height:    info.CurrentBlockHeight,
			Mtokens:   req.Mtokens,
		})
		if err != nil {
			return false, nil, err
		}
	}

	id, err := probeId()
	if err != nil {
		return false, nil, bdb.WrapError(bdb.UnexpectedError, "Could not generate probe id", err)
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = DefaultPathfindingTimeout
	}

	payCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := prober.PayViaRoute(payCtx, &node.PayViaRouteRequest{Id: id, Route: route})
	switch {
	case ctx.Err() != nil:
		return false, nil, ctx.Err()
	case err != nil:
		return false, nil, nil
	case res.Secret != nil:
		return true, route, nil
	case res.Failure == nil:
		return false, nil, nil
	}

	switch res.Failure.Reason {
	case bdb.UnknownPaymentHash:
		return true, route, nil
	case bdb.IncorrectCltvExpiry:
		return false, nil, bdb.NewError(bdb.UnexpectedErrorCode, "Unexpected incorrect cltv expiry while probing", map[string]interface{}{
			"failure": res.Failure,
		})
	default:
		return false, nil, nil
	}
}

// probeId returns the hash of a random preimage nobody knows.
func probeId() (lntypes.Hash, error) {
	var preimage lntypes.Preimage
	if _, err := rand.Read(preimage[:]); err != nil {
		return lntypes.Hash{}, errors.Wrap(err, 0)
	}

	return preimage.Hash(), nil
}
