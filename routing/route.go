package routing

import (
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
)

type RouteFromChannelsRequest struct {
	Channels     []*bdb.Channel
	CltvDelta    uint32
	Height       uint32
	Mtokens      lnwire.MilliSatoshi
	PaymentAddr  []byte
	TotalMtokens lnwire.MilliSatoshi
	Messages     []*bdb.Message
}

// RouteFromChannels builds a route delivering Mtokens over the channels,
// each channel leading to its Destination.
func RouteFromChannels(req *RouteFromChannelsRequest) (*bdb.Route, error) {
	if len(req.Channels) == 0 {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected channels to construct a route", nil)
	}

	if req.Mtokens == 0 {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected mtokens to send along the route", nil)
	}

	hops := make([]*bdb.RouteHop, len(req.Channels))
	forward := req.Mtokens
	timeout := req.Height + req.CltvDelta
	var totalFee lnwire.MilliSatoshi

	// Go through the channels in reverse, every node pays its own fee
	for i := len(req.Channels) - 1; i >= 0; i-- {
		channel := req.Channels[i]

		if channel.Destination == "" {
			return nil, bdb.NewError(bdb.RouteConstructionError, "Expected destination for channel", map[string]interface{}{
				"channel": channel.Id,
			})
		}

		var fee lnwire.MilliSatoshi
		var delta uint32

		if i < len(req.Channels)-1 {
			next := req.Channels[i+1]

			policy := next.Policy(channel.Destination)
			if policy == nil {
				return nil, bdb.NewError(bdb.RouteConstructionError, "Expected policy to forward over channel", map[string]interface{}{
					"channel": next.Id,
				})
			}

			fee = policy.Fee(forward)
			delta = policy.CltvDelta
		}

		hops[i] = &bdb.RouteHop{
			Channel:         channel.Id,
			ChannelCapacity: channel.Capacity,
			PublicKey:       channel.Destination,
			Fee:             fee.ToSatoshis(),
			FeeMtokens:      fee,
			Forward:         forward.ToSatoshis(),
			ForwardMtokens:  forward,
			Timeout:         timeout,
		}

		totalFee += fee
		forward += fee
		timeout += delta
	}

	route := &bdb.Route{
		Hops:       hops,
		Fee:        totalFee.ToSatoshis(),
		FeeMtokens: totalFee,
		Mtokens:    forward,
		Tokens:     forward.ToSatoshis(),
		Timeout:    timeout,
		Messages:   req.Messages,
	}

	if len(req.PaymentAddr) > 0 {
		route.PaymentAddr = req.PaymentAddr
		route.TotalMtokens = req.TotalMtokens

		if route.TotalMtokens == 0 {
			route.TotalMtokens = req.Mtokens
		}
	}

	return route, nil
}
