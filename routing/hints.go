package routing

import (
	"context"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node"
)

// ChannelsFromHints synthesizes channels for the private route hints given
// directly or carried by the payment request. Hint channels have unknown
// capacity and only know the policy of the node sending into them.
func ChannelsFromHints(ctx context.Context, parser node.RequestParser, request string,
	routes [][]*bdb.HintHop) ([]*bdb.Channel, error) {

	if request == "" && routes == nil {
		return nil, nil
	}

	if routes == nil {
		if parser == nil {
			return nil, bdb.NewError(bdb.InvalidInput, "Expected node to parse payment request", nil)
		}

		decoded, err := parser.ParsePaymentRequest(ctx, request)
		if err != nil {
			return nil, bdb.WrapError(bdb.InvalidInput, "Could not parse payment request", err)
		}

		routes = decoded.Routes
	}

	var channels []*bdb.Channel
	for _, route := range routes {
		for i, hop := range route {
			// The first hop only anchors the hint at a node
			if i == 0 {
				continue
			}

			channels = append(channels, &bdb.Channel{
				Id:          hop.Channel,
				Capacity:    bdb.MaxSafeTokens,
				Destination: hop.PublicKey,
				Policies: [2]bdb.Policy{
					{
						PublicKey:      route[i-1].PublicKey,
						BaseFeeMtokens: hop.BaseFeeMtokens,
						FeeRate:        hop.FeeRate,
						CltvDelta:      hop.CltvDelta,
					},
					{
						PublicKey: hop.PublicKey,
					},
				},
			})
		}
	}

	return channels, nil
}
