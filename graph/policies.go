package graph

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node"
	"golang.org/x/sync/errgroup"
)

// GetPoliciesForChannels looks up the live channel of every hop. Channels
// the node does not know fall back to the hint channel with the same id.
// The result has one channel per hop, in hop order.
func GetPoliciesForChannels(ctx context.Context, getter node.ChannelGetter, channels []*bdb.Channel,
	hops []*bdb.Hop) ([]*bdb.Channel, error) {

	if getter == nil {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected node to get policies for channels", nil)
	}

	for _, hop := range hops {
		if hop == nil || hop.Channel == 0 || hop.PublicKey == "" {
			return nil, bdb.NewError(bdb.InvalidInput, "Expected channel and public key for every hop", nil)
		}
	}

	known := make(map[bdb.ChanId]*bdb.Channel, len(channels))
	for _, channel := range channels {
		known[channel.Id] = channel
	}

	res := make([]*bdb.Channel, len(hops))

	g, ctx := errgroup.WithContext(ctx)
	for i, hop := range hops {
		i, hop := i, hop

		g.Go(func() error {
			channel, err := getter.GetChannel(ctx, hop.Channel)
			if err != nil {
				hint, ok := known[hop.Channel]
				if !ok {
					return errors.Errorf("Could not get channel %v: %v", hop.Channel, err)
				}

				c := *hint
				channel = &c
			}

			channel.Id = hop.Channel
			channel.Destination = hop.PublicKey
			res[i] = channel

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, bdb.WrapError(bdb.UnexpectedError, "Could not get policies for channels", err)
	}

	return res, nil
}
