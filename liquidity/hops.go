package liquidity

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/the-lightning-land/splitpay/bdb"
	"sort"
)

// HopsForFindMaxPath swaps the first hop of a found route for the unused
// outbound channel to the same peer holding the most local balance. It
// returns nil when no such channel exists.
func HopsForFindMaxPath(channels []*bdb.LocalChannel, hops []*bdb.Hop, probes []*bdb.Path) ([]*bdb.Hop, btcutil.Amount) {
	if len(hops) == 0 {
		return nil, 0
	}

	used := make(map[bdb.ChanId]bool, len(probes))
	for _, probe := range probes {
		if len(probe.Channels) > 0 {
			used[probe.Channels[0]] = true
		}
	}

	var candidates []*bdb.LocalChannel
	for _, channel := range channels {
		if !channel.IsActive || channel.LocalBalance == 0 || used[channel.Id] {
			continue
		}

		if channel.PartnerPublicKey != hops[0].PublicKey {
			continue
		}

		candidates = append(candidates, channel)
	}

	if len(candidates) == 0 {
		return nil, 0
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LocalBalance > candidates[j].LocalBalance
	})

	out := candidates[0]

	res := make([]*bdb.Hop, 0, len(hops))
	res = append(res, &bdb.Hop{Channel: out.Id, PublicKey: hops[0].PublicKey})
	res = append(res, hops[1:]...)

	return res, out.LocalBalance
}
