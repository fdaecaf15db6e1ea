package graph

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
)

// MaxPossibleMtokens bounds routes where no channel limits the htlc size.
const MaxPossibleMtokens = lnwire.MilliSatoshi(bdb.MaxSafeTokens)

// MaxHtlcAcrossRoute returns the largest htlc every forwarding policy on the
// route accepts. Policies without a max htlc are limited by the channel
// capacity.
func MaxHtlcAcrossRoute(channels []*bdb.Channel) (lnwire.MilliSatoshi, btcutil.Amount) {
	max := MaxPossibleMtokens

	for _, channel := range channels {
		limit := MaxPossibleMtokens

		policy := channel.ForwardPolicy()
		switch {
		case policy != nil && policy.MaxHtlcMtokens > 0:
			limit = policy.MaxHtlcMtokens
		case channel.Capacity > 0:
			limit = lnwire.NewMSatFromSatoshis(channel.Capacity)
		}

		if limit < max {
			max = limit
		}
	}

	return max, max.ToSatoshis()
}
