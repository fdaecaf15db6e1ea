package payments

import (
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"math/big"
	"sort"
)

// MtokensForMultiPathPayment returns how much of total the next path with
// the given liquidity should carry, given the shards already assigned. Zero
// means no further shard is needed.
func MtokensForMultiPathPayment(failed map[int]bool, liquidity lnwire.MilliSatoshi, paying []*bdb.Shard,
	total lnwire.MilliSatoshi) lnwire.MilliSatoshi {

	var pending lnwire.MilliSatoshi
	for _, shard := range paying {
		if !failed[shard.Index] {
			pending += shard.Mtokens
		}
	}

	if pending >= total || liquidity == 0 {
		return 0
	}

	remaining := total - pending
	if remaining > liquidity {
		return liquidity
	}

	return remaining
}

// SortMultiplePaymentPaths orders paths by fee per unit of liquidity, then
// by liquidity descending, then by fewer channels. Remaining ties are broken
// on the path contents so the order does not depend on the input order.
func SortMultiplePaymentPaths(paths []*bdb.Path) []*bdb.Path {
	sorted := append([]*bdb.Path(nil), paths...)

	sort.SliceStable(sorted, func(i, j int) bool {
		return comparePaths(sorted[i], sorted[j]) < 0
	})

	return sorted
}

func comparePaths(a, b *bdb.Path) int {
	if c := compareFeeRates(a, b); c != 0 {
		return c
	}

	if a.Liquidity != b.Liquidity {
		if a.Liquidity > b.Liquidity {
			return -1
		}
		return 1
	}

	if len(a.Channels) != len(b.Channels) {
		if len(a.Channels) < len(b.Channels) {
			return -1
		}
		return 1
	}

	if a.FeeMtokens != b.FeeMtokens {
		if a.FeeMtokens < b.FeeMtokens {
			return -1
		}
		return 1
	}

	for i := range a.Channels {
		if a.Channels[i] != b.Channels[i] {
			if a.Channels[i] < b.Channels[i] {
				return -1
			}
			return 1
		}
	}

	for i := 0; i < len(a.Relays) && i < len(b.Relays); i++ {
		if a.Relays[i] != b.Relays[i] {
			if a.Relays[i] < b.Relays[i] {
				return -1
			}
			return 1
		}
	}

	return len(a.Relays) - len(b.Relays)
}

// compareFeeRates compares fee/liquidity of both paths without dividing.
// Paths without liquidity rank last.
func compareFeeRates(a, b *bdb.Path) int {
	switch {
	case a.Liquidity <= 0 && b.Liquidity <= 0:
		return 0
	case a.Liquidity <= 0:
		return 1
	case b.Liquidity <= 0:
		return -1
	}

	left := new(big.Int).Mul(new(big.Int).SetUint64(uint64(a.FeeMtokens)), big.NewInt(int64(b.Liquidity)))
	right := new(big.Int).Mul(new(big.Int).SetUint64(uint64(b.FeeMtokens)), big.NewInt(int64(a.Liquidity)))

	return left.Cmp(right)
}
