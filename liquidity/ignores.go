package liquidity

import (
	"context"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node"
	"sort"
)

type MultiProbeIgnoresRequest struct {
	Channels []*bdb.LocalChannel
	From     bdb.PubKey
	Ignore   []bdb.IgnorePair
	Mtokens  lnwire.MilliSatoshi
	Probes   []*bdb.Path
	Routes   [][]*bdb.HintHop
	Allow    []bdb.IgnorePair
}

// MultiProbeIgnores returns the pairs a new probe has to avoid so that it
// does not overlap liquidity previous probes already claimed.
//
// Every edge between relays of a previous probe is ignored. Direct peers
// are ignored once the liquidity previous probes took through them leaves
// no local channel to that peer able to carry Mtokens. Edges of the hint
// routes and explicitly allowed pairs are never ignored.
func MultiProbeIgnores(req *MultiProbeIgnoresRequest) ([]bdb.IgnorePair, error) {
	if req.From == "" {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected from public key to calculate ignores", nil)
	}

	if req.Mtokens == 0 {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected mtokens to calculate ignores", nil)
	}

	var peers []bdb.PubKey
	var network []bdb.IgnorePair
	used := make(map[bdb.PubKey][]btcutil.Amount)

	for _, probe := range req.Probes {
		if len(probe.Relays) == 0 {
			return nil, bdb.NewError(bdb.InvalidInput, "Expected relays for every probe", nil)
		}

		out := probe.Relays[0]
		if _, ok := used[out]; !ok {
			peers = append(peers, out)
		}
		used[out] = append(used[out], probe.Liquidity)

		for i := 1; i < len(probe.Relays); i++ {
			network = append(network, bdb.IgnorePair{From: probe.Relays[i-1], To: probe.Relays[i]})
		}
	}

	ignore := append([]bdb.IgnorePair(nil), req.Ignore...)

	for _, peer := range peers {
		if isPeerExhausted(req.Channels, peer, used[peer], req.Mtokens) {
			ignore = append(ignore, bdb.IgnorePair{From: req.From, To: peer})
		}
	}

	ignore = append(ignore, network...)

	allowed := make(map[bdb.IgnorePair]bool)
	for _, route := range req.Routes {
		for i := 1; i < len(route); i++ {
			allowed[bdb.IgnorePair{From: route[i-1].PublicKey, To: route[i].PublicKey}] = true
		}
	}
	for _, pair := range req.Allow {
		allowed[pair] = true
	}

	seen := make(map[bdb.IgnorePair]bool, len(ignore))
	res := make([]bdb.IgnorePair, 0, len(ignore))
	for _, pair := range ignore {
		if allowed[pair] || seen[pair] {
			continue
		}

		seen[pair] = true
		res = append(res, pair)
	}

	return res, nil
}

// isPeerExhausted assigns every amount already taken through the peer to
// the local channels with the peer, largest channel first.
func isPeerExhausted(channels []*bdb.LocalChannel, peer bdb.PubKey, used []btcutil.Amount,
	floor lnwire.MilliSatoshi) bool {

	var available []btcutil.Amount
	for _, channel := range channels {
		if channel.PartnerPublicKey != peer {
			continue
		}

		if spendable := channel.Spendable(); lnwire.NewMSatFromSatoshis(spendable) > floor {
			available = append(available, spendable)
		}
	}

	if len(available) == 0 {
		return true
	}

	for _, amount := range used {
		if len(available) == 0 {
			break
		}

		sort.Slice(available, func(i, j int) bool { return available[i] > available[j] })

		index := -1
		for i, balance := range available {
			if balance > amount {
				index = i
				break
			}
		}

		if index < 0 {
			available = available[1:]
			continue
		}

		available[index] -= amount
	}

	for _, balance := range available {
		if lnwire.NewMSatFromSatoshis(balance) > floor {
			return false
		}
	}

	return true
}

type PeerLister interface {
	node.ChannelLister
	node.WalletInfoGetter
}

// GetSyntheticOutIgnores adds an ignore for every direct peer that is not
// one of the allowed outbound peers.
func GetSyntheticOutIgnores(ctx context.Context, n PeerLister, ignore []bdb.IgnorePair,
	out []bdb.PubKey) ([]bdb.IgnorePair, error) {

	res := append([]bdb.IgnorePair(nil), ignore...)
	if len(out) == 0 {
		return res, nil
	}

	info, err := n.GetWalletInfo(ctx)
	if err != nil {
		return nil, bdb.WrapError(bdb.UnexpectedError, "Could not get wallet info", err)
	}

	channels, err := n.GetChannels(ctx, &node.GetChannelsRequest{})
	if err != nil {
		return nil, bdb.WrapError(bdb.UnexpectedError, "Could not get channels", err)
	}

	allowed := make(map[bdb.PubKey]bool, len(out))
	for _, key := range out {
		allowed[key] = true
	}

	seen := make(map[bdb.PubKey]bool)
	for _, channel := range channels {
		peer := channel.PartnerPublicKey
		if allowed[peer] || seen[peer] {
			continue
		}

		seen[peer] = true
		res = append(res, bdb.IgnorePair{From: info.PublicKey, To: peer})
	}

	return res, nil
}
