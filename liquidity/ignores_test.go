package liquidity

import (
	"context"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node/nodetest"
	"math/rand"
	"testing"
)

func TestMultiProbeIgnoresExhaustsPeer(t *testing.T) {
	ignore, err := MultiProbeIgnores(&MultiProbeIgnoresRequest{
		Channels: []*bdb.LocalChannel{
			{Id: 1, PartnerPublicKey: "a", LocalBalance: 999000},
			{Id: 2, PartnerPublicKey: "a", LocalBalance: 4000},
			{Id: 3, PartnerPublicKey: "a", LocalBalance: 199000},
			{Id: 4, PartnerPublicKey: "e", LocalBalance: 500000},
		},
		From:    "origin",
		Ignore:  []bdb.IgnorePair{{From: "d"}},
		Mtokens: 1e8,
		Probes: []*bdb.Path{
			{Relays: []bdb.PubKey{"a", "b", "c"}, Liquidity: 898000},
			{Relays: []bdb.PubKey{"a", "b", "c"}, Liquidity: 100000},
			{Relays: []bdb.PubKey{"a", "b", "c"}, Liquidity: 150000},
			{Relays: []bdb.PubKey{"e", "f", "g"}, Liquidity: 1000},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []bdb.IgnorePair{
		{From: "d"},
		{From: "origin", To: "a"},
		{From: "a", To: "b"},
		{From: "b", To: "c"},
		{From: "e", To: "f"},
		{From: "f", To: "g"},
	}, ignore)
}

func TestMultiProbeIgnoresWhitelist(t *testing.T) {
	ignore, err := MultiProbeIgnores(&MultiProbeIgnoresRequest{
		Channels: []*bdb.LocalChannel{{Id: 1, PartnerPublicKey: "e", LocalBalance: 500000}},
		From:     "origin",
		Mtokens:  1e8,
		Probes: []*bdb.Path{
			{Relays: []bdb.PubKey{"e", "f", "g"}, Liquidity: 1000},
			{Relays: []bdb.PubKey{"e", "x", "g"}, Liquidity: 1000},
		},
		Routes: [][]*bdb.HintHop{
			{{PublicKey: "f"}, {Channel: 5, PublicKey: "g"}},
		},
		Allow: []bdb.IgnorePair{{From: "x", To: "g"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []bdb.IgnorePair{
		{From: "e", To: "f"},
		{From: "e", To: "x"},
	}, ignore)
}

func TestMultiProbeIgnoresPeerWithoutBalance(t *testing.T) {
	ignore, err := MultiProbeIgnores(&MultiProbeIgnoresRequest{
		Channels: []*bdb.LocalChannel{
			{Id: 1, PartnerPublicKey: "a", LocalBalance: 150000, LocalReserve: 60000},
		},
		From:    "origin",
		Mtokens: 1e8,
		Probes:  []*bdb.Path{{Relays: []bdb.PubKey{"a"}, Liquidity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, []bdb.IgnorePair{{From: "origin", To: "a"}}, ignore)
}

// exhaustedBySimulation takes each usage from the fullest remaining channel
// and drops that channel when it cannot carry the usage.
func exhaustedBySimulation(balances []btcutil.Amount, used []btcutil.Amount, floor lnwire.MilliSatoshi) bool {
	var open []btcutil.Amount
	for _, balance := range balances {
		if lnwire.NewMSatFromSatoshis(balance) > floor {
			open = append(open, balance)
		}
	}

	for _, amount := range used {
		if len(open) == 0 {
			break
		}

		fullest := 0
		for i := range open {
			if open[i] > open[fullest] {
				fullest = i
			}
		}

		if open[fullest] > amount {
			open[fullest] -= amount
			continue
		}

		open = append(open[:fullest], open[fullest+1:]...)
	}

	for _, balance := range open {
		if lnwire.NewMSatFromSatoshis(balance) > floor {
			return false
		}
	}

	return true
}

func TestMultiProbeIgnoresMatchesSimulation(t *testing.T) {
	random := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		var channels []*bdb.LocalChannel
		var balances []btcutil.Amount
		count := 1 + random.Intn(4)
		for j := 0; j < count; j++ {
			channel := &bdb.LocalChannel{
				Id:               bdb.ChanId(j + 1),
				PartnerPublicKey: "a",
				LocalBalance:     btcutil.Amount(random.Int63n(1000000)),
				LocalReserve:     btcutil.Amount(random.Int63n(20000)),
			}
			channels = append(channels, channel)
			balances = append(balances, channel.Spendable())
		}
		channels = append(channels, &bdb.LocalChannel{Id: 9, PartnerPublicKey: "b", LocalBalance: 1000000})

		var used []btcutil.Amount
		var probes []*bdb.Path
		count = 1 + random.Intn(4)
		for j := 0; j < count; j++ {
			amount := btcutil.Amount(1 + random.Int63n(1000000))
			used = append(used, amount)
			probes = append(probes, &bdb.Path{Relays: []bdb.PubKey{"a"}, Liquidity: amount})
		}

		floor := lnwire.NewMSatFromSatoshis(btcutil.Amount(1 + random.Int63n(200000)))
		expected := exhaustedBySimulation(balances, used, floor)

		assert.Equal(t, expected, isPeerExhausted(channels, "a", used, floor),
			"balances %v used %v floor %v", balances, used, floor)

		ignore, err := MultiProbeIgnores(&MultiProbeIgnoresRequest{
			Channels: channels,
			From:     "origin",
			Mtokens:  floor,
			Probes:   probes,
		})
		require.NoError(t, err)
		assert.Equal(t, expected, containsPair(ignore, bdb.IgnorePair{From: "origin", To: "a"}))
	}
}

func containsPair(pairs []bdb.IgnorePair, pair bdb.IgnorePair) bool {
	for _, p := range pairs {
		if p == pair {
			return true
		}
	}

	return false
}

func TestMultiProbeIgnoresInvalid(t *testing.T) {
	_, err := MultiProbeIgnores(&MultiProbeIgnoresRequest{Mtokens: 1})
	assert.Equal(t, bdb.InvalidInput, bdb.CodeOf(err))

	_, err = MultiProbeIgnores(&MultiProbeIgnoresRequest{From: "origin"})
	assert.Equal(t, bdb.InvalidInput, bdb.CodeOf(err))

	_, err = MultiProbeIgnores(&MultiProbeIgnoresRequest{From: "origin", Mtokens: 1, Probes: []*bdb.Path{{}}})
	assert.Equal(t, bdb.InvalidInput, bdb.CodeOf(err))

	ignore, err := MultiProbeIgnores(&MultiProbeIgnoresRequest{From: "origin", Mtokens: 1})
	require.NoError(t, err)
	assert.Empty(t, ignore)
}

func TestHopsForFindMaxPath(t *testing.T) {
	channels := []*bdb.LocalChannel{
		{Id: 1, IsActive: true, PartnerPublicKey: "b", LocalBalance: 5000},
		{Id: 2, IsActive: true, PartnerPublicKey: "b", LocalBalance: 9000},
		{Id: 3, IsActive: false, PartnerPublicKey: "b", LocalBalance: 90000},
		{Id: 4, IsActive: true, PartnerPublicKey: "x", LocalBalance: 90000},
		{Id: 5, IsActive: true, PartnerPublicKey: "b", LocalBalance: 0},
	}
	hops := []*bdb.Hop{{Channel: 1, PublicKey: "b"}, {Channel: 7, PublicKey: "c"}}

	res, max := HopsForFindMaxPath(channels, hops, nil)
	assert.Equal(t, []*bdb.Hop{{Channel: 2, PublicKey: "b"}, {Channel: 7, PublicKey: "c"}}, res)
	assert.EqualValues(t, 9000, max)

	res, max = HopsForFindMaxPath(channels, hops, []*bdb.Path{{Channels: []bdb.ChanId{2, 7}}})
	assert.Equal(t, bdb.ChanId(1), res[0].Channel)
	assert.EqualValues(t, 5000, max)

	res, _ = HopsForFindMaxPath(channels, hops, []*bdb.Path{{Channels: []bdb.ChanId{1}}, {Channels: []bdb.ChanId{2}}})
	assert.Nil(t, res)

	res, _ = HopsForFindMaxPath(channels, nil, nil)
	assert.Nil(t, res)
}

func TestGetSyntheticOutIgnores(t *testing.T) {
	n := &nodetest.Node{
		GetWalletInfoFunc: nodetest.WalletInfo("self", 1),
		GetChannelsFunc: nodetest.Channels(
			&bdb.LocalChannel{Id: 1, PartnerPublicKey: "a"},
			&bdb.LocalChannel{Id: 2, PartnerPublicKey: "b"},
			&bdb.LocalChannel{Id: 3, PartnerPublicKey: "b"},
			&bdb.LocalChannel{Id: 4, PartnerPublicKey: "c"},
		),
	}

	ignore, err := GetSyntheticOutIgnores(context.Background(), n, []bdb.IgnorePair{{From: "z"}}, []bdb.PubKey{"a"})
	require.NoError(t, err)
	assert.Equal(t, []bdb.IgnorePair{{From: "z"}, {From: "self", To: "b"}, {From: "self", To: "c"}}, ignore)

	ignore, err = GetSyntheticOutIgnores(context.Background(), n, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ignore)
}
