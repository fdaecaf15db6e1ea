package routing

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node"
	"github.com/the-lightning-land/splitpay/node/nodetest"
	"testing"
)

func TestChannelsFromHints(t *testing.T) {
	routes := [][]*bdb.HintHop{
		{
			{PublicKey: "a"},
			{Channel: 7, PublicKey: "b", BaseFeeMtokens: 1, FeeRate: 2, CltvDelta: 3},
		},
	}

	channels, err := ChannelsFromHints(context.Background(), nil, "", routes)
	require.NoError(t, err)
	require.Len(t, channels, 1)

	assert.Equal(t, &bdb.Channel{
		Id:          7,
		Capacity:    bdb.MaxSafeTokens,
		Destination: "b",
		Policies: [2]bdb.Policy{
			{PublicKey: "a", BaseFeeMtokens: 1, FeeRate: 2, CltvDelta: 3},
			{PublicKey: "b"},
		},
	}, channels[0])
}

func TestChannelsFromHintsWithoutHints(t *testing.T) {
	channels, err := ChannelsFromHints(context.Background(), nil, "", nil)
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestChannelsFromPaymentRequest(t *testing.T) {
	n := &nodetest.Node{
		ParsePaymentRequestFunc: func(ctx context.Context, request string) (*bdb.PaymentRequest, error) {
			if request != "lnbc1" {
				return nil, errors.New("bad request")
			}

			return &bdb.PaymentRequest{
				Destination: "c",
				Routes: [][]*bdb.HintHop{
					{{PublicKey: "a"}, {Channel: 1, PublicKey: "b"}, {Channel: 2, PublicKey: "c"}},
				},
			}, nil
		},
	}

	channels, err := ChannelsFromHints(context.Background(), n, "lnbc1", nil)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, bdb.PubKey("b"), channels[1].ForwardPolicy().PublicKey)

	_, err = ChannelsFromHints(context.Background(), n, "lnbc2", nil)
	assert.Equal(t, bdb.InvalidInput, bdb.CodeOf(err))
}

func TestRouteFromChannelsSingleHop(t *testing.T) {
	route, err := RouteFromChannels(&RouteFromChannelsRequest{
		Channels: []*bdb.Channel{{
			Id:          1,
			Capacity:    1,
			Destination: "b",
			Policies:    [2]bdb.Policy{{PublicKey: "a", BaseFeeMtokens: 1000}, {PublicKey: "b"}},
		}},
		CltvDelta: 1,
		Height:    1,
		Mtokens:   1,
	})
	require.NoError(t, err)

	assert.Equal(t, &bdb.Route{
		Hops: []*bdb.RouteHop{{
			Channel:         1,
			ChannelCapacity: 1,
			PublicKey:       "b",
			ForwardMtokens:  1,
			Timeout:         2,
		}},
		Mtokens: 1,
		Timeout: 2,
	}, route)
}

func TestRouteFromChannelsMultiHop(t *testing.T) {
	channels := []*bdb.Channel{
		{Id: 1, Capacity: 10, Destination: "a", Policies: [2]bdb.Policy{{PublicKey: "self"}, {PublicKey: "a"}}},
		{Id: 2, Capacity: 20, Destination: "b", Policies: [2]bdb.Policy{
			{PublicKey: "b", BaseFeeMtokens: 99, FeeRate: 99, CltvDelta: 99},
			{PublicKey: "a", BaseFeeMtokens: 1000, FeeRate: 100, CltvDelta: 40},
		}},
		{Id: 3, Capacity: 30, Destination: "c", Policies: [2]bdb.Policy{
			{PublicKey: "b", FeeRate: 1000, CltvDelta: 10},
			{PublicKey: "c"},
		}},
	}

	route, err := RouteFromChannels(&RouteFromChannelsRequest{
		Channels:    channels,
		CltvDelta:   18,
		Height:      100,
		Mtokens:     1000000,
		PaymentAddr: []byte{1},
	})
	require.NoError(t, err)
	require.Len(t, route.Hops, 3)

	assert.EqualValues(t, 1001000, route.Hops[0].ForwardMtokens)
	assert.EqualValues(t, 1100, route.Hops[0].FeeMtokens)
	assert.EqualValues(t, 1, route.Hops[0].Fee)
	assert.EqualValues(t, 128, route.Hops[0].Timeout)

	assert.EqualValues(t, 1000000, route.Hops[1].ForwardMtokens)
	assert.EqualValues(t, 1000, route.Hops[1].FeeMtokens)
	assert.EqualValues(t, 118, route.Hops[1].Timeout)

	assert.EqualValues(t, 1000000, route.Hops[2].ForwardMtokens)
	assert.EqualValues(t, 0, route.Hops[2].FeeMtokens)
	assert.EqualValues(t, 118, route.Hops[2].Timeout)

	assert.EqualValues(t, 2100, route.FeeMtokens)
	assert.EqualValues(t, 2, route.Fee)
	assert.EqualValues(t, 1002100, route.Mtokens)
	assert.EqualValues(t, 1002, route.Tokens)
	assert.EqualValues(t, 168, route.Timeout)
	assert.EqualValues(t, 1000000, route.TotalMtokens)
	assert.Equal(t, bdb.PubKey("c"), route.Destination())
}

func TestRouteFromChannelsMissingPolicy(t *testing.T) {
	_, err := RouteFromChannels(&RouteFromChannelsRequest{
		Channels: []*bdb.Channel{
			{Id: 1, Destination: "a", Policies: [2]bdb.Policy{{PublicKey: "self"}, {PublicKey: "a"}}},
			{Id: 2, Destination: "b", Policies: [2]bdb.Policy{{PublicKey: "x"}, {PublicKey: "b"}}},
		},
		CltvDelta: 1,
		Mtokens:   1,
	})
	assert.Equal(t, bdb.RouteConstructionError, bdb.CodeOf(err))

	_, err = RouteFromChannels(&RouteFromChannelsRequest{Mtokens: 1})
	assert.Equal(t, bdb.InvalidInput, bdb.CodeOf(err))
}

func payableNode(reason string) *nodetest.Node {
	return &nodetest.Node{
		GetWalletInfoFunc: nodetest.WalletInfo("self", 100),
		PayViaRouteFunc: func(ctx context.Context, req *node.PayViaRouteRequest) (*node.PayViaRouteResult, error) {
			return nodetest.Reject(req.Route, reason), nil
		},
	}
}

var probeChannels = []*bdb.Channel{
	{Id: 1, Capacity: 100, Destination: "b", Policies: [2]bdb.Policy{{PublicKey: "self"}, {PublicKey: "b"}}},
}

func TestIsRoutePayable(t *testing.T) {
	n := payableNode(bdb.UnknownPaymentHash)

	payable, route, err := IsRoutePayable(context.Background(), n, &IsRoutePayableRequest{
		Channels:  probeChannels,
		CltvDelta: 40,
		Mtokens:   5000,
	})
	require.NoError(t, err)
	assert.True(t, payable)
	require.NotNil(t, route)
	assert.EqualValues(t, 140, route.Timeout)
	assert.Equal(t, 1, n.Calls("GetRouteThroughHops"))

	payments := n.Payments()
	require.Len(t, payments, 1)
	assert.NotEqual(t, [32]byte{}, [32]byte(payments[0].Id))
}

func TestIsRoutePayablePrefersExternalRoute(t *testing.T) {
	external := &bdb.Route{Hops: []*bdb.RouteHop{{Channel: 1, PublicKey: "b", ForwardMtokens: 5000}}, Mtokens: 5000}

	n := payableNode(bdb.UnknownPaymentHash)
	n.GetRouteThroughHopsFunc = func(ctx context.Context, req *node.RouteThroughHopsRequest) (*bdb.Route, error) {
		assert.Equal(t, []bdb.PubKey{"b"}, req.PublicKeys)
		assert.Equal(t, bdb.ChanId(1), req.OutgoingChannel)
		return external, nil
	}

	payable, route, err := IsRoutePayable(context.Background(), n, &IsRoutePayableRequest{
		Channels:  probeChannels,
		CltvDelta: 40,
		Mtokens:   5000,
	})
	require.NoError(t, err)
	assert.True(t, payable)
	assert.Same(t, external, route)
}

func TestIsRoutePayableFailures(t *testing.T) {
	req := &IsRoutePayableRequest{Channels: probeChannels, CltvDelta: 40, Mtokens: 5000}

	payable, route, err := IsRoutePayable(context.Background(), payableNode(bdb.TemporaryChannelFailure), req)
	require.NoError(t, err)
	assert.False(t, payable)
	assert.Nil(t, route)

	_, _, err = IsRoutePayable(context.Background(), payableNode(bdb.IncorrectCltvExpiry), req)
	assert.Equal(t, bdb.UnexpectedErrorCode, bdb.CodeOf(err))

	n := payableNode("")
	n.PayViaRouteFunc = func(ctx context.Context, req *node.PayViaRouteRequest) (*node.PayViaRouteResult, error) {
		return nil, errors.New("connection reset")
	}
	payable, _, err = IsRoutePayable(context.Background(), n, req)
	require.NoError(t, err)
	assert.False(t, payable)

	n = payableNode(bdb.UnknownPaymentHash)
	n.GetWalletInfoFunc = nil
	_, _, err = IsRoutePayable(context.Background(), n, req)
	assert.Equal(t, bdb.UnexpectedError, bdb.CodeOf(err))

	_, _, err = IsRoutePayable(context.Background(), n, &IsRoutePayableRequest{Channels: probeChannels, Mtokens: 1})
	assert.Equal(t, bdb.InvalidInput, bdb.CodeOf(err))
}
