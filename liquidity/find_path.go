package liquidity

import (
	"context"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/emitter"
	"github.com/the-lightning-land/splitpay/node"
	"time"
)

// DefaultFloorMtokens is the smallest amount a path has to carry to be
// worth finding.
const DefaultFloorMtokens = lnwire.MilliSatoshi(1e5 * 1e3)

type FindPathRequest struct {
	AllowStacking   []bdb.IgnorePair
	CltvDelta       uint32
	Destination     bdb.PubKey
	Ignore          []bdb.IgnorePair
	IncomingPeer    bdb.PubKey
	MaxTimeout      uint32
	Mtokens         lnwire.MilliSatoshi
	OutgoingChannel bdb.ChanId
	PathTimeout     time.Duration
	ProbeTimeout    time.Duration
	Probes          []*bdb.Path
	PublicKey       bdb.PubKey
	Request         string
	Routes          [][]*bdb.HintHop

	Accuracy        btcutil.Amount
	EvaluationDelay time.Duration
}

func (req *FindPathRequest) validate() error {
	if req.CltvDelta == 0 {
		return bdb.NewError(bdb.InvalidInput, "Expected final cltv delta to find path", nil)
	}

	if req.Destination == "" {
		return bdb.NewError(bdb.InvalidInput, "Expected destination to find path to", nil)
	}

	if req.PublicKey == "" {
		return bdb.NewError(bdb.InvalidInput, "Expected public key of the node to find path from", nil)
	}

	return nil
}

// SubscribeToFindPath searches one more path to the destination that does
// not overlap the liquidity of the given probes and measures its capacity.
// It ends in success with the path, failure when no path is left, or error.
func SubscribeToFindPath(n node.Lightning, req *FindPathRequest) (*emitter.Subscription, error) {
	if n == nil {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected node to find path", nil)
	}

	if err := req.validate(); err != nil {
		return nil, err
	}

	return emitter.NewSubscription(func(ctx context.Context, e *emitter.Emitter) {
		path, err := findPath(ctx, n, req, e)
		switch {
		case err != nil:
			e.Fail(err)
		case path == nil:
			e.Emit(emitter.Failure, emitter.FailureEvent{})
		default:
			e.Emit(emitter.Success, path)
		}
	}), nil
}

func findPath(ctx context.Context, n node.Lightning, req *FindPathRequest, e *emitter.Emitter) (*bdb.Path, error) {
	mtokens := req.Mtokens
	if mtokens == 0 {
		mtokens = DefaultFloorMtokens
	}

	channels, err := n.GetChannels(ctx, &node.GetChannelsRequest{})
	if err != nil {
		return nil, bdb.WrapError(bdb.UnexpectedError, "Could not get channels", err)
	}

	if len(channels) == 0 {
		return nil, nil
	}

	var probes []*bdb.Path
	for _, probe := range req.Probes {
		if len(probe.Relays) > 0 {
			probes = append(probes, probe)
		}
	}

	ignore, err := MultiProbeIgnores(&MultiProbeIgnoresRequest{
		Channels: channels,
		From:     req.PublicKey,
		Ignore:   req.Ignore,
		Mtokens:  mtokens,
		Probes:   probes,
		Routes:   req.Routes,
		Allow:    req.AllowStacking,
	})
	if err != nil {
		return nil, err
	}

	route, err := n.ProbeForRoute(ctx, &node.ProbeForRouteRequest{
		CltvDelta:       req.CltvDelta,
		Destination:     req.Destination,
		Mtokens:         mtokens,
		Ignore:          ignore,
		IncomingPeer:    req.IncomingPeer,
		OutgoingChannel: req.OutgoingChannel,
		MaxTimeout:      req.MaxTimeout,
		Routes:          req.Routes,
		PathTimeout:     req.PathTimeout,
		ProbeTimeout:    req.ProbeTimeout,
	}, &node.ProbeHandlers{
		OnProbing: func(route *bdb.Route) {
			e.Emit(emitter.Probing, emitter.ProbingEvent{Route: route})
		},
		OnRoutingFailure: func(failure *bdb.RoutingFailure) {
			e.Emit(emitter.RoutingFailure, failure)
		},
	})
	if err != nil {
		return nil, bdb.WrapError(bdb.UnexpectedError, "Could not probe for route", err)
	}

	if route == nil || len(route.Hops) == 0 {
		return nil, nil
	}

	e.Emit(emitter.RoutingSuccess, emitter.RoutingSuccessEvent{Route: route})

	hops := make([]*bdb.Hop, len(route.Hops))
	relays := make([]bdb.PubKey, len(route.Hops))
	for i, hop := range route.Hops {
		hops[i] = &bdb.Hop{Channel: hop.Channel, PublicKey: hop.PublicKey}
		relays[i] = hop.PublicKey
	}

	maxHops, max := HopsForFindMaxPath(channels, hops, req.Probes)
	if maxHops == nil {
		return nil, nil
	}

	res, err := findMaxPayable(ctx, n, &FindMaxPayableRequest{
		CltvDelta:    req.CltvDelta,
		Hops:         maxHops,
		Max:          max,
		Request:      req.Request,
		Routes:       req.Routes,
		Accuracy:     req.Accuracy,
		Delay:        req.EvaluationDelay,
		ProbeTimeout: req.ProbeTimeout,
	}, e)
	if err != nil {
		return nil, err
	}

	if res.Maximum == 0 || res.Route == nil {
		return nil, nil
	}

	channelIds := make([]bdb.ChanId, len(maxHops))
	for i, hop := range maxHops {
		channelIds[i] = hop.Channel
	}

	return &bdb.Path{
		Channels:   channelIds,
		Relays:     relays,
		Fee:        res.Route.Fee,
		FeeMtokens: res.Route.FeeMtokens,
		Liquidity:  res.Maximum,
	}, nil
}
