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

const DefaultMaxPaths = 5

type MultiPathProbeRequest struct {
	AllowStacking   []bdb.IgnorePair
	CltvDelta       uint32
	Destination     bdb.PubKey
	Ignore          []bdb.IgnorePair
	IncomingPeer    bdb.PubKey
	MaxPaths        int
	MaxTimeout      uint32
	Mtokens         lnwire.MilliSatoshi
	OutgoingChannel bdb.ChanId
	PathTimeout     time.Duration
	ProbeTimeout    time.Duration
	Request         string
	Routes          [][]*bdb.HintHop

	Accuracy        btcutil.Amount
	EvaluationDelay time.Duration
}

type MultiPathProbeSuccess struct {
	Paths []*bdb.Path `json:"paths"`
}

// SubscribeToMultiPathProbe finds up to MaxPaths non-overlapping paths to
// the destination, one after the other. Every found path is announced with
// a path event before the final success.
func SubscribeToMultiPathProbe(n node.Lightning, req *MultiPathProbeRequest) (*emitter.Subscription, error) {
	if n == nil {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected node to probe multiple paths", nil)
	}

	if req.Destination == "" && req.Request == "" {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected destination or request to probe multiple paths", nil)
	}

	if req.CltvDelta == 0 && req.Request == "" {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected final cltv delta to probe multiple paths", nil)
	}

	return emitter.NewSubscription(func(ctx context.Context, e *emitter.Emitter) {
		paths, err := MultiPathProbe(ctx, n, req, e)
		switch {
		case err != nil:
			e.Fail(err)
		case len(paths) == 0:
			e.Emit(emitter.Failure, emitter.FailureEvent{})
		default:
			e.Emit(emitter.Success, MultiPathProbeSuccess{Paths: paths})
		}
	}), nil
}

// MultiPathProbe runs the path searches reporting progress on e and returns
// the paths found.
func MultiPathProbe(ctx context.Context, n node.Lightning, req *MultiPathProbeRequest,
	e *emitter.Emitter) ([]*bdb.Path, error) {

	destination, cltvDelta, routes := req.Destination, req.CltvDelta, req.Routes

	if req.Request != "" && (destination == "" || cltvDelta == 0) {
		decoded, err := n.ParsePaymentRequest(ctx, req.Request)
		if err != nil {
			return nil, bdb.WrapError(bdb.InvalidInput, "Could not parse payment request", err)
		}

		if destination == "" {
			destination = decoded.Destination
		}
		if cltvDelta == 0 {
			cltvDelta = decoded.CltvDelta
		}
		if routes == nil {
			routes = decoded.Routes
		}
	}

	maxPaths := req.MaxPaths
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}

	info, err := n.GetWalletInfo(ctx)
	if err != nil {
		return nil, bdb.WrapError(bdb.UnexpectedError, "Could not get wallet info", err)
	}

	var paths []*bdb.Path
	for len(paths) < maxPaths {
		findReq := &FindPathRequest{
			AllowStacking:   req.AllowStacking,
			CltvDelta:       cltvDelta,
			Destination:     destination,
			Ignore:          req.Ignore,
			IncomingPeer:    req.IncomingPeer,
			MaxTimeout:      req.MaxTimeout,
			Mtokens:         req.Mtokens,
			OutgoingChannel: req.OutgoingChannel,
			PathTimeout:     req.PathTimeout,
			ProbeTimeout:    req.ProbeTimeout,
			Probes:          paths,
			PublicKey:       info.PublicKey,
			Request:         req.Request,
			Routes:          routes,
			Accuracy:        req.Accuracy,
			EvaluationDelay: req.EvaluationDelay,
		}
		if err := findReq.validate(); err != nil {
			return nil, err
		}

		path, err := findPath(ctx, n, findReq, e)
		if err != nil {
			return nil, err
		}

		if path == nil {
			break
		}

		paths = append(paths, path)
		e.Emit(emitter.Path, path)
	}

	return paths, nil
}
