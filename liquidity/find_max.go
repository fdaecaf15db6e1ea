package liquidity

import (
	"context"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/emitter"
	"github.com/the-lightning-land/splitpay/graph"
	"github.com/the-lightning-land/splitpay/node"
	"github.com/the-lightning-land/splitpay/routing"
	"golang.org/x/time/rate"
	"math"
	"math/rand"
	"time"
)

const (
	DefaultAccuracy        = btcutil.Amount(50000)
	DefaultEvaluationDelay = time.Second

	// maxJitter is the most a probe amount is lowered by to make the
	// probed amounts less predictable.
	maxJitter = 20000
)

// jitterSource is swapped in tests.
var jitterSource = rand.Float64

func jitter(tokens btcutil.Amount) btcutil.Amount {
	jittered := tokens - btcutil.Amount(math.Round(jitterSource()*maxJitter))
	if jittered < 2 {
		return 2
	}

	return jittered
}

type FindMaxPayableRequest struct {
	CltvDelta uint32
	Hops      []*bdb.Hop
	Max       btcutil.Amount
	Request   string
	Routes    [][]*bdb.HintHop

	// Accuracy is the step below which the search stops refining.
	Accuracy btcutil.Amount
	// Delay separates consecutive probes.
	Delay time.Duration
	// ProbeTimeout bounds each probe.
	ProbeTimeout time.Duration
}

type MaxPayable struct {
	Maximum btcutil.Amount `json:"maximum"`
	Route   *bdb.Route     `json:"route"`
}

func (req *FindMaxPayableRequest) validate() error {
	if req.CltvDelta == 0 {
		return bdb.NewError(bdb.InvalidInput, "Expected final cltv delta to find max payable", nil)
	}

	if len(req.Hops) == 0 {
		return bdb.NewError(bdb.InvalidInput, "Expected hops to find max payable", nil)
	}

	for _, hop := range req.Hops {
		if hop == nil || hop.Channel == 0 || hop.PublicKey == "" {
			return bdb.NewError(bdb.InvalidInput, "Expected channel and public key for every hop", nil)
		}
	}

	if req.Max <= 0 {
		return bdb.NewError(bdb.InvalidInput, "Expected max tokens to find max payable", nil)
	}

	return nil
}

// FindMaxPayable measures the largest amount the hops can carry by
// bisecting with probes. Each bisection step is announced as an evaluating
// event on e.
func FindMaxPayable(ctx context.Context, n node.Lightning, req *FindMaxPayableRequest,
	e *emitter.Emitter) (*MaxPayable, error) {

	if n == nil {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected node to find max payable", nil)
	}

	if err := req.validate(); err != nil {
		return nil, err
	}

	return findMaxPayable(ctx, n, req, e)
}

func findMaxPayable(ctx context.Context, n node.Lightning, req *FindMaxPayableRequest,
	e *emitter.Emitter) (*MaxPayable, error) {

	accuracy := req.Accuracy
	if accuracy <= 0 {
		accuracy = DefaultAccuracy
	}

	delay := req.Delay
	if delay <= 0 {
		delay = DefaultEvaluationDelay
	}

	hints, err := routing.ChannelsFromHints(ctx, n, req.Request, req.Routes)
	if err != nil {
		return nil, err
	}

	channels, err := graph.GetPoliciesForChannels(ctx, n, hints, req.Hops)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Every(delay), 1)

	probe := func(tokens btcutil.Amount) (bool, *bdb.Route, error) {
		if err := limiter.Wait(ctx); err != nil {
			return false, nil, err
		}

		return routing.IsRoutePayable(ctx, n, &routing.IsRoutePayableRequest{
			Channels:  channels,
			CltvDelta: req.CltvDelta,
			Mtokens:   lnwire.NewMSatFromSatoshis(tokens),
			Timeout:   req.ProbeTimeout,
		})
	}

	minimal := jitter(accuracy)

	payable, route, err := probe(minimal)
	if err != nil {
		return nil, err
	}

	if !payable {
		return &MaxPayable{}, nil
	}

	_, routeMax := graph.MaxHtlcAcrossRoute(channels)

	upper := req.Max
	if routeMax < upper {
		upper = routeMax
	}

	limit := jitter(upper)

	best := &MaxPayable{}
	low, high := btcutil.Amount(1), limit
	if minimal <= limit {
		best = &MaxPayable{Maximum: minimal, Route: route}
		low = minimal
	}

	for high-low > accuracy {
		cursor := low + (high-low)/2

		e.Emit(emitter.Evaluating, emitter.EvaluatingEvent{Tokens: cursor})

		payable, route, err := probe(cursor)
		if err != nil {
			return nil, err
		}

		if !payable {
			high = cursor
			continue
		}

		low = cursor
		if cursor > best.Maximum {
			best = &MaxPayable{Maximum: cursor, Route: route}
		}
	}

	if best.Maximum == 0 {
		return best, nil
	}

	refreshed, err := graph.GetPoliciesForChannels(ctx, n, hints, req.Hops)
	if err != nil {
		return nil, err
	}

	if err := checkFeeConsistency(channels, refreshed); err != nil {
		return nil, err
	}

	return best, nil
}

// checkFeeConsistency fails when a channel changed its base fee or raised
// its fee rate between the two snapshots.
func checkFeeConsistency(before, after []*bdb.Channel) error {
	for i, channel := range after {
		if i >= len(before) {
			break
		}

		for _, policy := range channel.Policies {
			prior := before[i].Policy(policy.PublicKey)
			if prior == nil {
				continue
			}

			if policy.BaseFeeMtokens != prior.BaseFeeMtokens || policy.FeeRate > prior.FeeRate {
				return bdb.NewError(bdb.FeeIncreasedOnChannel, "Fee increased on channel while probing", map[string]interface{}{
					"id": channel.Id,
				})
			}
		}
	}

	return nil
}

// SubscribeToFindMaxPayable runs FindMaxPayable as a subscription ending in
// success with the maximum, failure when nothing is payable, or error.
func SubscribeToFindMaxPayable(n node.Lightning, req *FindMaxPayableRequest) (*emitter.Subscription, error) {
	if n == nil {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected node to find max payable", nil)
	}

	if err := req.validate(); err != nil {
		return nil, err
	}

	return emitter.NewSubscription(func(ctx context.Context, e *emitter.Emitter) {
		res, err := findMaxPayable(ctx, n, req, e)
		switch {
		case err != nil:
			e.Fail(err)
		case res.Maximum == 0:
			e.Emit(emitter.Failure, emitter.FailureEvent{})
		default:
			e.Emit(emitter.Success, res)
		}
	}), nil
}
