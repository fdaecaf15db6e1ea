package payments

import (
	"context"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/jpillora/backoff"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/emitter"
	"github.com/the-lightning-land/splitpay/node"
	"golang.org/x/sync/errgroup"
	"sync"
	"time"
)

const (
	DefaultCltvDelta   = 144
	DefaultMaxAttempts = 10

	defaultMaxRetryDelay = time.Minute
)

type MultiPathPayRequest struct {
	CltvDelta   uint32
	Destination bdb.PubKey
	Id          lntypes.Hash
	MaxFee      btcutil.Amount
	MaxTimeout  uint32
	Messages    []*bdb.Message
	Mtokens     lnwire.MilliSatoshi
	Paths       []*bdb.Path
	PaymentAddr []byte
	Routes      [][]*bdb.HintHop

	// MaxAttempts bounds the number of payment rounds.
	MaxAttempts int
	// RetryDelay is the initial pause between rounds, doubling up to
	// MaxRetryDelay. Zero retries immediately.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

type MultiPathPaySuccess struct {
	Routes []*bdb.PaymentSuccess `json:"routes"`
}

func (req *MultiPathPayRequest) validate() error {
	switch {
	case req.Destination == "":
		return bdb.NewError(bdb.InvalidInput, "Expected destination to pay", nil)
	case req.Id == lntypes.ZeroHash:
		return bdb.NewError(bdb.InvalidInput, "Expected payment hash to pay", nil)
	case req.Mtokens == 0:
		return bdb.NewError(bdb.InvalidInput, "Expected mtokens to pay", nil)
	case req.Paths == nil:
		return bdb.NewError(bdb.InvalidInput, "Expected paths to pay through", nil)
	case len(req.PaymentAddr) == 0:
		return bdb.NewError(bdb.InvalidInput, "Expected payment identifier to pay", nil)
	case req.MaxFee < 0:
		return bdb.NewError(bdb.InvalidInput, "Expected non-negative max fee", nil)
	}

	for _, path := range req.Paths {
		if path == nil || len(path.Channels) == 0 || len(path.Channels) != len(path.Relays) {
			return bdb.NewError(bdb.InvalidInput, "Expected a relay for every channel of every path", nil)
		}
	}

	return nil
}

// SubscribeToMultiPathPay splits the payment across the paths and pays the
// shards concurrently. Failed rounds are retried over the paths that have
// not failed yet.
func SubscribeToMultiPathPay(n node.Lightning, req *MultiPathPayRequest) (*emitter.Subscription, error) {
	if n == nil {
		return nil, bdb.NewError(bdb.InvalidInput, "Expected node to pay", nil)
	}

	if err := req.validate(); err != nil {
		return nil, err
	}

	return emitter.NewSubscription(func(ctx context.Context, e *emitter.Emitter) {
		newPaySession(n, req, e).run(ctx)
	}), nil
}

type roundOutcome int

const (
	roundDelivered roundOutcome = iota
	roundRetry
	roundExhausted
)

type shardOutcome int

const (
	shardFailed shardOutcome = iota
	shardSettled
	shardRoutingFailure
	shardTimeout
	shardRejected
)

// shardPlan is one shard of a round with the route carrying it.
type shardPlan struct {
	shard *bdb.Shard
	path  *bdb.Path
	route *bdb.Route
	fee   lnwire.MilliSatoshi
}

// paySession is the state of one multi-path payment across rounds.
type paySession struct {
	n   node.Lightning
	req *MultiPathPayRequest
	e   *emitter.Emitter

	mu        sync.Mutex
	ignored   map[*bdb.Path]bool
	used      map[*bdb.Path]lnwire.MilliSatoshi
	settled   []*bdb.PaymentSuccess
	delivered lnwire.MilliSatoshi
	fees      lnwire.MilliSatoshi
}

func newPaySession(n node.Lightning, req *MultiPathPayRequest, e *emitter.Emitter) *paySession {
	return &paySession{
		n:       n,
		req:     req,
		e:       e,
		ignored: make(map[*bdb.Path]bool),
		used:    make(map[*bdb.Path]lnwire.MilliSatoshi),
	}
}

func (s *paySession) run(ctx context.Context) {
	attempts := s.req.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	maxDelay := s.req.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxRetryDelay
	}

	b := &backoff.Backoff{Min: s.req.RetryDelay, Max: maxDelay, Factor: 2, Jitter: true}

	for attempt := 1; ; attempt++ {
		outcome, err := s.round(ctx)
		if err != nil {
			s.e.Fail(err)
			return
		}

		if outcome == roundDelivered {
			s.e.Emit(emitter.Success, MultiPathPaySuccess{Routes: s.settledShards()})
			return
		}

		if outcome == roundExhausted || attempt >= attempts {
			break
		}

		if s.req.RetryDelay > 0 {
			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				s.e.Fail(ctx.Err())
				return
			}
		}
	}

	settled := s.settledShards()
	if len(settled) == 0 {
		s.e.Emit(emitter.Failure, emitter.FailureEvent{})
		return
	}

	s.e.Fail(bdb.NewError(bdb.RoutingFailureAttemptingMultiPathPayment, "Could not deliver the full amount", map[string]interface{}{
		"delivered": s.deliveredMtokens(),
	}))
}

func (s *paySession) round(ctx context.Context) (roundOutcome, error) {
	if err := ctx.Err(); err != nil {
		return roundRetry, err
	}

	outstanding := s.req.Mtokens - s.deliveredMtokens()

	var toPay []*bdb.Path
	var liquidity lnwire.MilliSatoshi
	for _, path := range SortMultiplePaymentPaths(s.req.Paths) {
		remaining := s.remainingLiquidity(path)
		if remaining == 0 {
			continue
		}

		toPay = append(toPay, path)
		liquidity += remaining
	}

	if outstanding > liquidity {
		if s.ignoredCount() > 0 || s.deliveredMtokens() > 0 {
			return roundExhausted, nil
		}

		return roundRetry, bdb.NewError(bdb.ExceededMaximumPathsLiquidity, "Payment exceeds the liquidity of the paths", map[string]interface{}{
			"maximum": liquidity.ToSatoshis(),
		})
	}

	var plans []*shardPlan
	var paying []*bdb.Shard
	for i, path := range toPay {
		mtokens := MtokensForMultiPathPayment(nil, s.remainingLiquidity(path), paying, outstanding)
		if mtokens == 0 {
			continue
		}

		shard := &bdb.Shard{Index: i, Mtokens: mtokens}
		paying = append(paying, shard)
		plans = append(plans, &shardPlan{shard: shard, path: path})
	}

	if len(plans) == 0 {
		return roundExhausted, nil
	}

	if err := s.routeShards(ctx, plans); err != nil {
		return roundRetry, err
	}

	if err := s.checkLimits(plans); err != nil {
		return roundRetry, err
	}

	outcomes := make([]shardOutcome, len(plans))

	var g errgroup.Group
	for i, plan := range plans {
		i, plan := i, plan

		g.Go(func() error {
			outcomes[i] = s.pay(ctx, plan)
			return nil
		})
	}
	_ = g.Wait()

	for _, outcome := range outcomes {
		switch outcome {
		case shardTimeout:
			return roundRetry, bdb.NewError(bdb.MultiPathPaymentTimeoutFailure, "Destination timed out waiting for all shards", nil)
		case shardRejected:
			return roundRetry, bdb.NewError(bdb.PaymentRejectedByDestination, "Destination rejected the payment", nil)
		}
	}

	if s.deliveredMtokens() >= s.req.Mtokens {
		return roundDelivered, nil
	}

	return roundRetry, nil
}

func (s *paySession) routeShards(ctx context.Context, plans []*shardPlan) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, plan := range plans {
		plan := plan

		g.Go(func() error {
			route, err := GetRouteForPayment(ctx, s.n, &RouteForPaymentRequest{
				CltvDelta:    s.cltvDelta(),
				Destination:  s.req.Destination,
				Messages:     s.req.Messages,
				Mtokens:      plan.shard.Mtokens,
				Path:         plan.path,
				PaymentAddr:  s.req.PaymentAddr,
				Routes:       s.req.Routes,
				TotalMtokens: s.req.Mtokens,
			})
			if err != nil {
				return err
			}

			plan.route = route

			return nil
		})
	}

	return g.Wait()
}

// checkLimits verifies the round against the timeout and fee ceilings
// before anything is sent. A shard costs the fee of its assembled route.
func (s *paySession) checkLimits(plans []*shardPlan) error {
	s.mu.Lock()
	required := s.fees
	s.mu.Unlock()

	for _, plan := range plans {
		if s.req.MaxTimeout > 0 && plan.route.Timeout > s.req.MaxTimeout {
			return bdb.NewError(bdb.ExceededMaxCltvLimit, "Route timeout exceeds the max timeout", map[string]interface{}{
				"timeout": plan.route.Timeout,
			})
		}

		plan.fee = plan.route.FeeMtokens

		required += plan.fee
	}

	if required > lnwire.NewMSatFromSatoshis(s.req.MaxFee) {
		return bdb.NewError(bdb.ExceededMaxFeeLimit, "Fees exceed the max fee", map[string]interface{}{
			"required":         required.ToSatoshis(),
			"required_mtokens": required,
		})
	}

	return nil
}

func (s *paySession) pay(ctx context.Context, plan *shardPlan) shardOutcome {
	s.e.Emit(emitter.Paying, emitter.PayingEvent{Route: plan.route})

	res, err := s.n.PayViaRoute(ctx, &node.PayViaRouteRequest{Id: s.req.Id, Route: plan.route})
	if err != nil {
		return shardFailed
	}

	if res.Secret != nil {
		s.settle(plan, *res.Secret)
		return shardSettled
	}

	if res.Failure == nil {
		return shardFailed
	}

	switch res.Failure.Reason {
	case bdb.MppTimeout:
		return shardTimeout
	case bdb.UnknownPaymentHash:
		return shardRejected
	}

	s.mu.Lock()
	s.ignored[plan.path] = true
	s.mu.Unlock()

	s.e.Emit(emitter.RoutingFailure, res.Failure)

	return shardRoutingFailure
}

func (s *paySession) settle(plan *shardPlan, secret lntypes.Preimage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	first := len(s.settled) == 0

	success := &bdb.PaymentSuccess{
		Id:         s.req.Id,
		Secret:     secret,
		Route:      plan.route,
		Fee:        plan.route.Fee,
		FeeMtokens: plan.route.FeeMtokens,
		Mtokens:    plan.route.Mtokens,
		Tokens:     plan.route.Tokens,
	}

	s.settled = append(s.settled, success)
	s.delivered += plan.shard.Mtokens
	s.used[plan.path] += plan.shard.Mtokens
	s.fees += plan.fee

	if first {
		s.e.Emit(emitter.Paid, emitter.PaidEvent{Secret: secret})
	}

	s.e.Emit(emitter.PathSuccess, success)
}

func (s *paySession) cltvDelta() uint32 {
	if s.req.CltvDelta == 0 {
		return DefaultCltvDelta
	}

	return s.req.CltvDelta
}

// remainingLiquidity is what a path can still carry after the shards
// already settled over it. Failed paths have none.
func (s *paySession) remainingLiquidity(path *bdb.Path) lnwire.MilliSatoshi {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ignored[path] {
		return 0
	}

	liquidity := lnwire.NewMSatFromSatoshis(path.Liquidity)
	if s.used[path] >= liquidity {
		return 0
	}

	return liquidity - s.used[path]
}

func (s *paySession) ignoredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ignored)
}

func (s *paySession) deliveredMtokens() lnwire.MilliSatoshi {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.delivered
}

func (s *paySession) settledShards() []*bdb.PaymentSuccess {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*bdb.PaymentSuccess(nil), s.settled...)
}
