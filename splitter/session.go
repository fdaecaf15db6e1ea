package splitter

import (
	"context"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/emitter"
	"github.com/the-lightning-land/splitpay/liquidity"
	"github.com/the-lightning-land/splitpay/metrics"
	"github.com/the-lightning-land/splitpay/payments"
	"time"
)

// Session is a running probe or payment identified by Id.
type Session struct {
	*emitter.Subscription

	Id string
}

type ProbeRequest struct {
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
}

type PayRequest struct {
	CltvDelta   uint32
	Destination bdb.PubKey
	Id          lntypes.Hash
	MaxFee      btcutil.Amount
	MaxPaths    int
	MaxTimeout  uint32
	Messages    []*bdb.Message
	Mtokens     lnwire.MilliSatoshi
	Paths       []*bdb.Path
	PaymentAddr []byte
	Request     string
	Routes      [][]*bdb.HintHop
}

func (s *Splitter) probeRequest(req *ProbeRequest) *liquidity.MultiPathProbeRequest {
	maxPaths := req.MaxPaths
	if maxPaths == 0 {
		maxPaths = s.defaults.MaxPaths
	}

	return &liquidity.MultiPathProbeRequest{
		AllowStacking:   req.AllowStacking,
		CltvDelta:       req.CltvDelta,
		Destination:     req.Destination,
		Ignore:          req.Ignore,
		IncomingPeer:    req.IncomingPeer,
		MaxPaths:        maxPaths,
		MaxTimeout:      req.MaxTimeout,
		Mtokens:         req.Mtokens,
		OutgoingChannel: req.OutgoingChannel,
		PathTimeout:     req.PathTimeout,
		ProbeTimeout:    req.ProbeTimeout,
		Request:         req.Request,
		Routes:          req.Routes,
		Accuracy:        s.defaults.Accuracy,
		EvaluationDelay: s.defaults.EvaluationDelay,
	}
}

// Probe discovers the paths to a destination and their liquidity.
func (s *Splitter) Probe(req *ProbeRequest) *Session {
	sub, err := liquidity.SubscribeToMultiPathProbe(s.client, s.probeRequest(req))
	if err != nil {
		sub = emitter.Failed(err)
	}

	return &Session{Subscription: sub, Id: s.watch(sub.Emitter, metrics.FlowProbe)}
}

// Pay pays over the given paths. Without paths they are discovered first,
// with every event of the discovery relayed on the same session.
func (s *Splitter) Pay(req *PayRequest) *Session {
	sub := emitter.NewSubscription(func(ctx context.Context, e *emitter.Emitter) {
		s.pay(ctx, req, e)
	})

	return &Session{Subscription: sub, Id: s.watch(sub.Emitter, metrics.FlowPay)}
}

func (s *Splitter) pay(ctx context.Context, req *PayRequest, e *emitter.Emitter) {
	payReq, err := s.payRequest(ctx, req)
	if err != nil {
		e.Fail(err)
		return
	}

	if err := validatePayment(payReq); err != nil {
		e.Fail(err)
		return
	}

	if len(payReq.Paths) == 0 {
		// Probe with at most the payment amount so smaller paths still count
		floor := liquidity.DefaultFloorMtokens
		if payReq.Mtokens < floor {
			floor = payReq.Mtokens
		}

		probeReq := s.probeRequest(&ProbeRequest{
			CltvDelta:   payReq.CltvDelta,
			Destination: payReq.Destination,
			MaxPaths:    req.MaxPaths,
			MaxTimeout:  payReq.MaxTimeout,
			Mtokens:     floor,
			Routes:      payReq.Routes,
		})

		paths, err := liquidity.MultiPathProbe(ctx, s.client, probeReq, e)
		if err != nil {
			e.Fail(err)
			return
		}

		if len(paths) == 0 {
			e.Emit(emitter.Failure, emitter.FailureEvent{})
			return
		}

		payReq.Paths = paths
	}

	paySub, err := payments.SubscribeToMultiPathPay(s.client, payReq)
	if err != nil {
		e.Fail(err)
		return
	}

	paySub.Relay(e, emitter.Paying, emitter.RoutingFailure, emitter.Paid, emitter.PathSuccess,
		emitter.Success, emitter.Failure, emitter.Error)

	paySub.Start(ctx).Wait()
}

// payRequest completes the payment from the payment request, if any.
// Explicit fields take precedence over decoded ones.
func (s *Splitter) payRequest(ctx context.Context, req *PayRequest) (*payments.MultiPathPayRequest, error) {
	payReq := &payments.MultiPathPayRequest{
		CltvDelta:   req.CltvDelta,
		Destination: req.Destination,
		Id:          req.Id,
		MaxFee:      req.MaxFee,
		MaxTimeout:  req.MaxTimeout,
		Messages:    req.Messages,
		Mtokens:     req.Mtokens,
		Paths:       req.Paths,
		PaymentAddr: req.PaymentAddr,
		Routes:      req.Routes,
		MaxAttempts: s.defaults.MaxAttempts,
		RetryDelay:  s.defaults.RetryDelay,
	}

	if req.Request != "" {
		decoded, err := s.client.ParsePaymentRequest(ctx, req.Request)
		if err != nil {
			return nil, bdb.WrapError(bdb.InvalidInput, "Could not parse payment request", err)
		}

		if payReq.Destination == "" {
			payReq.Destination = decoded.Destination
		}
		if payReq.Id == lntypes.ZeroHash {
			payReq.Id = decoded.Id
		}
		if payReq.Mtokens == 0 {
			payReq.Mtokens = decoded.Mtokens
		}
		if payReq.CltvDelta == 0 {
			payReq.CltvDelta = decoded.CltvDelta
		}
		if len(payReq.PaymentAddr) == 0 {
			payReq.PaymentAddr = decoded.PaymentAddr
		}
		if payReq.Routes == nil {
			payReq.Routes = decoded.Routes
		}
	}

	if payReq.CltvDelta == 0 {
		payReq.CltvDelta = s.defaults.CltvDelta
	}
	if payReq.CltvDelta == 0 {
		payReq.CltvDelta = payments.DefaultCltvDelta
	}

	return payReq, nil
}

// validatePayment rejects payments that could never be made before any
// probing starts.
func validatePayment(req *payments.MultiPathPayRequest) error {
	switch {
	case req.Destination == "":
		return bdb.NewError(bdb.InvalidInput, "Expected destination or request to pay", nil)
	case req.Id == lntypes.ZeroHash:
		return bdb.NewError(bdb.InvalidInput, "Expected payment hash to pay", nil)
	case req.Mtokens == 0:
		return bdb.NewError(bdb.InvalidInput, "Expected mtokens to pay", nil)
	case len(req.PaymentAddr) == 0:
		return bdb.NewError(bdb.InvalidInput, "Expected payment identifier to pay", nil)
	}

	return nil
}
