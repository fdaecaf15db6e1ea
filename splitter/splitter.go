package splitter

import (
	"context"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/emitter"
	"github.com/the-lightning-land/splitpay/metrics"
	"github.com/the-lightning-land/splitpay/node"
	"time"
)

type Splitter struct {
	logger        Logger
	sessionLogger func(id string) Logger
	done          chan struct{}
	client        node.Lightning
	metrics       *metrics.Metrics
	defaults      Defaults
}

// Defaults fill in request fields left empty.
type Defaults struct {
	MaxPaths        int
	EvaluationDelay time.Duration
	Accuracy        btcutil.Amount
	MaxAttempts     int
	CltvDelta       uint32
	RetryDelay      time.Duration
}

type Config struct {
	Logger Logger
	// SessionLogger returns the logger for a single probe or payment.
	SessionLogger func(id string) Logger
	Client        node.Lightning
	Metrics       *metrics.Metrics
	Defaults      Defaults
}

func NewSplitter(config *Config) (*Splitter, error) {
	if config.Client == nil {
		return nil, errors.New("Expected lightning client")
	}

	splitter := &Splitter{
		done:     make(chan struct{}),
		client:   config.Client,
		metrics:  config.Metrics,
		defaults: config.Defaults,
	}

	if config.Logger != nil {
		splitter.logger = config.Logger
	} else {
		splitter.logger = noopLogger{}
	}

	splitter.sessionLogger = config.SessionLogger
	if splitter.sessionLogger == nil {
		splitter.sessionLogger = func(string) Logger { return splitter.logger }
	}

	return splitter, nil
}

func (s *Splitter) IdentityPubKey(ctx context.Context) (bdb.PubKey, error) {
	info, err := s.client.GetWalletInfo(ctx)
	if err != nil {
		return "", errors.Errorf("Could not get identity pubkey: %v", err)
	}

	return info.PublicKey, nil
}

func (s *Splitter) Run() error {
	<-s.done
	s.logger.Infof("Stopping splitter...")

	return nil
}

func (s *Splitter) Stop() {
	close(s.done)
}

// watch attaches session logging and metrics to a subscription before it
// starts.
func (s *Splitter) watch(e *emitter.Emitter, flow string) string {
	id := uuid.New().String()
	logger := s.sessionLogger(id)

	if s.metrics != nil {
		s.metrics.Watch(e, flow)
	}

	logger.Infof("Starting %v session", flow)

	e.On(emitter.Probing, func(data interface{}) {
		if probing, ok := data.(emitter.ProbingEvent); ok && probing.Route != nil {
			logger.Debugf("Probing route over %v hops", len(probing.Route.Hops))
		}
	})

	e.On(emitter.Evaluating, func(data interface{}) {
		if evaluating, ok := data.(emitter.EvaluatingEvent); ok {
			logger.Debugf("Evaluating %v", evaluating.Tokens)
		}
	})

	e.On(emitter.RoutingFailure, func(data interface{}) {
		if failure, ok := data.(*bdb.RoutingFailure); ok {
			logger.Debugf("Routing failure: %v", failure)
		}
	})

	e.On(emitter.Path, func(data interface{}) {
		if path, ok := data.(*bdb.Path); ok {
			logger.Infof("Found path over channels %v with liquidity of %v", path.Channels, path.Liquidity)
		}
	})

	e.On(emitter.Paying, func(data interface{}) {
		if paying, ok := data.(emitter.PayingEvent); ok && paying.Route != nil {
			logger.Infof("Paying %v over %v hops", paying.Route.Tokens, len(paying.Route.Hops))
		}
	})

	e.On(emitter.Paid, func(interface{}) {
		logger.Infof("Received preimage")
	})

	e.On(emitter.Success, func(interface{}) {
		logger.Infof("Finished %v session", flow)
	})

	e.On(emitter.Failure, func(interface{}) {
		logger.Warnf("Could not finish %v session", flow)
	})

	e.On(emitter.Error, func(data interface{}) {
		logger.Errorf("Failed %v session: %v", flow, data)
	})

	return id
}
