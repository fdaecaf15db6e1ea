package emitter

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/the-lightning-land/splitpay/bdb"
)

type EvaluatingEvent struct {
	Tokens btcutil.Amount `json:"tokens"`
}

type ProbingEvent struct {
	Route *bdb.Route `json:"route"`
}

type RoutingSuccessEvent struct {
	Route *bdb.Route `json:"route"`
}

type PayingEvent struct {
	Route *bdb.Route `json:"route"`
}

type PaidEvent struct {
	Secret lntypes.Preimage `json:"secret"`
}

// FailureEvent signals that a flow ended without a result.
type FailureEvent struct{}
