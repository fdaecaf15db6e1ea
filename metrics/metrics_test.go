package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/emitter"
	"testing"
)

func TestWatchProbe(t *testing.T) {
	m := New(prometheus.NewRegistry())

	e := emitter.New()
	m.Watch(e, FlowProbe)

	e.Emit(emitter.Probing, nil)
	e.Emit(emitter.Evaluating, emitter.EvaluatingEvent{Tokens: 10})
	e.Emit(emitter.Evaluating, emitter.EvaluatingEvent{Tokens: 5})
	e.Emit(emitter.RoutingFailure, &bdb.RoutingFailure{Reason: bdb.TemporaryChannelFailure})
	e.Emit(emitter.Path, &bdb.Path{})
	e.Emit(emitter.Success, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RoutesProbed))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ProbesEvaluated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PathsFound))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RoutingFailures.WithLabelValues(FlowProbe, bdb.TemporaryChannelFailure)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Sessions.WithLabelValues(FlowProbe, "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SessionDuration))
}

func TestWatchPay(t *testing.T) {
	m := New(prometheus.NewRegistry())

	e := emitter.New()
	m.Watch(e, FlowPay)

	e.Emit(emitter.Paying, nil)
	e.Emit(emitter.Paying, nil)
	e.Emit(emitter.RoutingFailure, "not a failure")
	e.Emit(emitter.Paid, nil)
	e.Emit(emitter.PathSuccess, nil)
	e.Fail(bdb.NewError(bdb.RoutingFailureAttemptingMultiPathPayment, "partial", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ShardsAttempted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ShardsSettled))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PaymentsPaid))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RoutingFailures.WithLabelValues(FlowPay, bdb.UnknownFailure)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Sessions.WithLabelValues(FlowPay, "error")))
}
