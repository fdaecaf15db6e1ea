package bdb

import (
	"fmt"
	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/lnwire"
)

type ErrorCode string

const (
	InvalidInput                             ErrorCode = "InvalidInput"
	UnexpectedError                          ErrorCode = "UnexpectedError"
	UnexpectedErrorCode                      ErrorCode = "UnexpectedErrorCode"
	RouteConstructionError                   ErrorCode = "RouteConstructionError"
	FeeIncreasedOnChannel                    ErrorCode = "FeeIncreasedOnChannel"
	ExceededMaxFeeLimit                      ErrorCode = "ExceededMaxFeeLimit"
	ExceededMaxCltvLimit                     ErrorCode = "ExceededMaxCltvLimit"
	ExceededMaximumPathsLiquidity            ErrorCode = "ExceededMaximumPathsLiquidity"
	MultiPathPaymentTimeoutFailure           ErrorCode = "MultiPathPaymentTimeoutFailure"
	PaymentRejectedByDestination             ErrorCode = "PaymentRejectedByDestination"
	RoutingFailureAttemptingMultiPathPayment ErrorCode = "RoutingFailureAttemptingMultiPathPayment"
)

// Error is the error type surfaced by probing and payment sessions.
type Error struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
	Err     error                  `json:"-"`
}

func NewError(code ErrorCode, message string, context map[string]interface{}) *Error {
	return &Error{Code: code, Message: message, Context: context}
}

// WrapError attaches an upstream error to a coded error.
func WrapError(code ErrorCode, message string, err error) *Error {
	e := &Error{Code: code, Message: message}
	if err != nil {
		e.Err = errors.Wrap(err, 1)
	}

	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("%s: %s %v", e.Code, e.Message, e.Context)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in the chain of err.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ""
}

// Failure reasons reported by nodes along a route.
const (
	UnknownPaymentHash      = "UnknownPaymentHash"
	IncorrectPaymentAmount  = "IncorrectPaymentAmount"
	IncorrectCltvExpiry     = "IncorrectCltvExpiry"
	FinalExpiryTooSoon      = "FinalExpiryTooSoon"
	FinalIncorrectCltv      = "FinalIncorrectCltvExpiry"
	FinalIncorrectAmount    = "FinalIncorrectHtlcAmount"
	ExpiryTooSoon           = "ExpiryTooSoon"
	ExpiryTooFar            = "ExpiryTooFar"
	AmountBelowMinimum      = "AmountBelowMinimum"
	FeeInsufficient         = "FeeInsufficient"
	ChannelDisabled         = "ChannelDisabled"
	TemporaryChannelFailure = "TemporaryChannelFailure"
	PermanentChannelFailure = "PermanentChannelFailure"
	TemporaryNodeFailure    = "TemporaryNodeFailure"
	PermanentNodeFailure    = "PermanentNodeFailure"
	UnknownNextPeer         = "UnknownNextPeer"
	MppTimeout              = "MppTimeout"
	InvalidOnionPayload     = "InvalidOnionPayload"
	UnknownFailure          = "UnknownFailure"
)

// RoutingFailure is a failure report for an attempted route. It is data,
// not an error: callers decide whether it is fatal.
type RoutingFailure struct {
	Reason    string              `json:"reason"`
	Index     int                 `json:"index"`
	Channel   ChanId              `json:"channel,omitempty"`
	Mtokens   lnwire.MilliSatoshi `json:"mtokens,omitempty"`
	PublicKey PubKey              `json:"public_key,omitempty"`
	Policy    *Policy             `json:"policy,omitempty"`
	Route     *Route              `json:"route,omitempty"`
}

func (f *RoutingFailure) String() string {
	if f.Channel != 0 {
		return fmt.Sprintf("%s at hop %d (channel %v)", f.Reason, f.Index, f.Channel)
	}

	return fmt.Sprintf("%s at hop %d", f.Reason, f.Index)
}
