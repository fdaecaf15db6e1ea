package bdb

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/lntypes"
)

// Shard is the part of a multi-path payment assigned to one path.
type Shard struct {
	Index   int                 `json:"index"`
	Mtokens lnwire.MilliSatoshi `json:"mtokens"`
}

// PaymentSuccess describes a settled shard.
type PaymentSuccess struct {
	Id         lntypes.Hash        `json:"id"`
	Secret     lntypes.Preimage    `json:"secret"`
	Route      *Route              `json:"route"`
	Fee        btcutil.Amount      `json:"fee"`
	FeeMtokens lnwire.MilliSatoshi `json:"fee_mtokens"`
	Mtokens    lnwire.MilliSatoshi `json:"mtokens"`
	Tokens     btcutil.Amount      `json:"tokens"`
}

// PaymentRequest is the decoded form of a BOLT 11 payment request.
type PaymentRequest struct {
	Destination PubKey              `json:"destination"`
	Id          lntypes.Hash        `json:"id"`
	PaymentAddr []byte              `json:"payment,omitempty"`
	Mtokens     lnwire.MilliSatoshi `json:"mtokens"`
	CltvDelta   uint32              `json:"cltv_delta"`
	Routes      [][]*HintHop        `json:"routes,omitempty"`
	Description string              `json:"description,omitempty"`
	ExpiresAt   int64               `json:"expires_at,omitempty"`
}
