package bdb

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"time"
)

// PubKey is a hex encoded compressed node public key.
type PubKey string

// MaxSafeTokens is the capacity assumed for channels only known from route
// hints.
const MaxSafeTokens = btcutil.Amount(1<<53 - 1)

// Policy is the forwarding policy one side of a channel announces. A policy
// only carrying a PublicKey is a placeholder for an unknown direction.
type Policy struct {
	PublicKey      PubKey              `json:"public_key"`
	BaseFeeMtokens lnwire.MilliSatoshi `json:"base_fee_mtokens,omitempty"`
	FeeRate        uint32              `json:"fee_rate,omitempty"`
	CltvDelta      uint32              `json:"cltv_delta,omitempty"`
	MinHtlcMtokens lnwire.MilliSatoshi `json:"min_htlc_mtokens,omitempty"`
	MaxHtlcMtokens lnwire.MilliSatoshi `json:"max_htlc_mtokens,omitempty"`
	IsDisabled     bool                `json:"is_disabled,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at,omitempty"`
}

// Fee returns the fee this policy charges for forwarding mtokens.
func (p *Policy) Fee(mtokens lnwire.MilliSatoshi) lnwire.MilliSatoshi {
	return p.BaseFeeMtokens + mtokens*lnwire.MilliSatoshi(p.FeeRate)/1000000
}

// Channel is a channel viewed in the direction of travel towards
// Destination. It always carries both directional policies.
type Channel struct {
	Id          ChanId         `json:"id"`
	Capacity    btcutil.Amount `json:"capacity"`
	Destination PubKey         `json:"destination,omitempty"`
	Policies    [2]Policy      `json:"policies"`
}

// ForwardPolicy returns the policy of the node sending towards Destination.
func (c *Channel) ForwardPolicy() *Policy {
	for i := range c.Policies {
		if c.Policies[i].PublicKey != c.Destination {
			return &c.Policies[i]
		}
	}

	return nil
}

// Policy returns the policy announced by the given node, if any.
func (c *Channel) Policy(key PubKey) *Policy {
	for i := range c.Policies {
		if c.Policies[i].PublicKey == key {
			return &c.Policies[i]
		}
	}

	return nil
}

// LocalChannel is one of our own channels together with its spendable
// balance.
type LocalChannel struct {
	Id               ChanId         `json:"id"`
	IsActive         bool           `json:"is_active"`
	Capacity         btcutil.Amount `json:"capacity"`
	LocalBalance     btcutil.Amount `json:"local_balance"`
	LocalReserve     btcutil.Amount `json:"local_reserve"`
	PartnerPublicKey PubKey         `json:"partner_public_key"`
}

// Spendable is the balance that can leave the channel without dipping into
// the reserve.
func (c *LocalChannel) Spendable() btcutil.Amount {
	if c.LocalBalance < c.LocalReserve {
		return 0
	}

	return c.LocalBalance - c.LocalReserve
}

// Hop is a single step of a path: the channel used and the node reached.
type Hop struct {
	Channel   ChanId `json:"channel"`
	PublicKey PubKey `json:"public_key"`
}

// HintHop is a hop of a private route hint as found in payment requests. The
// first hop of a hint route only names the node the hint starts at.
type HintHop struct {
	Channel        ChanId              `json:"channel,omitempty"`
	PublicKey      PubKey              `json:"public_key"`
	BaseFeeMtokens lnwire.MilliSatoshi `json:"base_fee_mtokens,omitempty"`
	FeeRate        uint32              `json:"fee_rate,omitempty"`
	CltvDelta      uint32              `json:"cltv_delta,omitempty"`
}

// IgnorePair excludes the edge From -> To from pathfinding. An empty To
// excludes the From node entirely.
type IgnorePair struct {
	From PubKey `json:"from_public_key"`
	To   PubKey `json:"to_public_key,omitempty"`
}
