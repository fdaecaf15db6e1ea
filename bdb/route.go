package bdb

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
)

// Message is a custom TLV record delivered to the final hop.
type Message struct {
	Type  uint64 `json:"type"`
	Value []byte `json:"value"`
}

type RouteHop struct {
	Channel         ChanId              `json:"channel"`
	ChannelCapacity btcutil.Amount      `json:"channel_capacity"`
	PublicKey       PubKey              `json:"public_key"`
	Fee             btcutil.Amount      `json:"fee"`
	FeeMtokens      lnwire.MilliSatoshi `json:"fee_mtokens"`
	Forward         btcutil.Amount      `json:"forward"`
	ForwardMtokens  lnwire.MilliSatoshi `json:"forward_mtokens"`
	Timeout         uint32              `json:"timeout"`
}

// Route is a fully specified payment route. Mtokens is the amount leaving
// the local node, fees included.
type Route struct {
	Hops         []*RouteHop         `json:"hops"`
	Fee          btcutil.Amount      `json:"fee"`
	FeeMtokens   lnwire.MilliSatoshi `json:"fee_mtokens"`
	Mtokens      lnwire.MilliSatoshi `json:"mtokens"`
	Tokens       btcutil.Amount      `json:"tokens"`
	Timeout      uint32              `json:"timeout"`
	PaymentAddr  []byte              `json:"payment,omitempty"`
	TotalMtokens lnwire.MilliSatoshi `json:"total_mtokens,omitempty"`
	Messages     []*Message          `json:"messages,omitempty"`
}

// Destination is the public key of the final hop.
func (r *Route) Destination() PubKey {
	if len(r.Hops) == 0 {
		return ""
	}

	return r.Hops[len(r.Hops)-1].PublicKey
}

// DeliveredMtokens is the amount the final hop receives.
func (r *Route) DeliveredMtokens() lnwire.MilliSatoshi {
	if len(r.Hops) == 0 {
		return 0
	}

	return r.Hops[len(r.Hops)-1].ForwardMtokens
}

// Path is the record of a successful liquidity probe: the channels and
// relays it went through and how much it was able to carry.
type Path struct {
	Channels   []ChanId            `json:"channels"`
	Relays     []PubKey            `json:"relays"`
	Fee        btcutil.Amount      `json:"fee"`
	FeeMtokens lnwire.MilliSatoshi `json:"fee_mtokens"`
	Liquidity  btcutil.Amount      `json:"liquidity"`
}

// Hops zips channels and relays into hops.
func (p *Path) Hops() ([]*Hop, error) {
	if len(p.Channels) != len(p.Relays) {
		return nil, NewError(InvalidInput, "Expected a relay for every channel of the path", nil)
	}

	hops := make([]*Hop, len(p.Channels))
	for i := range p.Channels {
		hops[i] = &Hop{Channel: p.Channels[i], PublicKey: p.Relays[i]}
	}

	return hops, nil
}
