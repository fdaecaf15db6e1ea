// Package nodetest provides a programmable node.Lightning for tests.
package nodetest

import (
	"context"
	"github.com/go-errors/errors"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node"
	"sync"
)

var ErrNotImplemented = errors.New("not implemented")

// Node dispatches every call to the matching func field. Unset fields fail
// with ErrNotImplemented.
type Node struct {
	GetChannelFunc          func(ctx context.Context, id bdb.ChanId) (*bdb.Channel, error)
	GetChannelsFunc         func(ctx context.Context, req *node.GetChannelsRequest) ([]*bdb.LocalChannel, error)
	GetWalletInfoFunc       func(ctx context.Context) (*node.WalletInfo, error)
	GetRouteThroughHopsFunc func(ctx context.Context, req *node.RouteThroughHopsRequest) (*bdb.Route, error)
	ProbeForRouteFunc       func(ctx context.Context, req *node.ProbeForRouteRequest, handlers *node.ProbeHandlers) (*bdb.Route, error)
	PayViaRouteFunc         func(ctx context.Context, req *node.PayViaRouteRequest) (*node.PayViaRouteResult, error)
	ParsePaymentRequestFunc func(ctx context.Context, request string) (*bdb.PaymentRequest, error)

	mu       sync.Mutex
	calls    map[string]int
	payments []*node.PayViaRouteRequest
}

var _ node.Lightning = (*Node)(nil)

func (n *Node) record(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.calls == nil {
		n.calls = make(map[string]int)
	}
	n.calls[name]++
}

// Calls returns how often the named method was invoked.
func (n *Node) Calls(name string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls[name]
}

// Payments returns every PayViaRoute request in call order.
func (n *Node) Payments() []*node.PayViaRouteRequest {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]*node.PayViaRouteRequest(nil), n.payments...)
}

func (n *Node) GetChannel(ctx context.Context, id bdb.ChanId) (*bdb.Channel, error) {
	n.record("GetChannel")
	if n.GetChannelFunc == nil {
		return nil, ErrNotImplemented
	}

	return n.GetChannelFunc(ctx, id)
}

func (n *Node) GetChannels(ctx context.Context, req *node.GetChannelsRequest) ([]*bdb.LocalChannel, error) {
	n.record("GetChannels")
	if n.GetChannelsFunc == nil {
		return nil, ErrNotImplemented
	}

	return n.GetChannelsFunc(ctx, req)
}

func (n *Node) GetWalletInfo(ctx context.Context) (*node.WalletInfo, error) {
	n.record("GetWalletInfo")
	if n.GetWalletInfoFunc == nil {
		return nil, ErrNotImplemented
	}

	return n.GetWalletInfoFunc(ctx)
}

func (n *Node) GetRouteThroughHops(ctx context.Context, req *node.RouteThroughHopsRequest) (*bdb.Route, error) {
	n.record("GetRouteThroughHops")
	if n.GetRouteThroughHopsFunc == nil {
		return nil, ErrNotImplemented
	}

	return n.GetRouteThroughHopsFunc(ctx, req)
}

func (n *Node) ProbeForRoute(ctx context.Context, req *node.ProbeForRouteRequest, handlers *node.ProbeHandlers) (*bdb.Route, error) {
	n.record("ProbeForRoute")
	if n.ProbeForRouteFunc == nil {
		return nil, ErrNotImplemented
	}

	return n.ProbeForRouteFunc(ctx, req, handlers)
}

func (n *Node) PayViaRoute(ctx context.Context, req *node.PayViaRouteRequest) (*node.PayViaRouteResult, error) {
	n.record("PayViaRoute")

	n.mu.Lock()
	n.payments = append(n.payments, req)
	n.mu.Unlock()

	if n.PayViaRouteFunc == nil {
		return nil, ErrNotImplemented
	}

	return n.PayViaRouteFunc(ctx, req)
}

func (n *Node) ParsePaymentRequest(ctx context.Context, request string) (*bdb.PaymentRequest, error) {
	n.record("ParsePaymentRequest")
	if n.ParsePaymentRequestFunc == nil {
		return nil, ErrNotImplemented
	}

	return n.ParsePaymentRequestFunc(ctx, request)
}

// WalletInfo returns a GetWalletInfoFunc reporting fixed values.
func WalletInfo(key bdb.PubKey, height uint32) func(ctx context.Context) (*node.WalletInfo, error) {
	return func(ctx context.Context) (*node.WalletInfo, error) {
		return &node.WalletInfo{PublicKey: key, CurrentBlockHeight: height}, nil
	}
}

// Channels returns a GetChannelsFunc that filters the given channels like a
// node would.
func Channels(channels ...*bdb.LocalChannel) func(ctx context.Context, req *node.GetChannelsRequest) ([]*bdb.LocalChannel, error) {
	return func(ctx context.Context, req *node.GetChannelsRequest) ([]*bdb.LocalChannel, error) {
		var res []*bdb.LocalChannel
		for _, channel := range channels {
			if req != nil && req.IsActive && !channel.IsActive {
				continue
			}
			if req != nil && req.PartnerPublicKey != "" && req.PartnerPublicKey != channel.PartnerPublicKey {
				continue
			}

			c := *channel
			res = append(res, &c)
		}

		return res, nil
	}
}

// Graph returns a GetChannelFunc looking channels up by id.
func Graph(channels ...*bdb.Channel) func(ctx context.Context, id bdb.ChanId) (*bdb.Channel, error) {
	return func(ctx context.Context, id bdb.ChanId) (*bdb.Channel, error) {
		for _, channel := range channels {
			if channel.Id == id {
				c := *channel
				return &c, nil
			}
		}

		return nil, errors.Errorf("Channel %v not found", id)
	}
}

// Reject returns a result failing with reason at the final hop.
func Reject(route *bdb.Route, reason string) *node.PayViaRouteResult {
	return &node.PayViaRouteResult{
		Route: route,
		Failure: &bdb.RoutingFailure{
			Reason:    reason,
			Index:     len(route.Hops),
			PublicKey: route.Destination(),
			Route:     route,
		},
	}
}
