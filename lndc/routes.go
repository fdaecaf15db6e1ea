package lndc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/pkg/errors"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/node"
	"strings"
)

func (client *Client) GetRouteThroughHops(ctx context.Context, req *node.RouteThroughHopsRequest) (*bdb.Route, error) {
	hopPubkeys := make([][]byte, 0, len(req.PublicKeys))
	for _, key := range req.PublicKeys {
		b, err := hex.DecodeString(string(key))
		if err != nil {
			return nil, errors.Errorf("Could not decode hop public key %v: %v", key, err)
		}
		hopPubkeys = append(hopPubkeys, b)
	}

	res, err := client.router.BuildRoute(client.auth(ctx), &routerrpc.BuildRouteRequest{
		AmtMsat:        int64(req.Mtokens),
		FinalCltvDelta: int32(req.CltvDelta),
		OutgoingChanId: uint64(req.OutgoingChannel),
		HopPubkeys:     hopPubkeys,
		PaymentAddr:    req.PaymentAddr,
	})
	if err != nil {
		return nil, errors.Errorf("Could not build route: %v", err)
	}

	if res.Route == nil {
		return nil, errors.New("Could not build route: empty response")
	}

	route := routeFromRpc(res.Route)
	route.Messages = req.Messages

	if len(req.PaymentAddr) > 0 {
		route.PaymentAddr = req.PaymentAddr
		route.TotalMtokens = req.TotalMtokens

		if route.TotalMtokens == 0 {
			route.TotalMtokens = req.Mtokens
		}
	}

	return route, nil
}

// ProbeForRoute asks lnd for routes and sends each one an HTLC with a hash
// nobody knows the preimage of. A route is found once the destination
// rejects the HTLC for its unknown hash. Failing edges are ignored in the
// next query until no route is left or the path timeout passes.
func (client *Client) ProbeForRoute(ctx context.Context, req *node.ProbeForRouteRequest,
	handlers *node.ProbeHandlers) (*bdb.Route, error) {

	if handlers == nil {
		handlers = &node.ProbeHandlers{}
	}

	pathCtx := ctx
	if req.PathTimeout > 0 {
		var cancel context.CancelFunc
		pathCtx, cancel = context.WithTimeout(ctx, req.PathTimeout)
		defer cancel()
	}

	info, err := client.GetWalletInfo(pathCtx)
	if err != nil {
		return nil, err
	}

	queryReq := &lnrpc.QueryRoutesRequest{
		PubKey:         string(req.Destination),
		AmtMsat:        int64(req.Mtokens),
		FinalCltvDelta: int32(req.CltvDelta),
		OutgoingChanId: uint64(req.OutgoingChannel),
		RouteHints:     routeHintsToRpc(req.Routes),
	}

	if req.MaxTimeout > 0 {
		if req.MaxTimeout <= info.CurrentBlockHeight {
			return nil, nil
		}
		queryReq.CltvLimit = req.MaxTimeout - info.CurrentBlockHeight
	}

	if req.IncomingPeer != "" {
		lastHop, err := hex.DecodeString(string(req.IncomingPeer))
		if err != nil {
			return nil, errors.Errorf("Could not decode incoming peer: %v", err)
		}
		queryReq.LastHopPubkey = lastHop
	}

	ignored := make(map[bdb.IgnorePair]bool)
	for _, pair := range req.Ignore {
		ignored[pair] = true
	}

	for {
		queryReq.IgnoredNodes, queryReq.IgnoredPairs, err = ignoresToRpc(ignored)
		if err != nil {
			return nil, err
		}

		res, err := client.lightning.QueryRoutes(client.auth(pathCtx), queryReq)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case pathCtx.Err() != nil:
			return nil, nil
		case err != nil && isNoRouteError(err):
			return nil, nil
		case err != nil:
			return nil, errors.Errorf("Could not query routes: %v", err)
		case len(res.Routes) == 0:
			return nil, nil
		}

		rpcRoute := res.Routes[0]
		route := routeFromRpc(rpcRoute)

		if handlers.OnProbing != nil {
			handlers.OnProbing(route)
		}

		attempt, err := client.sendProbe(pathCtx, req, rpcRoute)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case pathCtx.Err() != nil:
			return nil, nil
		case err != nil:
			return nil, err
		}

		failure := failureFromAttempt(attempt, route)
		if failure == nil {
			return route, nil
		}

		if failure.Reason == bdb.UnknownPaymentHash && failure.Index == len(route.Hops) {
			return route, nil
		}

		if handlers.OnRoutingFailure != nil {
			handlers.OnRoutingFailure(failure)
		}

		// Failures at the destination leave nothing to route around
		if failure.Index >= len(route.Hops) {
			return nil, nil
		}

		pair := bdb.IgnorePair{From: info.PublicKey, To: route.Hops[failure.Index].PublicKey}
		if failure.Index > 0 {
			pair.From = route.Hops[failure.Index-1].PublicKey
		}

		if ignored[pair] {
			return nil, nil
		}
		ignored[pair] = true
	}
}

func (client *Client) sendProbe(ctx context.Context, req *node.ProbeForRouteRequest,
	route *lnrpc.Route) (*lnrpc.HTLCAttempt, error) {

	var hash lntypes.Hash
	if _, err := rand.Read(hash[:]); err != nil {
		return nil, errors.Errorf("Could not generate probe hash: %v", err)
	}

	if req.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.ProbeTimeout)
		defer cancel()
	}

	attempt, err := client.router.SendToRouteV2(client.auth(ctx), &routerrpc.SendToRouteRequest{
		PaymentHash: hash[:],
		Route:       route,
	})
	if err != nil {
		return nil, errors.Errorf("Could not send probe: %v", err)
	}

	return attempt, nil
}

func (client *Client) PayViaRoute(ctx context.Context, req *node.PayViaRouteRequest) (*node.PayViaRouteResult, error) {
	if req.Route == nil || len(req.Route.Hops) == 0 {
		return nil, errors.New("Expected route to pay via")
	}

	attempt, err := client.router.SendToRouteV2(client.auth(ctx), &routerrpc.SendToRouteRequest{
		PaymentHash: req.Id[:],
		Route:       routeToRpc(req.Route),
	})
	if err != nil {
		return nil, errors.Errorf("Could not send to route: %v", err)
	}

	res := &node.PayViaRouteResult{Route: req.Route}

	if attempt.Status == lnrpc.HTLCAttempt_SUCCEEDED {
		preimage, err := lntypes.MakePreimage(attempt.Preimage)
		if err != nil {
			return nil, errors.Errorf("Could not read preimage: %v", err)
		}

		res.Secret = &preimage

		return res, nil
	}

	res.Failure = failureFromAttempt(attempt, req.Route)

	return res, nil
}

func isNoRouteError(err error) bool {
	return strings.Contains(err.Error(), "unable to find a path")
}
