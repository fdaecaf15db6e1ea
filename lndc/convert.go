package lndc

import (
	"encoding/hex"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/pkg/errors"
	"github.com/the-lightning-land/splitpay/bdb"
	"sort"
	"time"
)

var failureReasons = map[lnrpc.Failure_FailureCode]string{
	lnrpc.Failure_INCORRECT_OR_UNKNOWN_PAYMENT_DETAILS: bdb.UnknownPaymentHash,
	lnrpc.Failure_INCORRECT_PAYMENT_AMOUNT:              bdb.IncorrectPaymentAmount,
	lnrpc.Failure_FINAL_INCORRECT_CLTV_EXPIRY:           bdb.FinalIncorrectCltv,
	lnrpc.Failure_FINAL_INCORRECT_HTLC_AMOUNT:           bdb.FinalIncorrectAmount,
	lnrpc.Failure_FINAL_EXPIRY_TOO_SOON:                 bdb.FinalExpiryTooSoon,
	lnrpc.Failure_EXPIRY_TOO_SOON:                       bdb.ExpiryTooSoon,
	lnrpc.Failure_EXPIRY_TOO_FAR:                        bdb.ExpiryTooFar,
	lnrpc.Failure_AMOUNT_BELOW_MINIMUM:                  bdb.AmountBelowMinimum,
	lnrpc.Failure_FEE_INSUFFICIENT:                      bdb.FeeInsufficient,
	lnrpc.Failure_INCORRECT_CLTV_EXPIRY:                 bdb.IncorrectCltvExpiry,
	lnrpc.Failure_CHANNEL_DISABLED:                      bdb.ChannelDisabled,
	lnrpc.Failure_TEMPORARY_CHANNEL_FAILURE:             bdb.TemporaryChannelFailure,
	lnrpc.Failure_PERMANENT_CHANNEL_FAILURE:             bdb.PermanentChannelFailure,
	lnrpc.Failure_TEMPORARY_NODE_FAILURE:                bdb.TemporaryNodeFailure,
	lnrpc.Failure_PERMANENT_NODE_FAILURE:                bdb.PermanentNodeFailure,
	lnrpc.Failure_UNKNOWN_NEXT_PEER:                     bdb.UnknownNextPeer,
	lnrpc.Failure_MPP_TIMEOUT:                           bdb.MppTimeout,
	lnrpc.Failure_INVALID_ONION_PAYLOAD:                 bdb.InvalidOnionPayload,
}

func failureReason(code lnrpc.Failure_FailureCode) string {
	if reason, ok := failureReasons[code]; ok {
		return reason
	}

	return bdb.UnknownFailure
}

func policyFromRpc(key string, policy *lnrpc.RoutingPolicy) bdb.Policy {
	res := bdb.Policy{PublicKey: bdb.PubKey(key)}
	if policy == nil {
		return res
	}

	res.BaseFeeMtokens = lnwire.MilliSatoshi(policy.FeeBaseMsat)
	res.FeeRate = uint32(policy.FeeRateMilliMsat)
	res.CltvDelta = policy.TimeLockDelta
	res.MinHtlcMtokens = lnwire.MilliSatoshi(policy.MinHtlc)
	res.MaxHtlcMtokens = lnwire.MilliSatoshi(policy.MaxHtlcMsat)
	res.IsDisabled = policy.Disabled

	if policy.LastUpdate > 0 {
		res.UpdatedAt = time.Unix(int64(policy.LastUpdate), 0).UTC()
	}

	return res
}

func channelFromEdge(edge *lnrpc.ChannelEdge) *bdb.Channel {
	return &bdb.Channel{
		Id:       bdb.ChanId(edge.ChannelId),
		Capacity: btcutil.Amount(edge.Capacity),
		Policies: [2]bdb.Policy{
			policyFromRpc(edge.Node1Pub, edge.Node1Policy),
			policyFromRpc(edge.Node2Pub, edge.Node2Policy),
		},
	}
}

func localChannelFromRpc(channel *lnrpc.Channel) *bdb.LocalChannel {
	res := &bdb.LocalChannel{
		Id:               bdb.ChanId(channel.ChanId),
		IsActive:         channel.Active,
		Capacity:         btcutil.Amount(channel.Capacity),
		LocalBalance:     btcutil.Amount(channel.LocalBalance),
		PartnerPublicKey: bdb.PubKey(channel.RemotePubkey),
	}

	if channel.LocalConstraints != nil {
		res.LocalReserve = btcutil.Amount(channel.LocalConstraints.ChanReserveSat)
	}

	return res
}

func routeFromRpc(route *lnrpc.Route) *bdb.Route {
	res := &bdb.Route{
		Hops:       make([]*bdb.RouteHop, 0, len(route.Hops)),
		FeeMtokens: lnwire.MilliSatoshi(route.TotalFeesMsat),
		Mtokens:    lnwire.MilliSatoshi(route.TotalAmtMsat),
		Timeout:    route.TotalTimeLock,
	}
	res.Fee = res.FeeMtokens.ToSatoshis()
	res.Tokens = res.Mtokens.ToSatoshis()

	for _, hop := range route.Hops {
		fee := lnwire.MilliSatoshi(hop.FeeMsat)
		forward := lnwire.MilliSatoshi(hop.AmtToForwardMsat)

		res.Hops = append(res.Hops, &bdb.RouteHop{
			Channel:        bdb.ChanId(hop.ChanId),
			PublicKey:      bdb.PubKey(hop.PubKey),
			Fee:            fee.ToSatoshis(),
			FeeMtokens:     fee,
			Forward:        forward.ToSatoshis(),
			ForwardMtokens: forward,
			Timeout:        hop.Expiry,
		})
	}

	if len(route.Hops) == 0 {
		return res
	}

	last := route.Hops[len(route.Hops)-1]

	if last.MppRecord != nil {
		res.PaymentAddr = last.MppRecord.PaymentAddr
		res.TotalMtokens = lnwire.MilliSatoshi(last.MppRecord.TotalAmtMsat)
	}

	for recordType, value := range last.CustomRecords {
		res.Messages = append(res.Messages, &bdb.Message{Type: recordType, Value: value})
	}

	sort.Slice(res.Messages, func(i, j int) bool {
		return res.Messages[i].Type < res.Messages[j].Type
	})

	return res
}

func routeToRpc(route *bdb.Route) *lnrpc.Route {
	res := &lnrpc.Route{
		TotalTimeLock: route.Timeout,
		TotalFeesMsat: int64(route.FeeMtokens),
		TotalAmtMsat:  int64(route.Mtokens),
		Hops:          make([]*lnrpc.Hop, 0, len(route.Hops)),
	}

	for _, hop := range route.Hops {
		res.Hops = append(res.Hops, &lnrpc.Hop{
			ChanId:           uint64(hop.Channel),
			AmtToForwardMsat: int64(hop.ForwardMtokens),
			FeeMsat:          int64(hop.FeeMtokens),
			Expiry:           hop.Timeout,
			PubKey:           string(hop.PublicKey),
			TlvPayload:       true,
		})
	}

	if len(res.Hops) == 0 {
		return res
	}

	last := res.Hops[len(res.Hops)-1]

	if len(route.PaymentAddr) > 0 {
		total := route.TotalMtokens
		if total == 0 {
			total = route.DeliveredMtokens()
		}

		last.MppRecord = &lnrpc.MPPRecord{
			PaymentAddr:  route.PaymentAddr,
			TotalAmtMsat: int64(total),
		}
	}

	if len(route.Messages) > 0 {
		last.CustomRecords = make(map[uint64][]byte, len(route.Messages))
		for _, message := range route.Messages {
			last.CustomRecords[message.Type] = message.Value
		}
	}

	return res
}

// failureFromAttempt reads the failure of an HTLC attempt. The failure
// source index counts nodes along the route with our own node at zero.
func failureFromAttempt(attempt *lnrpc.HTLCAttempt, route *bdb.Route) *bdb.RoutingFailure {
	if attempt == nil || attempt.Status == lnrpc.HTLCAttempt_SUCCEEDED {
		return nil
	}

	res := &bdb.RoutingFailure{Reason: bdb.UnknownFailure, Route: route}

	failure := attempt.Failure
	if failure == nil {
		return res
	}

	res.Reason = failureReason(failure.Code)
	res.Index = int(failure.FailureSourceIndex)
	res.Mtokens = lnwire.MilliSatoshi(failure.HtlcMsat)

	if res.Index > 0 && res.Index <= len(route.Hops) {
		res.PublicKey = route.Hops[res.Index-1].PublicKey
	}

	if res.Index < len(route.Hops) {
		res.Channel = route.Hops[res.Index].Channel

		if res.Mtokens == 0 {
			res.Mtokens = route.Hops[res.Index].ForwardMtokens
		}
	}

	if update := failure.ChannelUpdate; update != nil {
		if update.ChanId != 0 {
			res.Channel = bdb.ChanId(update.ChanId)
		}

		res.Policy = &bdb.Policy{
			PublicKey:      res.PublicKey,
			BaseFeeMtokens: lnwire.MilliSatoshi(update.BaseFee),
			FeeRate:        update.FeeRate,
			CltvDelta:      update.TimeLockDelta,
			MinHtlcMtokens: lnwire.MilliSatoshi(update.HtlcMinimumMsat),
			MaxHtlcMtokens: lnwire.MilliSatoshi(update.HtlcMaximumMsat),
			UpdatedAt:      time.Unix(int64(update.Timestamp), 0).UTC(),
		}
	}

	return res
}

// hintsFromRpc turns lnd route hints into hint routes starting at the
// first hinted node and ending at the destination.
func hintsFromRpc(hints []*lnrpc.RouteHint, destination bdb.PubKey) [][]*bdb.HintHop {
	var routes [][]*bdb.HintHop

	for _, hint := range hints {
		if len(hint.HopHints) == 0 {
			continue
		}

		route := []*bdb.HintHop{{PublicKey: bdb.PubKey(hint.HopHints[0].NodeId)}}

		for i, hop := range hint.HopHints {
			next := destination
			if i < len(hint.HopHints)-1 {
				next = bdb.PubKey(hint.HopHints[i+1].NodeId)
			}

			route = append(route, &bdb.HintHop{
				Channel:        bdb.ChanId(hop.ChanId),
				PublicKey:      next,
				BaseFeeMtokens: lnwire.MilliSatoshi(hop.FeeBaseMsat),
				FeeRate:        hop.FeeProportionalMillionths,
				CltvDelta:      hop.CltvExpiryDelta,
			})
		}

		routes = append(routes, route)
	}

	return routes
}

func routeHintsToRpc(routes [][]*bdb.HintHop) []*lnrpc.RouteHint {
	var hints []*lnrpc.RouteHint

	for _, route := range routes {
		if len(route) < 2 {
			continue
		}

		hint := &lnrpc.RouteHint{}
		for i := 1; i < len(route); i++ {
			hint.HopHints = append(hint.HopHints, &lnrpc.HopHint{
				NodeId:                    string(route[i-1].PublicKey),
				ChanId:                    uint64(route[i].Channel),
				FeeBaseMsat:               uint32(route[i].BaseFeeMtokens),
				FeeProportionalMillionths: route[i].FeeRate,
				CltvExpiryDelta:           route[i].CltvDelta,
			})
		}

		hints = append(hints, hint)
	}

	return hints
}

// ignoresToRpc splits ignores into whole nodes and directed node pairs.
func ignoresToRpc(ignored map[bdb.IgnorePair]bool) ([][]byte, []*lnrpc.NodePair, error) {
	var nodes [][]byte
	var pairs []*lnrpc.NodePair

	keys := make([]bdb.IgnorePair, 0, len(ignored))
	for pair := range ignored {
		keys = append(keys, pair)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].To < keys[j].To
	})

	for _, pair := range keys {
		from, err := hex.DecodeString(string(pair.From))
		if err != nil {
			return nil, nil, errors.Errorf("Could not decode ignored public key %v: %v", pair.From, err)
		}

		if pair.To == "" {
			nodes = append(nodes, from)
			continue
		}

		to, err := hex.DecodeString(string(pair.To))
		if err != nil {
			return nil, nil, errors.Errorf("Could not decode ignored public key %v: %v", pair.To, err)
		}

		pairs = append(pairs, &lnrpc.NodePair{From: from, To: to})
	}

	return nodes, pairs, nil
}

func paymentRequestFromRpc(payReq *lnrpc.PayReq) (*bdb.PaymentRequest, error) {
	id, err := lntypes.MakeHashFromStr(payReq.PaymentHash)
	if err != nil {
		return nil, errors.Errorf("Could not read payment hash: %v", err)
	}

	mtokens := lnwire.MilliSatoshi(payReq.NumMsat)
	if mtokens == 0 {
		mtokens = lnwire.NewMSatFromSatoshis(btcutil.Amount(payReq.NumSatoshis))
	}

	destination := bdb.PubKey(payReq.Destination)

	return &bdb.PaymentRequest{
		Destination: destination,
		Id:          id,
		PaymentAddr: payReq.PaymentAddr,
		Mtokens:     mtokens,
		CltvDelta:   uint32(payReq.CltvExpiry),
		Routes:      hintsFromRpc(payReq.RouteHints, destination),
		Description: payReq.Description,
		ExpiresAt:   payReq.Timestamp + payReq.Expiry,
	}, nil
}
