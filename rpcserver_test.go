package main

import (
	"context"
	"encoding/json"
	"github.com/gorilla/websocket"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/metrics"
	"github.com/the-lightning-land/splitpay/node"
	"github.com/the-lightning-land/splitpay/node/nodetest"
	"github.com/the-lightning-land/splitpay/splitter"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testSecret = lntypes.Preimage{9}

func testServer(t *testing.T) *httptest.Server {
	n := &nodetest.Node{
		GetWalletInfoFunc: nodetest.WalletInfo("self", 10),
		GetChannelsFunc: nodetest.Channels(
			&bdb.LocalChannel{Id: 1, IsActive: true, PartnerPublicKey: "d", LocalBalance: 1000},
		),
		ProbeForRouteFunc: func(ctx context.Context, req *node.ProbeForRouteRequest, handlers *node.ProbeHandlers) (*bdb.Route, error) {
			return nil, nil
		},
		GetRouteThroughHopsFunc: func(ctx context.Context, req *node.RouteThroughHopsRequest) (*bdb.Route, error) {
			return &bdb.Route{
				Hops: []*bdb.RouteHop{{
					Channel:        req.OutgoingChannel,
					PublicKey:      req.PublicKeys[len(req.PublicKeys)-1],
					ForwardMtokens: req.Mtokens,
					Timeout:        10 + req.CltvDelta,
				}},
				Mtokens:      req.Mtokens,
				Tokens:       req.Mtokens.ToSatoshis(),
				Timeout:      10 + req.CltvDelta,
				PaymentAddr:  req.PaymentAddr,
				TotalMtokens: req.TotalMtokens,
			}, nil
		},
		PayViaRouteFunc: func(ctx context.Context, req *node.PayViaRouteRequest) (*node.PayViaRouteResult, error) {
			secret := testSecret
			return &node.PayViaRouteResult{Secret: &secret, Route: req.Route}, nil
		},
	}

	registry := prometheus.NewRegistry()

	s, err := splitter.NewSplitter(&splitter.Config{Client: n, Metrics: metrics.New(registry)})
	require.NoError(t, err)

	server := newRPCServer(&rpcServerConfig{
		splitter: s,
		gatherer: registry,
		version:  "test",
		commit:   "abc",
	})

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return srv
}

type streamedEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func streamSession(t *testing.T, srv *httptest.Server, path string, req interface{}) []streamedEvent {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(req))

	var events []streamedEvent
	for {
		var event streamedEvent
		if err := conn.ReadJSON(&event); err != nil {
			break
		}
		events = append(events, event)
	}

	return events
}

func eventNames(events []streamedEvent) []string {
	var names []string
	for _, event := range events {
		names = append(names, event.Event)
	}

	return names
}

func TestGetInfo(t *testing.T) {
	srv := testServer(t)

	res, err := http.Get(srv.URL + "/v1/info")
	require.NoError(t, err)
	defer res.Body.Close()

	var info infoResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&info))

	assert.Equal(t, infoResponse{Version: "test", Commit: "abc", IdentityPubKey: "self"}, info)
}

func TestProbeStream(t *testing.T) {
	srv := testServer(t)

	events := streamSession(t, srv, "/v1/probe", &probeRequest{Destination: "d", CltvDelta: 40})

	assert.Equal(t, []string{"failure"}, eventNames(events))
}

func TestProbeStreamInvalid(t *testing.T) {
	srv := testServer(t)

	events := streamSession(t, srv, "/v1/probe", &probeRequest{})
	require.Equal(t, []string{"error"}, eventNames(events))

	var message errorMessage
	require.NoError(t, json.Unmarshal(events[0].Data, &message))
	assert.Equal(t, bdb.InvalidInput, message.Code)
}

func TestPayStream(t *testing.T) {
	srv := testServer(t)

	hash := testSecret.Hash()

	events := streamSession(t, srv, "/v1/pay", &payRequest{
		Destination: "d",
		Id:          hash.String(),
		Mtokens:     50000,
		Payment:     "0102",
		Paths:       []*bdb.Path{{Channels: []bdb.ChanId{1}, Relays: []bdb.PubKey{"d"}, Liquidity: 1000}},
	})

	assert.Equal(t, []string{"paying", "paid", "path_success", "success"}, eventNames(events))

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `splitpay_sessions_total{flow="pay",outcome="success"} 1`)
}

func TestPayStreamInvalidHash(t *testing.T) {
	srv := testServer(t)

	events := streamSession(t, srv, "/v1/pay", &payRequest{Destination: "d", Id: "zz"})
	require.Equal(t, []string{"error"}, eventNames(events))
}
