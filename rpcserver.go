package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-errors/errors"
	"github.com/gorilla/websocket"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/splitpay/bdb"
	"github.com/the-lightning-land/splitpay/emitter"
	"github.com/the-lightning-land/splitpay/splitter"
	"net/http"
	"time"
)

type rpcServerConfig struct {
	splitter *splitter.Splitter
	gatherer prometheus.Gatherer
	version  string
	commit   string
}

type rpcServer struct {
	splitter *splitter.Splitter
	gatherer prometheus.Gatherer
	version  string
	commit   string
	upgrader websocket.Upgrader
}

func newRPCServer(config *rpcServerConfig) *rpcServer {
	return &rpcServer{
		splitter: config.splitter,
		gatherer: config.gatherer,
		version:  config.version,
		commit:   config.commit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *rpcServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/v1/info", s.getInfo)
	r.Get("/v1/probe", s.probe)
	r.Get("/v1/pay", s.pay)

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

type infoResponse struct {
	Version        string `json:"version"`
	Commit         string `json:"commit"`
	IdentityPubKey string `json:"identity_pubkey"`
}

func (s *rpcServer) getInfo(w http.ResponseWriter, r *http.Request) {
	identityPubKey, err := s.splitter.IdentityPubKey(r.Context())
	if err != nil {
		log.Warnf("Could not get identity pubkey: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(w).Encode(&infoResponse{
		Version:        s.version,
		Commit:         s.commit,
		IdentityPubKey: string(identityPubKey),
	})
}

type probeRequest struct {
	AllowStacking   []bdb.IgnorePair `json:"allow_stacking"`
	CltvDelta       uint32           `json:"cltv_delta"`
	Destination     string           `json:"destination"`
	Ignore          []bdb.IgnorePair `json:"ignore"`
	IncomingPeer    string           `json:"incoming_peer"`
	MaxPaths        int              `json:"max_paths"`
	MaxTimeout      uint32           `json:"max_timeout"`
	Mtokens         uint64           `json:"mtokens"`
	OutgoingChannel bdb.ChanId       `json:"outgoing_channel"`
	PathTimeoutMs   int64            `json:"path_timeout_ms"`
	ProbeTimeoutMs  int64            `json:"probe_timeout_ms"`
	Request         string           `json:"request"`
	Routes          [][]*bdb.HintHop `json:"routes"`
}

func (req *probeRequest) toSplitter() *splitter.ProbeRequest {
	return &splitter.ProbeRequest{
		AllowStacking:   req.AllowStacking,
		CltvDelta:       req.CltvDelta,
		Destination:     bdb.PubKey(req.Destination),
		Ignore:          req.Ignore,
		IncomingPeer:    bdb.PubKey(req.IncomingPeer),
		MaxPaths:        req.MaxPaths,
		MaxTimeout:      req.MaxTimeout,
		Mtokens:         lnwire.MilliSatoshi(req.Mtokens),
		OutgoingChannel: req.OutgoingChannel,
		PathTimeout:     time.Duration(req.PathTimeoutMs) * time.Millisecond,
		ProbeTimeout:    time.Duration(req.ProbeTimeoutMs) * time.Millisecond,
		Request:         req.Request,
		Routes:          req.Routes,
	}
}

type payRequest struct {
	CltvDelta   uint32           `json:"cltv_delta"`
	Destination string           `json:"destination"`
	Id          string           `json:"id"`
	MaxFee      int64            `json:"max_fee"`
	MaxPaths    int              `json:"max_paths"`
	MaxTimeout  uint32           `json:"max_timeout"`
	Messages    []*bdb.Message   `json:"messages"`
	Mtokens     uint64           `json:"mtokens"`
	Paths       []*bdb.Path      `json:"paths"`
	Payment     string           `json:"payment"`
	Request     string           `json:"request"`
	Routes      [][]*bdb.HintHop `json:"routes"`
}

func (req *payRequest) toSplitter() (*splitter.PayRequest, error) {
	res := &splitter.PayRequest{
		CltvDelta:   req.CltvDelta,
		Destination: bdb.PubKey(req.Destination),
		MaxFee:      btcutil.Amount(req.MaxFee),
		MaxPaths:    req.MaxPaths,
		MaxTimeout:  req.MaxTimeout,
		Messages:    req.Messages,
		Mtokens:     lnwire.MilliSatoshi(req.Mtokens),
		Paths:       req.Paths,
		Request:     req.Request,
		Routes:      req.Routes,
	}

	if req.Id != "" {
		id, err := lntypes.MakeHashFromStr(req.Id)
		if err != nil {
			return nil, bdb.WrapError(bdb.InvalidInput, "Expected hex payment hash", err)
		}
		res.Id = id
	}

	if req.Payment != "" {
		payment, err := hex.DecodeString(req.Payment)
		if err != nil {
			return nil, bdb.WrapError(bdb.InvalidInput, "Expected hex payment identifier", err)
		}
		res.PaymentAddr = payment
	}

	return res, nil
}

func (s *rpcServer) probe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("Could not upgrade probe connection: %v", err)
		return
	}
	defer conn.Close()

	var req probeRequest
	if err := conn.ReadJSON(&req); err != nil {
		writeEvent(conn, emitter.Error, bdb.WrapError(bdb.InvalidInput, "Could not read probe request", err))
		closeSession(conn)
		return
	}

	stream(r.Context(), conn, s.splitter.Probe(req.toSplitter()))
}

func (s *rpcServer) pay(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("Could not upgrade pay connection: %v", err)
		return
	}
	defer conn.Close()

	var rawReq payRequest
	if err := conn.ReadJSON(&rawReq); err != nil {
		writeEvent(conn, emitter.Error, bdb.WrapError(bdb.InvalidInput, "Could not read pay request", err))
		closeSession(conn)
		return
	}

	req, err := rawReq.toSplitter()
	if err != nil {
		writeEvent(conn, emitter.Error, err)
		closeSession(conn)
		return
	}

	stream(r.Context(), conn, s.splitter.Pay(req))
}

// stream writes every event of the session to the connection and closes
// it after the terminal event. The session stops when the peer goes away.
func stream(ctx context.Context, conn *websocket.Conn, session *splitter.Session) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session.OnAny(func(event emitter.Event, data interface{}) {
		writeEvent(conn, event, data)
	})

	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	session.Start(ctx).Wait()

	closeSession(conn)
}

func closeSession(conn *websocket.Conn) {
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	if err != nil {
		log.Debugf("Could not close session: %v", err)
	}
}

type eventMessage struct {
	Event emitter.Event `json:"event"`
	Data  interface{}   `json:"data,omitempty"`
}

type errorMessage struct {
	Code    bdb.ErrorCode          `json:"code,omitempty"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func newEventMessage(event emitter.Event, data interface{}) *eventMessage {
	err, ok := data.(error)
	if !ok {
		return &eventMessage{Event: event, Data: data}
	}

	message := &errorMessage{Message: err.Error()}

	var e *bdb.Error
	if errors.As(err, &e) {
		message.Code = e.Code
		message.Message = e.Message
		message.Context = e.Context
	}

	return &eventMessage{Event: event, Data: message}
}

func writeEvent(conn *websocket.Conn, event emitter.Event, data interface{}) {
	if err := conn.WriteJSON(newEventMessage(event, data)); err != nil {
		log.Debugf("Could not write %v event: %v", event, err)
	}
}
