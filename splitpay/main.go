package main

import (
	"encoding/json"
	"fmt"
	"github.com/go-errors/errors"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"io"
	"net/http"
	"net/url"
	"os"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	version string
	// Stores the date of this build. This should be set using -ldflags during compilation.
	date string
)

type probeRequest struct {
	CltvDelta       uint32 `json:"cltv_delta,omitempty"`
	Destination     string `json:"destination,omitempty"`
	IncomingPeer    string `json:"incoming_peer,omitempty"`
	MaxPaths        int    `json:"max_paths,omitempty"`
	MaxTimeout      uint32 `json:"max_timeout,omitempty"`
	Mtokens         uint64 `json:"mtokens,omitempty"`
	OutgoingChannel uint64 `json:"outgoing_channel,omitempty"`
	Request         string `json:"request,omitempty"`
}

type payRequest struct {
	CltvDelta   uint32 `json:"cltv_delta,omitempty"`
	Destination string `json:"destination,omitempty"`
	Id          string `json:"id,omitempty"`
	MaxFee      int64  `json:"max_fee,omitempty"`
	MaxPaths    int    `json:"max_paths,omitempty"`
	MaxTimeout  uint32 `json:"max_timeout,omitempty"`
	Mtokens     uint64 `json:"mtokens,omitempty"`
	Payment     string `json:"payment,omitempty"`
	Request     string `json:"request,omitempty"`
}

type event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func sessionURL(rpcServer string, path string) string {
	u := url.URL{Scheme: "ws", Host: rpcServer, Path: path}
	return u.String()
}

// streamEvents sends the request over a new session and prints every event
// until the daemon closes it.
func streamEvents(sessionURL string, req interface{}, w io.Writer) error {
	conn, _, err := websocket.DefaultDialer.Dial(sessionURL, nil)
	if err != nil {
		return errors.Errorf("Could not connect to splitpayd: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(req); err != nil {
		return errors.Errorf("Could not send request: %v", err)
	}

	var last event
	for {
		var e event
		err := conn.ReadJSON(&e)
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			break
		}
		if err != nil {
			return errors.Errorf("Could not read event: %v", err)
		}

		fmt.Fprintf(w, "%s %s\n", e.Event, e.Data)
		last = e
	}

	switch last.Event {
	case "error":
		return errors.Errorf("Session failed: %s", last.Data)
	case "failure":
		return errors.New("No success")
	}

	return nil
}

var probeCommand = &cli.Command{
	Name:    "probe",
	Aliases: []string{"p"},
	Usage:   "find paths and their liquidity towards a destination",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "destination", Usage: "public key of the destination"},
		&cli.StringFlag{Name: "request", Usage: "BOLT 11 payment request to probe for"},
		&cli.Uint64Flag{Name: "mtokens", Usage: "amount to probe with in millisatoshis"},
		&cli.IntFlag{Name: "max-paths", Usage: "maximum number of paths to discover"},
		&cli.UintFlag{Name: "cltv-delta", Usage: "final cltv delta of the destination"},
		&cli.UintFlag{Name: "max-timeout", Usage: "maximum timeout height of probed routes"},
		&cli.Uint64Flag{Name: "outgoing-channel", Usage: "only leave through this channel"},
		&cli.StringFlag{Name: "incoming-peer", Usage: "only arrive from this peer"},
	},
	Action: func(c *cli.Context) error {
		req := &probeRequest{
			CltvDelta:       uint32(c.Uint("cltv-delta")),
			Destination:     c.String("destination"),
			IncomingPeer:    c.String("incoming-peer"),
			MaxPaths:        c.Int("max-paths"),
			MaxTimeout:      uint32(c.Uint("max-timeout")),
			Mtokens:         c.Uint64("mtokens"),
			OutgoingChannel: c.Uint64("outgoing-channel"),
			Request:         c.String("request"),
		}

		return streamEvents(sessionURL(c.String("rpcserver"), "/v1/probe"), req, c.App.Writer)
	},
}

var payCommand = &cli.Command{
	Name:      "pay",
	ArgsUsage: "[request]",
	Usage:     "pay over multiple paths",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "destination", Usage: "public key of the destination"},
		&cli.StringFlag{Name: "id", Usage: "payment hash in hex"},
		&cli.StringFlag{Name: "payment", Usage: "payment identifier in hex"},
		&cli.Uint64Flag{Name: "mtokens", Usage: "amount to pay in millisatoshis"},
		&cli.Int64Flag{Name: "max-fee", Usage: "maximum total fee in satoshis", Required: true},
		&cli.IntFlag{Name: "max-paths", Usage: "maximum number of paths to pay over"},
		&cli.UintFlag{Name: "cltv-delta", Usage: "final cltv delta of the destination"},
		&cli.UintFlag{Name: "max-timeout", Usage: "maximum timeout height of payment routes"},
	},
	Action: func(c *cli.Context) error {
		req := &payRequest{
			CltvDelta:   uint32(c.Uint("cltv-delta")),
			Destination: c.String("destination"),
			Id:          c.String("id"),
			MaxFee:      c.Int64("max-fee"),
			MaxPaths:    c.Int("max-paths"),
			MaxTimeout:  uint32(c.Uint("max-timeout")),
			Mtokens:     c.Uint64("mtokens"),
			Payment:     c.String("payment"),
			Request:     c.Args().First(),
		}

		if req.Request == "" && req.Destination == "" {
			return errors.New("Expected payment request or destination")
		}

		return streamEvents(sessionURL(c.String("rpcserver"), "/v1/pay"), req, c.App.Writer)
	},
}

var infoCommand = &cli.Command{
	Name:  "info",
	Usage: "show information about splitpayd",
	Action: func(c *cli.Context) error {
		u := url.URL{Scheme: "http", Host: c.String("rpcserver"), Path: "/v1/info"}

		res, err := http.Get(u.String())
		if err != nil {
			return errors.Errorf("Could not connect to splitpayd: %v", err)
		}
		defer res.Body.Close()

		var info map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
			return errors.Errorf("Could not decode info: %v", err)
		}

		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(c.App.Writer, string(out))

		return nil
	},
}

// splitpayMain is the true entry point for splitpay. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func splitpayMain() error {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("version=%s commit=%s date=%s\n", version, commit, date)
	}

	app := &cli.App{
		Name:                 "splitpay",
		Usage:                "Probe and pay over multiple lightning paths",
		Version:              version,
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "rpcserver",
				Value: "localhost:5000",
			},
		},
		Commands: []*cli.Command{
			infoCommand,
			probeCommand,
			payCommand,
		},
	}

	return app.Run(os.Args)
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := splitpayMain(); err != nil {
		log.WithError(err).Println("Failed running splitpay.")
		os.Exit(1)
	}
}
