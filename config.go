package main

import (
	"fmt"
	"github.com/go-errors/errors"
	"github.com/jessevdk/go-flags"
	"github.com/the-lightning-land/splitpay/liquidity"
	"github.com/the-lightning-land/splitpay/payments"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultRPCPort = 5000
)

type lndNodeConfig struct {
	RpcServer    string `long:"rpcserver" description:"host:port of ln daemon"`
	MacaroonPath string `long:"macaroonpath" description:"path to macaroon file"`
	TlsCertPath  string `long:"tlscertpath" description:"path to TLS certificate"`
}

type probeConfig struct {
	MaxPaths int           `long:"maxpaths" description:"Maximum number of paths to discover per probe"`
	Delay    time.Duration `long:"delay" description:"Pause between probes while measuring a path"`
	Accuracy int64         `long:"accuracy" description:"Precision in satoshis of the measured path liquidity"`
}

type payConfig struct {
	MaxAttempts int           `long:"maxattempts" description:"Maximum number of rounds of a multi-path payment"`
	CltvDelta   uint32        `long:"cltvdelta" description:"Final cltv delta when the payment does not specify one"`
	RetryDelay  time.Duration `long:"retrydelay" description:"Initial pause between payment rounds"`
}

type config struct {
	ShowVersion  bool     `short:"v" long:"version" description:"Display version information and exit."`
	Debug        bool     `long:"debug" description:"Start in debug mode."`
	Node         string   `long:"node" description:"The node that should pay." choice:"lnd"`
	RawListeners []string `long:"listen" description:"Add an interface/port/socket to listen for RPC connections"`
	Listeners    []net.Addr
	LndNode      *lndNodeConfig `group:"LND" namespace:"lnd"`
	Probe        *probeConfig   `group:"Probe" namespace:"probe"`
	Pay          *payConfig     `group:"Pay" namespace:"pay"`
}

func loadConfig() (*config, error) {
	return parseConfig(os.Args[1:])
}

func parseConfig(args []string) (*config, error) {
	defaultCfg := config{
		Debug: false,
		Node:  "lnd",
		LndNode: &lndNodeConfig{
			RpcServer:    "localhost:10009",
			MacaroonPath: "admin.macaroon",
			TlsCertPath:  "tls.cert",
		},
		Probe: &probeConfig{
			MaxPaths: liquidity.DefaultMaxPaths,
			Delay:    liquidity.DefaultEvaluationDelay,
			Accuracy: int64(liquidity.DefaultAccuracy),
		},
		Pay: &payConfig{
			MaxAttempts: payments.DefaultMaxAttempts,
			CltvDelta:   payments.DefaultCltvDelta,
		},
	}

	preCfg := defaultCfg

	if _, err := flags.ParseArgs(&preCfg, args); err != nil {
		return nil, err
	}

	if preCfg.Probe.MaxPaths <= 0 {
		return nil, errors.Errorf("Expected at least one path to probe, got %v", preCfg.Probe.MaxPaths)
	}

	if preCfg.Probe.Accuracy <= 0 {
		return nil, errors.Errorf("Expected positive probe accuracy, got %v", preCfg.Probe.Accuracy)
	}

	cfg := preCfg

	cfg.LndNode.MacaroonPath = cleanAndExpandPath(cfg.LndNode.MacaroonPath)
	cfg.LndNode.TlsCertPath = cleanAndExpandPath(cfg.LndNode.TlsCertPath)

	// Listen on the default interface/port if no listeners were specified.
	// An empty address string means default interface/address, which on
	// most unix systems is the same as 0.0.0.0.
	if len(cfg.RawListeners) == 0 {
		addr := fmt.Sprintf(":%d", defaultRPCPort)
		cfg.RawListeners = append(cfg.RawListeners, addr)
	}

	cfg.Listeners = make([]net.Addr, 0, len(cfg.RawListeners))
	for _, addr := range cfg.RawListeners {
		parsedAddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return nil, err
		}

		cfg.Listeners = append(cfg.Listeners, parsedAddr)
	}

	return &cfg, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
