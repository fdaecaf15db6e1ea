package main

import (
	"context"
	"fmt"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-errors/errors"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/splitpay/lndc"
	"github.com/the-lightning-land/splitpay/metrics"
	"github.com/the-lightning-land/splitpay/splitter"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	version string
	// Stores the date of this build. This should be set using -ldflags during compilation.
	date string
)

// splitpaydMain is the true entry point for splitpayd. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func splitpaydMain() error {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("version=%s commit=%s date=%s\n", version, commit, date)
		return nil
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	log.Debug("Starting splitpayd...")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", version, commit)
	log.Infof("Built on %s", date)

	client, err := lndc.NewClient(&lndc.Config{
		TlsCertPath:  cfg.LndNode.TlsCertPath,
		RpcServer:    cfg.LndNode.RpcServer,
		MacaroonPath: cfg.LndNode.MacaroonPath,
	})
	if err != nil {
		return errors.Errorf("Could not create lnd client: %v", err)
	}

	if err := client.Start(); err != nil {
		return errors.Errorf("Could not start lnd client: %v", err)
	}
	defer client.Stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s, err := splitter.NewSplitter(&splitter.Config{
		Logger: log.StandardLogger(),
		SessionLogger: func(id string) splitter.Logger {
			return log.WithField("session", id)
		},
		Client:  client,
		Metrics: metrics.New(registry),
		Defaults: splitter.Defaults{
			MaxPaths:        cfg.Probe.MaxPaths,
			EvaluationDelay: cfg.Probe.Delay,
			Accuracy:        btcutil.Amount(cfg.Probe.Accuracy),
			MaxAttempts:     cfg.Pay.MaxAttempts,
			CltvDelta:       cfg.Pay.CltvDelta,
			RetryDelay:      cfg.Pay.RetryDelay,
		},
	})
	if err != nil {
		return errors.Errorf("Could not create splitter: %v", err)
	}

	identityPubKey, err := s.IdentityPubKey(context.Background())
	if err != nil {
		return errors.Errorf("Could not reach lightning node: %v", err)
	}

	log.Infof("Paying from node %v", identityPubKey)

	server := newRPCServer(&rpcServerConfig{
		splitter: s,
		gatherer: registry,
		version:  version,
		commit:   commit,
	})

	var servers []*http.Server
	for _, addr := range cfg.Listeners {
		listener, err := net.Listen(addr.Network(), addr.String())
		if err != nil {
			return errors.Errorf("Could not listen on %v: %v", addr, err)
		}

		httpServer := &http.Server{
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, httpServer)

		go func() {
			log.Infof("RPC server listening on %v", listener.Addr())

			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Errorf("RPC server failed: %v", err)
			}
		}()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-interrupt
		log.Infof("Received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, httpServer := range servers {
			if err := httpServer.Shutdown(ctx); err != nil {
				log.Warnf("Could not shut down RPC server: %v", err)
			}
		}

		s.Stop()
	}()

	return s.Run()
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := splitpaydMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			log.WithError(err).Println("Failed running splitpayd.")
		}
		os.Exit(1)
	}
}
