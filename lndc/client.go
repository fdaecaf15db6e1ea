package lndc

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/pkg/errors"
	"github.com/the-lightning-land/splitpay/node"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"os"
)

const maxMsgRecvSize = 50 * 1024 * 1024

// Client talks to lnd over its lightning and router services.
type Client struct {
	conn      *grpc.ClientConn
	lightning lnrpc.LightningClient
	router    routerrpc.RouterClient
	macaroon  string
}

var _ node.Lightning = (*Client)(nil)

type Config struct {
	TlsCertPath  string
	RpcServer    string
	MacaroonPath string
}

func NewClient(config *Config) (*Client, error) {
	cert, err := makeTlsCertFromPath(config.TlsCertPath)
	if err != nil {
		return nil, errors.Errorf("Could not make TLS cert: %v", err)
	}

	creds := credentials.NewClientTLSFromCert(cert, "")

	conn, err := grpc.Dial(config.RpcServer,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxMsgRecvSize)),
	)
	if err != nil {
		return nil, errors.Errorf("Could not connect to lightning node: %v", err)
	}

	macaroon, err := makeMacaroonFromPath(config.MacaroonPath)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Errorf("Could not make macaroon: %v", err)
	}

	return &Client{
		conn:      conn,
		lightning: lnrpc.NewLightningClient(conn),
		router:    routerrpc.NewRouterClient(conn),
		macaroon:  macaroon,
	}, nil
}

func (client *Client) Start() error {
	return nil
}

func (client *Client) Stop() error {
	if client.conn == nil {
		return nil
	}

	return client.conn.Close()
}

// auth attaches the macaroon to an outgoing call.
func (client *Client) auth(ctx context.Context) context.Context {
	if client.macaroon == "" {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx, "macaroon", client.macaroon)
}

func makeTlsCertFromPath(path string) (*x509.CertPool, error) {
	certBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("Could not read tls cert %v", path)
	}

	cert := x509.NewCertPool()
	if ok := cert.AppendCertsFromPEM(certBytes); ok {
		return cert, nil
	}

	// Bare base64 without PEM armor
	fullCertBytes := append([]byte("-----BEGIN CERTIFICATE-----\n"), certBytes...)
	fullCertBytes = append(fullCertBytes, []byte("\n-----END CERTIFICATE-----")...)
	if ok := cert.AppendCertsFromPEM(fullCertBytes); !ok {
		return nil, errors.New("Could not parse tls cert.")
	}

	return cert, nil
}

func makeMacaroonFromPath(path string) (string, error) {
	macaroonBytes, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Errorf("Could not read macaroon %v", path)
	}

	return hex.EncodeToString(macaroonBytes), nil
}
