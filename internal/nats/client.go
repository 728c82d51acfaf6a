// Package nats provides NATS JetStream client management and the domain
// event publisher.
package nats

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/pkg/logger"
)

const (
	clientName       = "wpp-customer-service"
	reconnectWait    = 2 * time.Second
	reconnectBufSize = 8 << 20
)

// Config holds NATS connection configuration. TLS is enabled only when all
// three file paths are set.
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

func (c Config) mutualTLS() bool {
	return c.CAFile != "" && c.CertFile != "" && c.KeyFile != ""
}

// Client owns the NATS connection used to publish conversation events.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect dials the server and opens a JetStream context on it.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	log = log.Named("nats")

	opts, err := connectOptions(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open jetstream: %w", err)
	}

	log.Info("connected to NATS", zap.String("url", conn.ConnectedUrl()))
	return &Client{conn: conn, js: js, logger: log}, nil
}

func connectOptions(ctx context.Context, cfg Config, log *logger.Logger) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.ReconnectBufSize(reconnectBufSize),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("event bus disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("event bus reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			fields := []zap.Field{zap.Error(err)}
			if sub != nil {
				fields = append(fields, zap.String("subject", sub.Subject))
			}
			log.Error("event bus error", fields...)
		}),
	}

	if cfg.mutualTLS() {
		tlsConfig, err := loadTLS(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}
	return opts, nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Close flushes pending publishes before closing. A failed drain falls back
// to an immediate close.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("drain failed", zap.Error(err))
		c.conn.Close()
	}
}

// IsConnected reports whether the connection is currently usable.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

func loadTLS(cfg Config) (*tls.Config, error) {
	pem, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read nats CA: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, errors.New("nats CA file contains no certificates")
	}

	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load nats client certificate: %w", err)
	}

	return &tls.Config{
		RootCAs:      roots,
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
