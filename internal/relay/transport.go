package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/nats-io/nats.go"
)

var ErrTransportClosed = errors.New("transport closed")

// Transport moves envelopes of one direction between the chains.
type Transport interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe calls handler for every envelope until ctx is done.
	Subscribe(ctx context.Context, handler func(Envelope)) error
	Close() error
}

// MemoryTransport is an in-process buffered transport.
type MemoryTransport struct {
	ch     chan Envelope
	once   sync.Once
	closed chan struct{}
}

func NewMemoryTransport(buffer int) *MemoryTransport {
	return &MemoryTransport{ch: make(chan Envelope, buffer), closed: make(chan struct{})}
}

func (t *MemoryTransport) Publish(ctx context.Context, env Envelope) error {
	select {
	case <-t.closed:
		return ErrTransportClosed
	default:
	}
	select {
	case t.ch <- env:
		return nil
	case <-t.closed:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *MemoryTransport) Subscribe(ctx context.Context, handler func(Envelope)) error {
	for {
		select {
		case env := <-t.ch:
			handler(env)
		case <-t.closed:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (t *MemoryTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

type NATSConfig struct {
	URL            string
	Subject        string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
}

// NATSTransport publishes JSON envelopes on a NATS subject.
type NATSTransport struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewNATSTransport(cfg NATSConfig) (*NATSTransport, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	log := logger.Named("nats_transport").With("subject", cfg.Subject)

	conn, err := nats.Connect(cfg.URL,
		nats.Name("token-bridge-relay"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.With("err", err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.With("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.URL, err)
	}
	return &NATSTransport{conn: conn, subject: cfg.Subject, logger: log}, nil
}

func (t *NATSTransport) Publish(_ context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	if err := t.conn.Publish(t.subject, data); err != nil {
		return fmt.Errorf("failed to publish envelope %s: %w", env.ID, err)
	}
	return nil
}

func (t *NATSTransport) Subscribe(ctx context.Context, handler func(Envelope)) error {
	msgs := make(chan *nats.Msg, 256)
	sub, err := t.conn.ChanSubscribe(t.subject, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", t.subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			t.logger.With("err", err).Warn("failed to unsubscribe")
		}
	}()

	for {
		select {
		case msg := <-msgs:
			var env Envelope
			if err := json.Unmarshal(msg.Data, &env); err != nil {
				t.logger.With("err", err).Warn("dropping malformed envelope")
				continue
			}
			handler(env)
		case <-ctx.Done():
			return nil
		}
	}
}

func (t *NATSTransport) Close() error {
	if err := t.conn.Drain(); err != nil {
		t.conn.Close()
		return fmt.Errorf("failed to drain nats connection: %w", err)
	}
	return nil
}
