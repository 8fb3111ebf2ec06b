package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/compose-network/token-bridge/internal/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDedupSize    = 4096
	DefaultPollInterval = 500 * time.Millisecond
)

type Config struct {
	PollInterval time.Duration
	DedupSize    int
}

// Relay is the asynchronous messaging adapter. It publishes what the core and
// the L2 outbox queue and delivers what it receives on the other side.
// Delivery is at-least-once; envelopes seen before are dropped.
type Relay struct {
	cfg     Config
	core    *messaging.Core
	outbox  *messaging.Outbox
	l2      messaging.L2Handler
	toL2    Transport
	toL1    Transport
	metrics *metrics.Metrics
	logger  *slog.Logger
	seen    *lru.Cache[string, struct{}]

	mu        sync.Mutex
	backlogL2 []messaging.MessageToL2
	backlogL1 []messaging.MessageToL1
}

func New(cfg Config, core *messaging.Core, outbox *messaging.Outbox, l2 messaging.L2Handler, toL2, toL1 Transport, m *metrics.Metrics) (*Relay, error) {
	if cfg.DedupSize <= 0 {
		cfg.DedupSize = DefaultDedupSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	seen, err := lru.New[string, struct{}](cfg.DedupSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup cache: %w", err)
	}
	return &Relay{
		cfg:     cfg,
		core:    core,
		outbox:  outbox,
		l2:      l2,
		toL2:    toL2,
		toL1:    toL1,
		metrics: m,
		logger:  logger.Named("relay"),
		seen:    seen,
	}, nil
}

// Run pumps messages until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.toL2.Subscribe(ctx, func(env Envelope) { r.Deliver(env) })
	})
	g.Go(func() error {
		return r.toL1.Subscribe(ctx, func(env Envelope) { r.Deliver(env) })
	})
	g.Go(func() error {
		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()
		for {
			if err := r.Publish(ctx); err != nil && ctx.Err() == nil {
				r.logger.With("err", err).Warn("failed to publish, will retry")
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	r.logger.With("poll_interval", r.cfg.PollInterval.String()).Info("relay started")
	err := g.Wait()
	r.logger.Info("relay stopped")
	return err
}

// Publish sends every queued message to its transport. Messages that fail to
// publish stay queued for the next call.
func (r *Relay) Publish(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backlogL2 = append(r.backlogL2, r.core.TakePending()...)
	r.backlogL1 = append(r.backlogL1, r.outbox.Take()...)

	for len(r.backlogL2) > 0 {
		env := NewL2Envelope(r.backlogL2[0])
		if err := r.toL2.Publish(ctx, env); err != nil {
			return fmt.Errorf("failed to publish l1 -> l2 message: %w", err)
		}
		r.backlogL2 = r.backlogL2[1:]
		r.logger.With("id", env.ID).With("nonce", env.ToL2.Nonce).Debug("l1 -> l2 message published")
	}
	for len(r.backlogL1) > 0 {
		env := NewL1Envelope(r.backlogL1[0])
		if err := r.toL1.Publish(ctx, env); err != nil {
			return fmt.Errorf("failed to publish l2 -> l1 message: %w", err)
		}
		r.backlogL1 = r.backlogL1[1:]
		r.logger.With("id", env.ID).Debug("l2 -> l1 message published")
	}
	return nil
}

// Deliver applies one received envelope. It returns the delivery error, if any;
// a failed envelope is not retried.
func (r *Relay) Deliver(env Envelope) error {
	if seen, _ := r.seen.ContainsOrAdd(env.ID, struct{}{}); seen {
		r.metrics.RecordDuplicate(string(env.Direction))
		r.logger.With("id", env.ID).Debug("dropping duplicate envelope")
		return nil
	}

	var err error
	switch {
	case env.Direction == ToL2 && env.ToL2 != nil:
		err = r.core.DeliverMessageToL2(*env.ToL2, r.l2)
		if err != nil {
			err = messaging.DeliveryError{Message: *env.ToL2, Err: err}
		}
	case env.Direction == ToL1 && env.ToL1 != nil:
		r.core.SendMessageFromL2(*env.ToL1)
	default:
		err = fmt.Errorf("%w: %s", ErrMalformedEnvelope, env.ID)
	}

	r.metrics.RecordRelay(string(env.Direction), err == nil)
	if err != nil {
		r.logger.With("id", env.ID).With("direction", env.Direction).With("err", err).Warn("failed to deliver envelope")
		return err
	}
	r.logger.With("id", env.ID).With("direction", env.Direction).Info("envelope delivered")
	return nil
}

// Flush delivers everything queued right away without going through the
// transports. Messages that cannot be delivered are reported and dropped.
func (r *Relay) Flush() error {
	r.mu.Lock()
	toL2 := append(r.backlogL2, r.core.TakePending()...)
	toL1 := append(r.backlogL1, r.outbox.Take()...)
	r.backlogL2, r.backlogL1 = nil, nil
	r.mu.Unlock()

	var errs []error
	for _, msg := range toL2 {
		if err := r.Deliver(NewL2Envelope(msg)); err != nil {
			errs = append(errs, err)
		}
	}
	for _, msg := range toL1 {
		if err := r.Deliver(NewL1Envelope(msg)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Relay) Close() error {
	return errors.Join(r.toL2.Close(), r.toL1.Close())
}
