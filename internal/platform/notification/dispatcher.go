package notification

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultBuffer      = 256
	defaultMaxAttempts = 3
	defaultBackoff     = 100 * time.Millisecond
)

// Dispatcher queues alerts and fans each one out to every sender from a
// single worker goroutine. Senders are retried with exponential backoff.
type Dispatcher struct {
	logger      zerolog.Logger
	senders     []Sender
	queue       chan Alert
	done        chan struct{}
	maxAttempts int
	backoff     time.Duration

	mu     sync.RWMutex
	closed bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewDispatcher(logger zerolog.Logger, buffer int, senders ...Sender) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Dispatcher{
		logger:      logger,
		senders:     senders,
		queue:       make(chan Alert, buffer),
		done:        make(chan struct{}),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
}

// WithRetry overrides the per-sender attempt count and initial backoff.
func (d *Dispatcher) WithRetry(attempts int, backoff time.Duration) *Dispatcher {
	if attempts > 0 {
		d.maxAttempts = attempts
	}
	d.backoff = backoff
	return d
}

// Notify queues a without blocking. A full or closed queue drops the alert.
func (d *Dispatcher) Notify(a Alert) bool {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn().Str("entity_id", a.EntityID.String()).Msg("alert dropped: dispatcher closed")
		d.dropped.Add(1)
		return false
	}
	select {
	case d.queue <- a:
		return true
	default:
		d.logger.Warn().
			Str("entity_id", a.EntityID.String()).
			Str("new_tier", a.NewTier).
			Msg("alert dropped: queue full")
		d.dropped.Add(1)
		return false
	}
}

// Run delivers queued alerts until the dispatcher is closed and drained.
// Cancelling ctx is a hard stop: whatever is still queued is abandoned.
// Callers that want a graceful stop use Shutdown and keep ctx alive.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			if n := len(d.queue); n > 0 {
				d.logger.Warn().Int("queued", n).Msg("dispatcher stopped with undelivered alerts")
			}
			return
		case a, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, a)
		}
	}
}

// Close stops accepting alerts. Already queued alerts are still delivered by Run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
}

// Wait blocks until Run has returned.
func (d *Dispatcher) Wait() { <-d.done }

// Shutdown closes the queue and waits for Run to deliver what is left. It
// returns ctx.Err() if ctx expires first; Run keeps draining in that case.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.Close()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Queued    int   `json:"queued"`
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Queued:    len(d.queue),
	}
}

func (d *Dispatcher) deliver(ctx context.Context, a Alert) {
	for _, s := range d.senders {
		if err := d.sendWithRetry(ctx, s, a); err != nil {
			d.failed.Add(1)
			d.logger.Error().Err(err).
				Str("sender", s.Name()).
				Str("alert_id", a.ID.String()).
				Str("entity_id", a.EntityID.String()).
				Msg("alert delivery failed")
			continue
		}
		d.delivered.Add(1)
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, s Sender, a Alert) error {
	wait := d.backoff
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err = s.Send(ctx, a); err == nil {
			return nil
		}
		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
