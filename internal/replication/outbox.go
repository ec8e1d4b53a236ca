package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/starford/arbor/internal/metrics"
)

var (
	// ErrOutboxFull means a message was dropped because the transport fell
	// too far behind.
	ErrOutboxFull = errors.New("outbox full")
	// ErrOutboxClosed means the outbox no longer accepts messages.
	ErrOutboxClosed = errors.New("outbox closed")
)

// Outbox queues messages for one transport and delivers them in order from
// its own goroutine. Publish never waits on the transport.
//
// Concurrency model: the delivery loop is the only caller of the wrapped
// Publisher. Publish hands messages over a buffered channel and drops them
// when the buffer is full.
type Outbox struct {
	name   string
	pub    Publisher
	logger *slog.Logger

	queue   chan Message
	ctx     context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewOutbox starts delivering to pub. size is the number of messages that
// may wait while pub is busy.
func NewOutbox(name string, pub Publisher, size int, logger *slog.Logger) *Outbox {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Outbox{
		name:    name,
		pub:     pub,
		logger:  logger,
		queue:   make(chan Message, size),
		ctx:     ctx,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Outbox) run() {
	defer close(o.stopped)
	for {
		select {
		case <-o.stopCh:
			// Whatever is still buffered gets one attempt with the cancelled
			// context, so network transports give up at once.
			for {
				select {
				case m := <-o.queue:
					o.deliver(m)
				default:
					return
				}
			}
		case m := <-o.queue:
			o.deliver(m)
		}
	}
}

func (o *Outbox) deliver(m Message) {
	err := o.pub.Publish(o.ctx, m)
	metrics.DeltasDelivered.WithLabelValues(o.name, metrics.Result(err)).Inc()
	if err != nil {
		o.logger.Warn("delta delivery failed",
			slog.String("transport", o.name),
			slog.String("id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Publish queues m. It fails with ErrOutboxFull instead of blocking.
func (o *Outbox) Publish(_ context.Context, m Message) error {
	if o.closed.Load() {
		return fmt.Errorf("replication: %s: %w", o.name, ErrOutboxClosed)
	}
	select {
	case o.queue <- m:
		return nil
	default:
		return fmt.Errorf("replication: %s dropped %s: %w", o.name, m.ID, ErrOutboxFull)
	}
}

// Close stops the delivery loop, aborting a delivery in flight, and waits
// for it to exit.
func (o *Outbox) Close() {
	if o.closed.CompareAndSwap(false, true) {
		o.cancel()
		close(o.stopCh)
	}
	<-o.stopped
}
