package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/arbor/internal/metrics"
)

// Message is an encoded delta stamped with the replica that produced it.
type Message struct {
	ID     string    `json:"id"`
	Origin string    `json:"origin"`
	Line   string    `json:"line"`
	At     time.Time `json:"at"`
}

// NewMessage wraps an encoded delta line.
func NewMessage(origin, line string) Message {
	return Message{ID: uuid.NewString(), Origin: origin, Line: line, At: time.Now().UTC()}
}

// Publisher delivers messages to other replicas.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, m Message) error

// Publish calls fn.
func (fn PublisherFunc) Publish(ctx context.Context, m Message) error { return fn(ctx, m) }

type target struct {
	name string
	pub  Publisher
}

// Fanout publishes every message to all registered transports. A failing
// transport does not stop delivery to the others.
type Fanout struct {
	logger  *slog.Logger
	targets []target
}

// NewFanout returns an empty fan-out. Register transports with Add before
// the first Publish.
func NewFanout(logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{logger: logger}
}

// Add registers a transport under name.
func (f *Fanout) Add(name string, p Publisher) *Fanout {
	f.targets = append(f.targets, target{name: name, pub: p})
	return f
}

// Len returns the number of registered transports.
func (f *Fanout) Len() int { return len(f.targets) }

// Publish delivers m to every transport and joins their errors.
func (f *Fanout) Publish(ctx context.Context, m Message) error {
	var errs []error
	for _, t := range f.targets {
		err := t.pub.Publish(ctx, m)
		metrics.DeltasPublished.WithLabelValues(t.name, metrics.Result(err)).Inc()
		if err != nil {
			f.logger.Warn("delta publish failed",
				slog.String("transport", t.name),
				slog.String("id", m.ID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}

// Dedup remembers the most recent message ids so a message that arrives over
// more than one transport is replayed once. It is not safe for concurrent use.
type Dedup struct {
	max   int
	order []string
	seen  map[string]struct{}
}

// NewDedup remembers up to size ids.
func NewDedup(size int) *Dedup {
	if size <= 0 {
		size = 1024
	}
	return &Dedup{max: size, seen: make(map[string]struct{}, size)}
}

// Seen records id and reports whether it had been recorded before.
func (d *Dedup) Seen(id string) bool {
	if _, ok := d.seen[id]; ok {
		return true
	}
	if len(d.order) == d.max {
		delete(d.seen, d.order[0])
		d.order = d.order[1:]
	}
	d.order = append(d.order, id)
	d.seen[id] = struct{}{}
	return false
}
