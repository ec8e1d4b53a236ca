// Package indexservice owns a replica's forest. Every read, local mutation
// and remote replay runs as a job on a single goroutine, so the index package
// itself never needs a lock.
package indexservice

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/starford/arbor/internal/catalog"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/metrics"
	"github.com/starford/arbor/internal/replication"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("indexservice: closed")

// Change describes a mutation that reached the forest, local or replayed.
type Change struct {
	Op     string     `json:"op"`
	Family string     `json:"family"`
	Path   index.Path `json:"path"`
	Line   string     `json:"line"`
	Origin string     `json:"origin"`
	Local  bool       `json:"local"`
}

// Listener observes changes on the owner goroutine. It must not block and
// must not call back into the service.
type Listener func(Change)

type job struct {
	fn   func()
	done chan struct{}
}

// Service serializes access to one forest.
type Service struct {
	replica   string
	forest    *index.Forest
	engine    *index.Engine
	replayer  *index.Engine
	store     catalog.Store
	pub       replication.Publisher
	listeners []Listener
	logger    *slog.Logger
	queueSize int
	dedup     *replication.Dedup
	held      []int

	jobs    chan job
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithReplicaID names this replica in lock ownership and outgoing messages.
func WithReplicaID(id string) Option {
	return func(s *Service) { s.replica = id }
}

// WithCatalog backs the service with a catalog: sort orders, keyword mirrors,
// record locks and persistence of local mutations.
func WithCatalog(store catalog.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithPublisher sets where local deltas are broadcast.
func WithPublisher(p replication.Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithListener registers an observer of applied changes.
func WithListener(l Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, l) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithQueueSize sets how many jobs may wait for the owner goroutine.
func WithQueueSize(n int) Option {
	return func(s *Service) { s.queueSize = n }
}

// New creates a service with an empty forest and starts its owner goroutine.
func New(opts ...Option) *Service {
	s := &Service{
		replica:   "local",
		forest:    index.NewForest(),
		logger:    slog.Default(),
		queueSize: 256,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Replays find keyword-example mirrors in the forest itself: by the time a
	// delete arrives the originating replica has already dropped the catalog
	// rows that point at them.
	if s.store != nil {
		s.engine = index.NewEngine(s.forest, index.WithOrderSource(s.store), index.WithMirrorSource(s.store))
		s.replayer = index.NewEngine(s.forest, index.WithOrderSource(s.store))
	} else {
		s.engine = index.NewEngine(s.forest)
		s.replayer = s.engine
	}
	s.dedup = replication.NewDedup(4 * s.queueSize)
	s.jobs = make(chan job, s.queueSize)
	s.stopCh = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.run()
	return s
}

// ReplicaID returns the id stamped on outgoing messages.
func (s *Service) ReplicaID() string { return s.replica }

func (s *Service) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.stopCh:
			return
		case j := <-s.jobs:
			metrics.QueueDepth.Set(float64(len(s.jobs)))
			j.fn()
			if j.done != nil {
				close(j.done)
			}
		}
	}
}

// Close stops the owner goroutine. Queued jobs that have not started are
// dropped.
func (s *Service) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	<-s.stopped
}

// do runs fn on the owner goroutine and waits for it to finish. ctx only
// bounds the wait for a queue slot; a started job always completes.
func (s *Service) do(ctx context.Context, fn func()) error {
	if s.closed.Load() {
		return ErrClosed
	}
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case s.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrClosed
	}
	select {
	case <-j.done:
		return nil
	case <-s.stopped:
		return ErrClosed
	}
}

// submit queues fn without waiting for it.
func (s *Service) submit(ctx context.Context, fn func()) error {
	if s.closed.Load() {
		return ErrClosed
	}
	select {
	case s.jobs <- job{fn: fn}:
		metrics.QueueDepth.Set(float64(len(s.jobs)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrClosed
	}
}

func (s *Service) notify(c Change) {
	for _, l := range s.listeners {
		l(c)
	}
}

// Load rebuilds the catalog-backed trees from the catalog. Without a catalog
// it is a no-op.
func (s *Service) Load(ctx context.Context) (index.LoadStats, error) {
	var (
		stats index.LoadStats
		err   error
	)
	if s.store == nil {
		return stats, nil
	}
	if doErr := s.do(ctx, func() {
		stats, err = index.Load(s.forest, s.store)
		if err == nil {
			s.refreshGauges()
		}
	}); doErr != nil {
		return stats, doErr
	}
	if err != nil {
		return stats, err
	}
	// Locks left behind by a previous run of this replica.
	if n, err := s.store.ReleaseAll(s.replica); err != nil {
		s.logger.Warn("release stale locks failed", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.Info("released stale locks", slog.Int("count", n))
	}
	s.logger.Info("index loaded",
		slog.Int("loaded", stats.Loaded),
		slog.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func (s *Service) updateGauge(fam index.Family) {
	metrics.Nodes.WithLabelValues(fam.String()).Set(float64(s.forest.Len(fam)))
}
