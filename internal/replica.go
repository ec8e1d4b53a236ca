package internal

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/arbor/internal/catalog"
	"github.com/starford/arbor/internal/indexservice"
	"github.com/starford/arbor/internal/peer"
	"github.com/starford/arbor/internal/replication"
	"github.com/starford/arbor/internal/spool"
	"github.com/starford/arbor/internal/sse"
)

// replica bundles the catalog, the index service and its transports.
type replica struct {
	cfg    *Config
	logger *slog.Logger
	db     *catalog.DB
	broker *sse.Broker
	spool  *spool.Spool
	peers  []*peer.Client
	svc    *indexservice.Service

	outboxes []*replication.Outbox
}

func newReplica(cfg *Config, logger *slog.Logger) (*replica, error) {
	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	r := &replica{
		cfg:    cfg,
		logger: logger,
		db:     db,
		broker: sse.NewBroker(cfg.SSE.TreeThrottle),
	}

	fanout := replication.NewFanout(logger).Add("sse", r.broker.Transport())

	if cfg.Spool.Enabled {
		r.spool, err = spool.New(cfg.Spool.Dir, cfg.Replica.ID,
			spool.WithRetention(cfg.Spool.Retention),
			spool.WithLogger(logger),
		)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("init spool: %w", err)
		}
		fanout.Add("spool", r.outbox("spool", r.spool, logger))
	}

	for _, u := range cfg.Peers.URLs {
		c := peer.New(u,
			peer.WithToken(cfg.Peers.Token),
			peer.WithTimeout(cfg.Peers.Timeout),
			peer.WithReconnectInterval(cfg.Peers.ReconnectInterval),
			peer.WithLogger(logger),
		)
		r.peers = append(r.peers, c)
		if cfg.Peers.Pushes() {
			fanout.Add("peer", r.outbox("peer", c, logger.With(slog.String("peer", u))))
		}
	}

	r.svc = indexservice.New(
		indexservice.WithReplicaID(cfg.Replica.ID),
		indexservice.WithCatalog(db),
		indexservice.WithPublisher(fanout),
		indexservice.WithListener(func(c indexservice.Change) {
			r.broker.PublishChange(c.Family, c)
		}),
		indexservice.WithQueueSize(cfg.Replica.QueueSize),
		indexservice.WithLogger(logger),
	)

	logger.Info("replica ready",
		slog.String("replica_id", cfg.Replica.ID),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("transports", fanout.Len()),
		slog.Bool("spool", cfg.Spool.Enabled),
		slog.Int("peers", len(r.peers)),
		slog.String("peer_mode", cfg.Peers.Mode),
	)
	return r, nil
}

// outbox moves delivery to pub off the index owner goroutine.
func (r *replica) outbox(name string, pub replication.Publisher, logger *slog.Logger) *replication.Outbox {
	o := replication.NewOutbox(name, pub, r.cfg.Replica.QueueSize, logger)
	r.outboxes = append(r.outboxes, o)
	return o
}

// load builds the index from the catalog.
func (r *replica) load(ctx context.Context) error {
	if _, err := r.svc.Load(ctx); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	return nil
}

// receive starts the inbound transports on g. They stop when ctx is done.
func (r *replica) receive(ctx context.Context, g *errgroup.Group) {
	if r.spool != nil {
		g.Go(func() error {
			if err := r.spool.Watch(ctx, r.svc.Submit); err != nil && ctx.Err() == nil {
				return fmt.Errorf("spool watch: %w", err)
			}
			return nil
		})
	}
	if !r.cfg.Peers.Follows() {
		return
	}
	for _, c := range r.peers {
		g.Go(func() error {
			r.logger.Info("following peer", slog.String("peer", c.Base()))
			return c.Follow(ctx, r.svc.Submit)
		})
	}
}

func (r *replica) close() {
	if r.svc != nil {
		r.svc.Close()
	}
	for _, o := range r.outboxes {
		o.Close()
	}
	r.broker.Close()
	if err := r.db.Close(); err != nil {
		r.logger.Warn("close catalog", slog.String("error", err.Error()))
	}
}
