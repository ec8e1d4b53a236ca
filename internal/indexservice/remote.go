package indexservice

import (
	"context"
	"log/slog"

	"github.com/starford/arbor/internal/metrics"
	"github.com/starford/arbor/internal/replication"
)

// Submit queues a message from another replica for replay and returns
// without waiting for it. Messages this replica produced, and messages
// already replayed through another transport, are ignored.
func (s *Service) Submit(ctx context.Context, m replication.Message) error {
	if m.Origin == s.replica {
		return nil
	}
	return s.submit(ctx, func() { s.replay(m) })
}

// replay applies a remote delta. It never locks, persists or rebroadcasts:
// the originating replica did all three. Failures are logged and dropped.
func (s *Service) replay(m replication.Message) {
	if s.dedup.Seen(m.ID) {
		metrics.DeltasReplayed.WithLabelValues("unknown", "duplicate").Inc()
		return
	}
	d, err := replication.ApplyLine(s.replayer, m.Line)
	metrics.DeltasReplayed.WithLabelValues(d.Op.String(), metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Warn("delta replay failed",
			slog.String("id", m.ID),
			slog.String("origin", m.Origin),
			slog.String("line", m.Line),
			slog.String("error", err.Error()),
		)
		return
	}
	s.refreshGauges()
	s.notify(Change{
		Op:     d.Op.String(),
		Family: d.Family().String(),
		Path:   d.Path,
		Line:   m.Line,
		Origin: m.Origin,
	})
}
