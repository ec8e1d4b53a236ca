package spool

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/arbor/internal/replication"
	"github.com/starford/arbor/internal/storage"
)

// SubmitFunc hands a message to the local replica.
type SubmitFunc func(ctx context.Context, m replication.Message) error

// Watch replays files other replicas write into the spool until ctx is
// cancelled. Files present when Watch starts are history the catalog already
// reflects and are skipped. Missed watcher events trigger a debounced rescan
// of the directory, and the replica's own expired files are pruned on every
// retention tick.
func (s *Spool) Watch(ctx context.Context, submit SubmitFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(s.root); err != nil {
		return err
	}

	seen := make(map[string]struct{})
	existing, err := s.store.List("")
	if err != nil {
		return err
	}
	for _, f := range existing {
		seen[f.Path] = struct{}{}
	}

	s.logger.Info("spool: watching",
		slog.String("dir", s.root),
		slog.Int("skipped_history", len(existing)),
	)

	deliver := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		info, ok := parseName(name)
		if ok && info.origin == s.origin {
			seen[name] = struct{}{}
			return
		}
		m, err := s.read(name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return
			}
			seen[name] = struct{}{}
			s.logger.Warn("spool: skip file", slog.String("file", name), slog.String("error", err.Error()))
			return
		}
		seen[name] = struct{}{}
		if err := submit(ctx, m); err != nil {
			s.logger.Warn("spool: submit failed",
				slog.String("file", name),
				slog.String("id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	// rescanTimer debounces directory rescans after watcher errors.
	var rescanTimer *time.Timer
	var rescanCh <-chan time.Time
	scheduleRescan := func() {
		if rescanTimer == nil {
			rescanTimer = time.NewTimer(200 * time.Millisecond)
			rescanCh = rescanTimer.C
		} else {
			rescanTimer.Reset(200 * time.Millisecond)
		}
	}

	prune := time.NewTicker(s.retention)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			if rescanTimer != nil {
				rescanTimer.Stop()
			}
			s.logger.Info("spool: stopped")
			return nil

		case <-rescanCh:
			files, err := s.store.List("")
			if err != nil {
				s.logger.Warn("spool: rescan failed", slog.String("error", err.Error()))
				continue
			}
			live := make(map[string]struct{}, len(files))
			for _, f := range files {
				live[f.Path] = struct{}{}
				deliver(f.Path)
			}
			// Forget files that have been pruned.
			for name := range seen {
				if _, ok := live[name]; !ok {
					delete(seen, name)
				}
			}

		case <-prune.C:
			n, err := s.Prune()
			if err != nil {
				s.logger.Warn("spool: prune failed", slog.String("error", err.Error()))
			} else if n > 0 {
				s.logger.Debug("spool: pruned", slog.Int("files", n))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, Ext) || strings.HasPrefix(name, storage.TempPrefix) {
				continue
			}
			deliver(name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("spool: watcher error", slog.String("error", watchErr.Error()))
			scheduleRescan()
		}
	}
}
