// Package spool is a replication transport over a directory every replica
// can reach. Each delta is written atomically as its own file; replicas
// watch the directory and replay files written by others.
package spool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/starford/arbor/internal/checksum"
	"github.com/starford/arbor/internal/replication"
	"github.com/starford/arbor/internal/storage"
)

// Ext is the extension of delta files.
const Ext = ".delta"

// ErrCorrupt means a spool file does not match the checksum in its name or
// cannot be decoded.
var ErrCorrupt = errors.New("spool: corrupt delta file")

// Spool publishes deltas into a shared directory and replays other
// replicas' deltas from it.
type Spool struct {
	store     storage.Provider
	root      string
	origin    string
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Spool.
type Option func(*Spool)

// WithRetention sets how long this replica's own files stay in the spool.
func WithRetention(d time.Duration) Option {
	return func(s *Spool) { s.retention = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Spool) { s.logger = l }
}

// New opens the spool at dir, creating it when missing. origin is this
// replica's id; files it writes are never replayed locally.
func New(dir, origin string, opts ...Option) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool: mkdir %s: %w", dir, err)
	}
	fs, err := storage.NewFS(dir, Ext)
	if err != nil {
		return nil, err
	}
	s := &Spool{
		store:     fs,
		root:      fs.Root(),
		origin:    origin,
		retention: time.Hour,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retention <= 0 {
		s.retention = time.Hour
	}
	return s, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string { return s.root }

// fileName is <unix nanos>_<origin>_<checksum>.delta. The zero-padded time
// prefix makes lexical order the write order.
func (s *Spool) fileName(at time.Time, data []byte) string {
	return fmt.Sprintf("%020d_%s_%s%s", at.UnixNano(), s.origin, checksum.Short(data), Ext)
}

type fileInfo struct {
	at     time.Time
	origin string
	sum    string
}

func parseName(name string) (fileInfo, bool) {
	base := strings.TrimSuffix(filepath.Base(name), Ext)
	first := strings.Index(base, "_")
	last := strings.LastIndex(base, "_")
	if first <= 0 || last <= first {
		return fileInfo{}, false
	}
	nanos, err := strconv.ParseInt(base[:first], 10, 64)
	if err != nil {
		return fileInfo{}, false
	}
	return fileInfo{
		at:     time.Unix(0, nanos),
		origin: base[first+1 : last],
		sum:    base[last+1:],
	}, true
}

// Publish writes m as a new spool file.
func (s *Spool) Publish(_ context.Context, m replication.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("spool: marshal %s: %w", m.ID, err)
	}
	if err := s.store.Write(s.fileName(s.now(), data), data); err != nil {
		return fmt.Errorf("spool: publish %s: %w", m.ID, err)
	}
	return nil
}

// read loads and verifies one spool file.
func (s *Spool) read(name string) (replication.Message, error) {
	info, ok := parseName(name)
	if !ok {
		return replication.Message{}, fmt.Errorf("spool: %s: bad name: %w", name, ErrCorrupt)
	}
	data, err := s.store.Read(name)
	if err != nil {
		return replication.Message{}, err
	}
	if !checksum.Matches(info.sum, data) {
		return replication.Message{}, fmt.Errorf("spool: %s: checksum mismatch: %w", name, ErrCorrupt)
	}
	var m replication.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return replication.Message{}, fmt.Errorf("spool: %s: %v: %w", name, err, ErrCorrupt)
	}
	return m, nil
}

// Prune deletes this replica's files written before the retention window
// and returns how many were removed. Other replicas prune their own.
func (s *Spool) Prune() (int, error) {
	files, err := s.store.List("")
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, f := range files {
		info, ok := parseName(f.Path)
		if !ok || info.origin != s.origin || !info.at.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(f.Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
