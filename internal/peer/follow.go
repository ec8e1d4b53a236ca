package peer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/arbor/internal/replication"
)

// SubmitFunc hands a message to the local replica.
type SubmitFunc func(ctx context.Context, m replication.Message) error

const eventDelta = "delta"

// Follow subscribes to the remote replica's event stream and submits every
// delta event until ctx is cancelled. Dropped streams are reopened, paced by
// the reconnect limiter.
func (c *Client) Follow(ctx context.Context, submit SubmitFunc) error {
	c.logger.Info("peer: following", slog.String("peer", c.base))
	for {
		if err := c.reconnect.Wait(ctx); err != nil {
			c.logger.Info("peer: stopped following", slog.String("peer", c.base))
			return nil
		}
		err := c.stream(ctx, submit)
		if ctx.Err() != nil {
			c.logger.Info("peer: stopped following", slog.String("peer", c.base))
			return nil
		}
		if err != nil {
			c.logger.Warn("peer: stream dropped",
				slog.String("peer", c.base),
				slog.String("error", err.Error()),
			)
		}
	}
}

// stream reads one connection to completion.
func (c *Client) stream(ctx context.Context, submit SubmitFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	// The push timeout must not cut a long-lived stream.
	hc := *c.http
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer: events from %s: unexpected status %d", c.base, resp.StatusCode)
	}

	return readEvents(resp.Body, func(event, data string) {
		if event != eventDelta {
			return
		}
		var m replication.Message
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			c.logger.Warn("peer: bad delta event", slog.String("peer", c.base), slog.String("error", err.Error()))
			return
		}
		if err := submit(ctx, m); err != nil {
			c.logger.Warn("peer: submit failed",
				slog.String("peer", c.base),
				slog.String("id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	})
}

// readEvents parses a text/event-stream body and calls fn for every
// dispatched event. Multi-line data fields are joined with "\n".
func readEvents(r io.Reader, fn func(event, data string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	var (
		event string
		data  []string
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(data) > 0 {
				if event == "" {
					event = "message"
				}
				fn(event, strings.Join(data, "\n"))
			}
			event, data = "", nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return io.ErrUnexpectedEOF
}
