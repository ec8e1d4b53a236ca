package replication

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

// stall returns a publisher that blocks until release is closed or its
// context ends, recording the lines it delivered.
func stall(release <-chan struct{}) (Publisher, <-chan struct{}, func() []string) {
	var (
		mu  sync.Mutex
		got []string
	)
	started := make(chan struct{}, 16)
	pub := PublisherFunc(func(ctx context.Context, m Message) error {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
		mu.Lock()
		got = append(got, m.Line)
		mu.Unlock()
		return nil
	})
	lines := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(got)
	}
	return pub, started, lines
}

func TestOutboxDoesNotWaitForTransport(t *testing.T) {
	release := make(chan struct{})
	pub, started, lines := stall(release)
	o := NewOutbox("peer", pub, 1, nil)
	defer o.Close()
	ctx := context.Background()

	begin := time.Now()
	if err := o.Publish(ctx, NewMessage("a", "one")); err != nil {
		t.Fatalf("Publish one: %v", err)
	}
	<-started
	if err := o.Publish(ctx, NewMessage("a", "two")); err != nil {
		t.Fatalf("Publish two: %v", err)
	}
	if err := o.Publish(ctx, NewMessage("a", "three")); !errors.Is(err, ErrOutboxFull) {
		t.Errorf("Publish three err = %v, want ErrOutboxFull", err)
	}
	if took := time.Since(begin); took > time.Second {
		t.Errorf("Publish waited %s for a stalled transport", took)
	}

	close(release)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(lines()) < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	if got := lines(); !slices.Equal(got, []string{"one", "two"}) {
		t.Errorf("delivered %v, want [one two]", got)
	}
}

func TestOutboxCloseAbortsStalledDelivery(t *testing.T) {
	pub, started, _ := stall(make(chan struct{}))
	o := NewOutbox("peer", pub, 4, nil)
	if err := o.Publish(context.Background(), NewMessage("a", "one")); err != nil {
		t.Fatal(err)
	}
	<-started

	done := make(chan struct{})
	go func() {
		o.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close hung on a stalled transport")
	}
	o.Close()
	if err := o.Publish(context.Background(), NewMessage("a", "two")); !errors.Is(err, ErrOutboxClosed) {
		t.Errorf("Publish after Close err = %v", err)
	}
}

func TestFanoutReturnsBeforeStalledTransport(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	pub, _, _ := stall(release)
	o := NewOutbox("peer", pub, 8, nil)
	defer o.Close()

	var local []string
	f := NewFanout(nil).
		Add("peer", o).
		Add("sse", PublisherFunc(func(_ context.Context, m Message) error {
			local = append(local, m.Line)
			return nil
		}))

	begin := time.Now()
	for range 3 {
		if err := f.Publish(context.Background(), NewMessage("a", "AL>|<libraries>|<1>|<0>|<>|<L")); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if took := time.Since(begin); took > time.Second {
		t.Errorf("fan-out waited %s for a stalled peer", took)
	}
	if len(local) != 3 {
		t.Errorf("sse got %d deltas, want 3", len(local))
	}
}
