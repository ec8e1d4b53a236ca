package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/arbor/internal/replication"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventChange, Data: map[string]string{"family": "libraries"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: change") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"family":"libraries"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChange_TreeThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First change per family triggers tree.updated; the second one for the
	// same family inside the window does not.
	b.PublishChange("libraries", map[string]string{"op": "insert"})
	b.PublishChange("libraries", map[string]string{"op": "rename"})
	b.PublishChange("keywords", map[string]string{"op": "insert"})

	time.Sleep(50 * time.Millisecond)
	treeCount := 0
	changeCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, EventTreeUpdated) {
				treeCount++
			} else {
				changeCount++
			}
		default:
			break loop
		}
	}

	if changeCount != 3 {
		t.Errorf("change events = %d, want 3", changeCount)
	}
	if treeCount != 2 {
		t.Errorf("tree events = %d, want 2 (one per family)", treeCount)
	}
}

func TestTransportStreamsDeltas(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	m := replication.NewMessage("replica-a", "AL>|<libraries>|<1>|<0>|<>|<L")
	if err := b.Transport().Publish(context.Background(), m); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "event: delta\n") {
			t.Errorf("unexpected frame %q", s)
		}
		if !strings.Contains(s, `"origin":"replica-a"`) || !strings.Contains(s, m.ID) {
			t.Errorf("message fields missing in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delta")
	}

	b.Close()
	if err := b.Transport().Publish(context.Background(), m); err == nil {
		t.Error("publish after close should fail")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishChange("collections", map[string]string{"path": "Reel"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: change") || !strings.Contains(body, "event: tree.updated") {
		t.Errorf("handler output missing events: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: EventChange, Data: map[string]string{"path": "x"}})
	b.PublishChange("libraries", nil)
}
