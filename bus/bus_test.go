// bus/bus_test.go
package bus

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(Topic{"config", "hal"})

	conn.Publish(conn.NewMessage(Topic{"config", "hal"}, "hello", false))

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "hello" {
			t.Errorf("expected payload 'hello', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(Topic{"hal", "state"}, "persist", true))

	sub := conn.Subscribe(Topic{"hal", "state"})

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "persist" {
			t.Errorf("expected retained payload 'persist', got %v", got.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for retained message")
	}
}

func TestMixedTokenTypes(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("hal", "capability", "temperature", 0, "value"))
	c.Publish(b.NewMessage(Topic{"hal", "capability", "temperature", 0, "value"}, 231, false))

	select {
	case got := <-sub.Channel():
		if got.Payload.(int) != 231 {
			t.Errorf("payload = %v, want 231", got.Payload)
		}
		if id, ok := got.Topic[3].(int); !ok || id != 0 {
			t.Errorf("topic id token = %v", got.Topic[3])
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

// -----------------------------------------------------------------------------
// Wildcards
// -----------------------------------------------------------------------------

func TestWildcardSingleLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	s1 := c.Subscribe(Topic{"hal", "+", "value"})
	s2 := c.Subscribe(Topic{"hal", "+", "+"})
	s3 := c.Subscribe(Topic{"hal", "temperature", "+"})
	sNo := c.Subscribe(Topic{"hal", "+", "state"})

	c.Publish(b.NewMessage(Topic{"hal", "temperature", "value"}, "m1", false))

	expectPayload(t, s1, "m1")
	expectPayload(t, s2, "m1")
	expectPayload(t, s3, "m1")
	expectNothing(t, sNo)

	c.Publish(b.NewMessage(Topic{"hal", "humidity", "info"}, "m2", false))

	expectPayload(t, s2, "m2")
	expectNothing(t, s1)
	expectNothing(t, s3)
	expectNothing(t, sNo)

	// A "+" never spans levels.
	c.Publish(b.NewMessage(Topic{"hal", "value"}, "m3", false))
	expectNothing(t, s1)
	expectNothing(t, s2)
	expectNothing(t, s3)
	expectNothing(t, sNo)
}

func TestWildcardMultiLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sAHash := c.Subscribe(Topic{"hal", "#"})
	sHash := c.Subscribe(Topic{"#"})
	sABHash := c.Subscribe(Topic{"hal", "env", "#"})
	sAExact := c.Subscribe(Topic{"hal"})

	c.Publish(b.NewMessage(Topic{"hal"}, "p1", false))
	expectPayload(t, sAHash, "p1")
	expectPayload(t, sHash, "p1")
	expectPayload(t, sAExact, "p1")
	expectNothing(t, sABHash)

	c.Publish(b.NewMessage(Topic{"hal", "env"}, "p2", false))
	expectPayload(t, sAHash, "p2")
	expectPayload(t, sHash, "p2")
	expectPayload(t, sABHash, "p2")
	expectNothing(t, sAExact)

	c.Publish(b.NewMessage(Topic{"hal", "env", "temperature"}, "p3", false))
	expectPayload(t, sAHash, "p3")
	expectPayload(t, sHash, "p3")
	expectPayload(t, sABHash, "p3")
	expectNothing(t, sAExact)
}

func TestWildcardRetainedDelivery(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(Topic{"hal"}, "r0", true))
	c.Publish(b.NewMessage(Topic{"hal", "env"}, "r1", true))
	c.Publish(b.NewMessage(Topic{"hal", "env", "temperature"}, "r2", true))
	c.Publish(b.NewMessage(Topic{"hal", "state"}, "r3", true))

	sAll := c.Subscribe(Topic{"hal", "#"})
	assertUnorderedEqual(t, drainPayloads(t, sAll, 4), []string{"r0", "r1", "r2", "r3"})

	sPlusHash := c.Subscribe(Topic{"hal", "+", "#"})
	assertUnorderedEqual(t, drainPayloads(t, sPlusHash, 3), []string{"r1", "r2", "r3"})

	sPlus := c.Subscribe(Topic{"hal", "+"})
	assertUnorderedEqual(t, drainPayloads(t, sPlus, 2), []string{"r1", "r3"})
}

func TestRetainedClear(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(Topic{"hal", "env"}, "keep", true))
	c.Publish(b.NewMessage(Topic{"hal", "state"}, "other", true))

	// nil payload clears the retained slot.
	c.Publish(b.NewMessage(Topic{"hal", "env"}, nil, true))

	s := c.Subscribe(Topic{"hal", "#"})
	got := drainPayloads(t, s, 1)
	if len(got) != 1 || got[0] != "other" {
		t.Fatalf("expected only 'other' after clear, got %v", got)
	}
}

// -----------------------------------------------------------------------------
// Request–Reply
// -----------------------------------------------------------------------------

func TestRequestReplyWait(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("requester")
	respConn := b.NewConnection("responder")

	reqTopic := Topic{"hal", "capability", "temperature", 0, "control", "read_now"}
	respSub := respConn.Subscribe(reqTopic)
	defer respConn.Unsubscribe(respSub)

	go func() {
		if msg, ok := <-respSub.Channel(); ok {
			respConn.Reply(msg, "OK", false)
		}
	}()

	req := b.NewMessage(reqTopic, nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	reply, err := reqConn.RequestWait(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error waiting for reply: %v", err)
	}
	if got, ok := reply.Payload.(string); !ok || got != "OK" {
		t.Fatalf("unexpected reply payload: %#v", reply.Payload)
	}
	if len(req.ReplyTo) == 0 {
		t.Fatal("request lacks ReplyTo after RequestWait")
	}
}

func TestRequestReplyTimeout(t *testing.T) {
	b := NewBus(8)
	reqConn := b.NewConnection("requester")

	req := b.NewMessage(Topic{"service", "noop"}, nil, false)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := reqConn.RequestWait(ctx, req); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestInvalidTokenPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for non-comparable token, got none")
		}
	}()

	// []byte is not comparable, so T must panic.
	_ = T([]byte{1, 2, 3})
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func expectPayload(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNothing(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if s, ok := m.Payload.(string); ok {
				out = append(out, s)
			} else {
				t.Fatalf("non-string payload in drain: %#v", m.Payload)
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		t.Fatalf("drainPayloads: expected %d messages, got %d (%v)", n, len(out), out)
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %v, want %v", i, got, want)
		}
	}
}
