// bus/cmd/selftest/main.go
//
// On-device smoke test for the message bus. Flash it (or run it on the
// host) and watch the serial log; every step prints PASS or FAIL.
package main

import (
	"context"
	"sort"
	"time"

	"envnode-go/bus"
)

func pass(name string) { println("PASS", name) }
func fail(name, why string) {
	println("FAIL", name, "-", why)
}

func expectPayload(sub *bus.Subscription, want string, timeout time.Duration) (bool, string) {
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			return false, "unexpected payload"
		}
		return true, ""
	case <-time.After(timeout):
		return false, "timeout"
	}
}

func expectNoMessage(sub *bus.Subscription, timeout time.Duration) (bool, string) {
	select {
	case <-sub.Channel():
		return false, "unexpected message"
	case <-time.After(timeout):
		return true, ""
	}
}

func drainPayloads(sub *bus.Subscription, n int, deadline time.Time) ([]string, bool, string) {
	var out []string
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			if s, ok := m.Payload.(string); ok {
				out = append(out, s)
			} else {
				return nil, false, "non-string payload"
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		return out, false, "drain count mismatch"
	}
	return out, true, ""
}

func unorderedEqual(got, want []string) bool {
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func main() {
	// Let USB CDC settle when running on a board.
	time.Sleep(2 * time.Second)
	println("bus selftest starting")

	b := bus.NewBus(8)
	pub := b.NewConnection("pub")
	subC := b.NewConnection("sub")

	// 1. Basic delivery.
	s1 := subC.Subscribe(bus.T("hal", "state"))
	pub.Publish(pub.NewMessage(bus.T("hal", "state"), "ready", false))
	if ok, why := expectPayload(s1, "ready", time.Second); ok {
		pass("basic delivery")
	} else {
		fail("basic delivery", why)
	}
	subC.Unsubscribe(s1)

	// 2. Retained catch-up.
	pub.Publish(pub.NewMessage(bus.T("config", "heartbeat"), "retained!", true))
	s2 := subC.Subscribe(bus.T("config", "heartbeat"))
	if ok, why := expectPayload(s2, "retained!", time.Second); ok {
		pass("retained catch-up")
	} else {
		fail("retained catch-up", why)
	}
	subC.Unsubscribe(s2)

	// 3. Single-level wildcard.
	s3 := subC.Subscribe(bus.T("hal", "capability", "+", "value"))
	pub.Publish(pub.NewMessage(bus.T("hal", "capability", "temperature", "value"), "t", false))
	pub.Publish(pub.NewMessage(bus.T("hal", "capability", "humidity", "value"), "h", false))
	got, ok, why := drainPayloads(s3, 2, time.Now().Add(time.Second))
	if ok && unorderedEqual(got, []string{"t", "h"}) {
		pass("single-level wildcard")
	} else {
		fail("single-level wildcard", why)
	}
	// Deeper topics must not match "+".
	pub.Publish(pub.NewMessage(bus.T("hal", "capability", "temperature", "0", "value"), "deep", false))
	if ok, why := expectNoMessage(s3, 100*time.Millisecond); ok {
		pass("wildcard depth limit")
	} else {
		fail("wildcard depth limit", why)
	}
	subC.Unsubscribe(s3)

	// 4. Multi-level wildcard.
	s4 := subC.Subscribe(bus.T("hal", "#"))
	pub.Publish(pub.NewMessage(bus.T("hal", "capability", "temperature", "0", "value"), "deep", false))
	if ok, why := expectPayload(s4, "deep", time.Second); ok {
		pass("multi-level wildcard")
	} else {
		fail("multi-level wildcard", why)
	}
	subC.Unsubscribe(s4)

	// 5. Request/reply round trip.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	server := b.NewConnection("server")
	sReq := server.Subscribe(bus.T("hal", "control"))
	go func() {
		m := <-sReq.Channel()
		server.Reply(m, "pong", false)
	}()
	if reply, err := pub.RequestWait(ctx, pub.NewMessage(bus.T("hal", "control"), "ping", false)); err == nil {
		if s, ok := reply.Payload.(string); ok && s == "pong" {
			pass("request/reply")
		} else {
			fail("request/reply", "bad reply payload")
		}
	} else {
		fail("request/reply", err.Error())
	}
	cancel()

	println("bus selftest done")
}
