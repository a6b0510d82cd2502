package capture

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
)

func newTestWaiter(quiet time.Duration) *idleWaiter {
	return &idleWaiter{
		quiet:    quiet,
		inflight: make(map[network.RequestID]struct{}),
		idle:     make(chan struct{}),
	}
}

func assertIdleWithin(t *testing.T, w *idleWaiter, d time.Duration) {
	t.Helper()
	select {
	case <-w.idle:
	case <-time.After(d):
		t.Fatal("expected idle signal, timed out")
	}
}

func assertNotIdleFor(t *testing.T, w *idleWaiter, d time.Duration) {
	t.Helper()
	select {
	case <-w.idle:
		t.Fatal("idle fired while requests were in flight")
	case <-time.After(d):
	}
}

func TestIdleWaiter_FiresWhenNothingInFlight(t *testing.T) {
	w := newTestWaiter(10 * time.Millisecond)
	w.arm()
	assertIdleWithin(t, w, time.Second)
}

func TestIdleWaiter_WaitsForInFlightRequests(t *testing.T) {
	w := newTestWaiter(10 * time.Millisecond)

	w.handle(&network.EventRequestWillBeSent{RequestID: "r1"})
	w.arm()
	assertNotIdleFor(t, w, 50*time.Millisecond)

	w.handle(&network.EventLoadingFinished{RequestID: "r1"})
	assertIdleWithin(t, w, time.Second)
}

func TestIdleWaiter_NewRequestResetsQuietWindow(t *testing.T) {
	w := newTestWaiter(50 * time.Millisecond)

	w.handle(&network.EventRequestWillBeSent{RequestID: "r1"})
	w.handle(&network.EventLoadingFinished{RequestID: "r1"})

	// A second request arriving inside the quiet window must cancel the
	// pending idle signal.
	w.handle(&network.EventRequestWillBeSent{RequestID: "r2"})
	assertNotIdleFor(t, w, 100*time.Millisecond)

	w.handle(&network.EventLoadingFailed{RequestID: "r2"})
	assertIdleWithin(t, w, time.Second)
}

func TestIdleWaiter_FailedRequestCountsAsFinished(t *testing.T) {
	w := newTestWaiter(10 * time.Millisecond)

	w.handle(&network.EventRequestWillBeSent{RequestID: "r1"})
	w.handle(&network.EventLoadingFailed{RequestID: "r1"})
	assertIdleWithin(t, w, time.Second)
}

func TestIdleWaiter_OverlappingRequests(t *testing.T) {
	w := newTestWaiter(10 * time.Millisecond)

	w.handle(&network.EventRequestWillBeSent{RequestID: "r1"})
	w.handle(&network.EventRequestWillBeSent{RequestID: "r2"})
	w.handle(&network.EventLoadingFinished{RequestID: "r1"})
	assertNotIdleFor(t, w, 50*time.Millisecond)

	w.handle(&network.EventLoadingFinished{RequestID: "r2"})
	assertIdleWithin(t, w, time.Second)
}

func TestIdleWaiter_WaitHonorsContextCancellation(t *testing.T) {
	w := newTestWaiter(time.Hour)
	w.handle(&network.EventRequestWillBeSent{RequestID: "r1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.wait().Do(ctx); err == nil {
		t.Error("expected context error from wait")
	}
}

func TestIdleWaiter_EventsAfterIdleIgnored(t *testing.T) {
	w := newTestWaiter(10 * time.Millisecond)
	w.arm()
	assertIdleWithin(t, w, time.Second)

	// Late events must not panic or re-close the channel.
	w.handle(&network.EventRequestWillBeSent{RequestID: "r9"})
	w.handle(&network.EventLoadingFinished{RequestID: "r9"})
}
