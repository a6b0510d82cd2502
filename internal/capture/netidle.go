package capture

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// idleWaiter tracks in-flight network requests on a browser target and
// signals once nothing has been in flight for a quiet window. Chrome's CDP
// has no ready-made network-idle event, so this reconstructs one from the
// request lifecycle events.
type idleWaiter struct {
	quiet time.Duration

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	timer    *time.Timer
	done     bool
	idle     chan struct{}
}

// newIdleWaiter registers a listener on the target behind ctx and returns a
// waiter whose wait action blocks until the network has been idle for quiet.
// Must be created before navigation starts so the document request itself is
// observed.
func newIdleWaiter(ctx context.Context, quiet time.Duration) *idleWaiter {
	w := &idleWaiter{
		quiet:    quiet,
		inflight: make(map[network.RequestID]struct{}),
		idle:     make(chan struct{}),
	}
	chromedp.ListenTarget(ctx, w.handle)
	return w
}

func (w *idleWaiter) handle(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		w.add(e.RequestID)
	case *network.EventLoadingFinished:
		w.finish(e.RequestID)
	case *network.EventLoadingFailed:
		w.finish(e.RequestID)
	}
}

func (w *idleWaiter) add(id network.RequestID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.inflight[id] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *idleWaiter) finish(id network.RequestID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	delete(w.inflight, id)
	if len(w.inflight) == 0 {
		w.restartTimerLocked()
	}
}

func (w *idleWaiter) restartTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.quiet, w.fire)
}

func (w *idleWaiter) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done || len(w.inflight) > 0 {
		return
	}
	w.done = true
	close(w.idle)
}

// wait returns an action that blocks until the quiet window elapses with no
// in-flight requests, or the context is cancelled.
func (w *idleWaiter) wait() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		w.arm()
		select {
		case <-w.idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// arm starts the quiet timer if nothing is currently in flight, covering the
// case where all requests completed before wait was reached.
func (w *idleWaiter) arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done || len(w.inflight) > 0 {
		return
	}
	w.restartTimerLocked()
}
