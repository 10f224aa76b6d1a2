package easyauction

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
)

// IntervalAwareForceTicker implements the Ticker interface, and provides a
// method of force-feeding ticks, even while paused. The phase watcher runs
// on it so tests can trigger a phase sweep without waiting out the
// interval.
type IntervalAwareForceTicker struct {
	isActive uint32 // used atomically

	// Force is used to force-feed a ticks into the ticker. Useful for
	// debugging when trying to wake an event.
	Force chan time.Time

	ticker <-chan time.Time
	skip   chan struct{}

	interval time.Duration

	wg   sync.WaitGroup
	quit chan struct{}
}

// A compile-time constraint to ensure IntervalAwareForceTicker satisfies the
// ticker.Ticker interface.
var _ ticker.Ticker = (*IntervalAwareForceTicker)(nil)

// NewIntervalAwareForceTicker returns a IntervalAwareForceTicker ticker. It
// supports the ability to force-feed events that get output by the channel
// returned by Ticks().
func NewIntervalAwareForceTicker(
	interval time.Duration) *IntervalAwareForceTicker {

	t := &IntervalAwareForceTicker{
		ticker:   time.NewTicker(interval).C,
		interval: interval,
		Force:    make(chan time.Time),
		skip:     make(chan struct{}),
		quit:     make(chan struct{}),
	}

	// Proxy the real ticks to our Force channel if we are active.
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case tick := <-t.ticker:
				if !t.IsActive() {
					continue
				}

				select {
				case t.Force <- tick:
				case <-t.skip:
				case <-t.quit:
					return
				}

			case <-t.quit:
				return
			}
		}
	}()

	return t
}

// Ticks returns a receive-only channel that delivers times at the ticker's
// prescribed interval when active. Force-fed ticks can be delivered at any
// time.
//
// NOTE: Part of the Ticker interface.
func (t *IntervalAwareForceTicker) Ticks() <-chan time.Time {
	return t.Force
}

// Resume causes the ticker to begin forwarding the scheduled events of the
// underlying time.Ticker, which runs from construction on.
//
// NOTE: Part of the Ticker interface.
func (t *IntervalAwareForceTicker) Resume() {
	atomic.StoreUint32(&t.isActive, 1)
}

// Pause stops forwarding the underlying ticker's events, such that Ticks()
// stops signaling at regular intervals.
//
// NOTE: Part of the Ticker interface.
func (t *IntervalAwareForceTicker) Pause() {
	atomic.StoreUint32(&t.isActive, 0)

	// If the ticker fired and read isActive as true, it may still send
	// the tick. We'll try to send on the skip channel to drop it.
	select {
	case t.skip <- struct{}{}:
	default:
	}
}

// Stop pauses the ticker and shuts down the forwarding goroutine, waiting
// for it to exit. The underlying time.Ticker itself is not stopped.
//
// NOTE: Part of the Ticker interface.
func (t *IntervalAwareForceTicker) Stop() {
	t.Pause()
	close(t.quit)
	t.wg.Wait()
}

// IsActive returns true if the timed ticks are currently forwarded to the
// Force channel.
func (t *IntervalAwareForceTicker) IsActive() bool {
	return atomic.LoadUint32(&t.isActive) == 1
}
