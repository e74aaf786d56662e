package service

import (
	"strconv"
	"sync"
	"time"
)

// ticketKey is the debounce key of every outbound prompt of a ticket. The
// channel greeting and the queue prompt share it, so a queue prompt
// scheduled during the greeting window replaces the pending greeting.
func ticketKey(ticketID int64) string {
	return strconv.FormatInt(ticketID, 10)
}

// Debouncer runs at most one pending callback per key. A new call for a
// key replaces the pending callback and restarts its delay, so only the
// last call of a burst runs.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]*debounceEntry
	nextGen uint64
	stopped bool
	wg      sync.WaitGroup
}

type debounceEntry struct {
	gen   uint64
	timer *time.Timer
}

func NewDebouncer() *Debouncer {
	return &Debouncer{pending: make(map[string]*debounceEntry)}
}

// Debounce schedules fn to run after delay under key, discarding any
// callback still pending for the same key. Calls after Stop are ignored.
func (d *Debouncer) Debounce(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if prev, ok := d.pending[key]; ok {
		if prev.timer.Stop() {
			d.wg.Done()
		}
	}

	d.nextGen++
	gen := d.nextGen
	entry := &debounceEntry{gen: gen}
	d.wg.Add(1)
	entry.timer = time.AfterFunc(delay, func() {
		defer d.wg.Done()
		if !d.claim(key, gen) {
			return
		}
		fn()
	})
	d.pending[key] = entry
}

// claim removes the entry for key when it still belongs to generation gen.
// A stale timer that fired while being replaced loses the race here.
func (d *Debouncer) claim(key string, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[key]
	if !ok || entry.gen != gen {
		return false
	}
	delete(d.pending, key)
	return !d.stopped
}

// Cancel drops the callback pending for key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.pending[key]; ok {
		if entry.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, key)
	}
}

// Pending reports whether a callback is scheduled for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Stop cancels every pending callback and waits for callbacks already
// running to return.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key, entry := range d.pending {
		if entry.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, key)
	}
	d.mu.Unlock()

	d.wg.Wait()
}
