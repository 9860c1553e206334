package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindowLimiter keeps one live counting window per key, in process
// memory. The roll-increment-compare sequence runs under the store lock so
// two concurrent requests for the same key can never both take the last
// slot. Entries idle for about two windows are evicted by the janitor.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	name    string
	limit   int
	window  time.Duration
	entries map[string]*windowEntry

	now func() time.Time // overridable in tests
}

type windowEntry struct {
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

func NewFixedWindow(name string, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		name:    name,
		limit:   limit,
		window:  window,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// Allow charges one request against the key's current window and reports
// whether it was admitted. A rejected request does not advance the counter
// past the limit.
func (f *FixedWindowLimiter) Allow(key string) bool {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	ent := f.roll(key, now)
	ent.lastSeen = now

	if ent.count >= f.limit {
		return false
	}

	ent.count++
	return true
}

// Refund returns one previously charged slot to the key's current window.
// Used only when the skip-failed-requests policy is enabled.
func (f *FixedWindowLimiter) Refund(key string) {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	ent, ok := f.entries[key]
	if !ok || now.Sub(ent.windowStart) >= f.window {
		return
	}
	if ent.count > 0 {
		ent.count--
	}
}

// Remaining reports how many requests the key has left in its current window.
func (f *FixedWindowLimiter) Remaining(key string) int {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	ent, ok := f.entries[key]
	if !ok || now.Sub(ent.windowStart) >= f.window {
		return f.limit
	}

	remaining := f.limit - ent.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Reset returns the time at which the key's current window elapses.
func (f *FixedWindowLimiter) Reset(key string) time.Time {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	ent, ok := f.entries[key]
	if !ok || now.Sub(ent.windowStart) >= f.window {
		return now
	}
	return ent.windowStart.Add(f.window)
}

func (f *FixedWindowLimiter) Name() string          { return f.name }
func (f *FixedWindowLimiter) Limit() int            { return f.limit }
func (f *FixedWindowLimiter) Window() time.Duration { return f.window }

// roll returns the entry for key, resetting it if its window has elapsed.
// Caller must hold f.mu.
func (f *FixedWindowLimiter) roll(key string, now time.Time) *windowEntry {
	ent, ok := f.entries[key]
	if !ok {
		ent = &windowEntry{windowStart: now}
		f.entries[key] = ent
		return ent
	}

	if now.Sub(ent.windowStart) >= f.window {
		ent.windowStart = now
		ent.count = 0
	}
	return ent
}

// Cleanup evicts entries not seen for about two windows. Keys accumulate one
// entry per distinct caller ever seen, so without this the map grows without
// bound.
func (f *FixedWindowLimiter) Cleanup() {
	cutoff := f.now().Add(-2 * f.window)

	f.mu.Lock()
	defer f.mu.Unlock()

	for key, ent := range f.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(f.entries, key)
		}
	}
}

// StartJanitor sweeps idle entries until ctx is cancelled.
func (f *FixedWindowLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = f.window
	}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.Cleanup()
			}
		}
	}()
}
