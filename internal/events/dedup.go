package events

import (
	"strconv"
	"sync"
	"time"

	"github.com/runnerr0/runtimelog/internal/clock"
	"github.com/runnerr0/runtimelog/internal/logstore"
)

// DefaultWindow is how long a manual entry key is remembered.
const DefaultWindow = 3000 * time.Millisecond

// Deduper recognises repeated events.
//
// Ticks are compared only with the most recent tick's time label, so a
// tick repeating the label of an earlier, non-adjacent tick is not
// caught. Manual entries are keyed by ts, text and page and remembered for
// the window.
type Deduper struct {
	mu       sync.Mutex
	clock    clock.Clock
	window   time.Duration
	recent   map[string]time.Time
	lastTick string
	hasTick  bool
}

// NewDeduper returns a Deduper. A non-positive window uses DefaultWindow.
func NewDeduper(c clock.Clock, window time.Duration) *Deduper {
	if c == nil {
		c = clock.Real()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Deduper{clock: c, window: window, recent: make(map[string]time.Time)}
}

// IsDuplicate reports whether e was already seen. For ticks it also
// records e's time label as the last tick.
func (d *Deduper) IsDuplicate(e logstore.Entry, pageKey string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked()
	if e.IsTick() {
		if d.hasTick && d.lastTick == e.Time {
			return true
		}
		d.lastTick = e.Time
		d.hasTick = true
		return false
	}
	_, seen := d.recent[Key(e, pageKey)]
	return seen
}

// Commit remembers a non-tick entry that passed IsDuplicate.
func (d *Deduper) Commit(e logstore.Entry, pageKey string) {
	if e.IsTick() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent[Key(e, pageKey)] = d.clock.Now()
}

// Len returns the number of remembered manual keys.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.recent)
}

func (d *Deduper) pruneLocked() {
	now := d.clock.Now()
	for k, seen := range d.recent {
		if now.Sub(seen) > d.window {
			delete(d.recent, k)
		}
	}
}

// Key identifies a manual entry as "ts|text|pageKey". A zero ts renders
// as empty.
func Key(e logstore.Entry, pageKey string) string {
	ts := ""
	if e.TS != 0 {
		ts = strconv.FormatInt(e.TS, 10)
	}
	return ts + "|" + e.Text + "|" + pageKey
}
