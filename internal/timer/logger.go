// Package timer implements the per-page runtime logger: an elapsed-time
// stopwatch that writes periodic ticks and manual entries to the log store
// and publishes them on the event bus.
package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runnerr0/runtimelog/internal/clock"
	"github.com/runnerr0/runtimelog/internal/events"
	"github.com/runnerr0/runtimelog/internal/logstore"
)

// DefaultTickInterval is the period between ticks while running.
const DefaultTickInterval = 30 * time.Second

// FinishedText is the text of the entry written by Stop.
const FinishedText = "[FINISHED]"

// ResetText is the text of the entry written by Reset.
const ResetText = "reset"

// Store is the subset of *logstore.Store the logger needs.
type Store interface {
	Read(pageKey string) []logstore.Entry
	AppendOnto(pageKey string, working []logstore.Entry, e logstore.Entry) []logstore.Entry
	Replace(pageKey string, entries []logstore.Entry) []logstore.Entry
	Touch(pageKey string)
	ClearPage(pageKey string)
	ClearAll()
	ExportText(target string) string
	Pages() []logstore.PageInfo
	Location() *time.Location
}

// LogOptions adjusts a single log call.
type LogOptions struct {
	// NoDispatch persists the entry without publishing it.
	NoDispatch bool
	Tag        string
}

// Logger is a stopwatch bound to one page. States: idle (never started),
// running and stopped. Elapsed time accumulates across start/stop cycles
// until Reset.
//
// All methods are safe for concurrent use. Failures are logged, never
// returned or panicked into the caller.
type Logger struct {
	mu sync.Mutex

	id        string
	pageKey   string
	store     Store
	bus       *events.Bus
	presenter events.Presenter
	clock     clock.Clock
	interval  time.Duration
	log       *zap.Logger

	running   bool
	startTime time.Time
	elapsed   time.Duration
	ticker    clock.Timer
	gen       uint64
	logs      []logstore.Entry
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock sets the time source for timestamps and ticks.
func WithClock(c clock.Clock) Option {
	return func(l *Logger) { l.clock = c }
}

// WithBus publishes entries on b instead of events.Default().
func WithBus(b *events.Bus) Option {
	return func(l *Logger) { l.bus = b }
}

// WithPresenter sets the presenter used for the stop entry and selector
// refreshes. Live lines reach it through the dispatcher.
func WithPresenter(p events.Presenter) Option {
	return func(l *Logger) { l.presenter = p }
}

// WithTickInterval overrides DefaultTickInterval. Non-positive d is ignored.
func WithTickInterval(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithLogger sets the logger for recovered failures.
func WithLogger(z *zap.Logger) Option {
	return func(l *Logger) {
		if z != nil {
			l.log = z
		}
	}
}

// New creates an idle Logger for pageKey, loading the page's stored
// entries and registering the page.
func New(pageKey string, store Store, opts ...Option) *Logger {
	l := &Logger{
		id:       uuid.NewString(),
		pageKey:  pageKey,
		store:    store,
		clock:    clock.Real(),
		interval: DefaultTickInterval,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.bus == nil {
		l.bus = events.Default()
	}
	l.log = l.log.With(zap.String("page", pageKey), zap.String("logger", l.id))

	l.guard("init", func() {
		l.logs = store.Read(pageKey)
		store.Touch(pageKey)
	})
	l.refreshSelector()
	return l
}

// ID returns the logger's instance id.
func (l *Logger) ID() string { return l.id }

// PageKey returns the page the logger writes to.
func (l *Logger) PageKey() string { return l.pageKey }

// Running reports whether the stopwatch is running.
func (l *Logger) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start begins timing, writes an immediate tick and schedules one every
// tick interval. It does nothing if already running.
func (l *Logger) Start() {
	var ev *events.Event
	l.guard("start", func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.running {
			return
		}
		l.running = true
		l.startTime = l.clock.Now()
		l.gen++
		ev = l.tickLocked()
		l.scheduleLocked(l.gen)
	})
	l.publish(ev)
}

// Stop folds the running time into the elapsed total, cancels ticking and
// writes a "[FINISHED]" entry tagged stop. The entry is not published; it
// is handed to the presenter directly when the presenter shows this page.
// Stop does nothing when not running.
func (l *Logger) Stop() {
	var entry *logstore.Entry
	l.guard("stop", func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if !l.running {
			return
		}
		now := l.clock.Now()
		l.elapsed += now.Sub(l.startTime)
		l.running = false
		l.startTime = time.Time{}
		l.cancelLocked()

		e := l.appendLocked(FinishedText, logstore.TagStop, now)
		entry = &e
	})
	if entry == nil || l.presenter == nil {
		return
	}
	l.guard("stop_presenter", func() {
		if !events.Shows(l.presenter, l.pageKey) {
			return
		}
		if err := l.presenter.AppendLine(*entry, l.pageKey); err != nil {
			l.log.Warn("presenter_append_failed", zap.Error(err))
		}
	})
}

// Reset zeroes the elapsed total (restarting the running interval if
// running) and logs "reset".
func (l *Logger) Reset() {
	l.guard("reset", func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.elapsed = 0
		if l.running {
			l.startTime = l.clock.Now()
		}
	})
	l.Log(ResetText)
}

// Close cancels a pending tick without writing anything. The logger can
// be started again afterwards.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		l.elapsed += l.clock.Now().Sub(l.startTime)
		l.running = false
		l.startTime = time.Time{}
	}
	l.cancelLocked()
}

// Log writes a manual entry and publishes it.
func (l *Logger) Log(text any) logstore.Entry {
	return l.LogWith(text, LogOptions{})
}

// LogWith writes an entry with the given options.
func (l *Logger) LogWith(text any, opts LogOptions) logstore.Entry {
	var ev *events.Event
	var entry logstore.Entry
	l.guard("log", func() {
		msg := coerceText(text)
		l.mu.Lock()
		defer l.mu.Unlock()
		entry = l.appendLocked(msg, opts.Tag, l.clock.Now())
		if !opts.NoDispatch {
			ev = &events.Event{Entry: entry, PageKey: l.pageKey}
		}
	})
	l.publish(ev)
	return entry
}

// ElapsedMs returns the accumulated elapsed time in milliseconds.
func (l *Logger) ElapsedMs() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.elapsedLocked(l.clock.Now()).Milliseconds()
}

// ElapsedLabel returns the elapsed time as HH:MM:SS.
func (l *Logger) ElapsedLabel() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return FormatElapsed(l.elapsedLocked(l.clock.Now()))
}

// Logs returns a copy of the current page's entries.
func (l *Logger) Logs() []logstore.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]logstore.Entry, len(l.logs))
	copy(out, l.logs)
	return out
}

// LogsFor returns the stored entries of any page.
func (l *Logger) LogsFor(pageKey string) []logstore.Entry {
	var out []logstore.Entry
	l.guard("logs_for", func() { out = l.store.Read(pageKey) })
	return out
}

// ClearLogs empties the current page's list and bumps its lastSeen.
func (l *Logger) ClearLogs() {
	l.guard("clear", func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.logs = l.store.Replace(l.pageKey, nil)
		l.store.Touch(l.pageKey)
	})
	l.refreshSelector()
}

// ClearLogsFor removes a page's logs and registry entry.
func (l *Logger) ClearLogsFor(pageKey string) {
	l.guard("clear_for", func() {
		l.store.ClearPage(pageKey)
		if pageKey == l.pageKey {
			l.mu.Lock()
			l.logs = []logstore.Entry{}
			l.mu.Unlock()
		}
	})
	l.refreshSelector()
}

// ClearAll removes every page's logs and empties the registry.
func (l *Logger) ClearAll() {
	l.guard("clear_all", func() {
		l.store.ClearAll()
		l.mu.Lock()
		l.logs = []logstore.Entry{}
		l.mu.Unlock()
	})
	l.refreshSelector()
}

// ExportText renders target (a page key or logstore.AllPages) as text.
// An empty target means the logger's own page.
func (l *Logger) ExportText(target string) string {
	if target == "" {
		target = l.pageKey
	}
	var out string
	l.guard("export_text", func() { out = l.store.ExportText(target) })
	return out
}

// ExportCSV renders the current page's meaningful entries as CSV.
func (l *Logger) ExportCSV() string {
	return logstore.ExportCSV(l.Logs())
}

// Pages returns every registered page, most recently seen first.
func (l *Logger) Pages() []logstore.PageInfo {
	var out []logstore.PageInfo
	l.guard("pages", func() { out = l.store.Pages() })
	return out
}

func (l *Logger) elapsedLocked(now time.Time) time.Duration {
	total := l.elapsed
	if l.running {
		total += now.Sub(l.startTime)
	}
	return total
}

func (l *Logger) tickLocked() *events.Event {
	e := l.appendLocked("", logstore.TagTick, l.clock.Now())
	return &events.Event{Entry: e, PageKey: l.pageKey}
}

func (l *Logger) appendLocked(text, tag string, now time.Time) logstore.Entry {
	e := logstore.Entry{
		TS:       now.UnixMilli(),
		Datetime: logstore.FormatDateTime(now.In(l.store.Location())),
		Time:     FormatElapsed(l.elapsedLocked(now)),
		Text:     text,
		Tag:      tag,
	}
	l.logs = l.store.AppendOnto(l.pageKey, l.logs, e)
	return e
}

func (l *Logger) scheduleLocked(gen uint64) {
	l.ticker = l.clock.AfterFunc(l.interval, func() { l.onTick(gen) })
}

func (l *Logger) cancelLocked() {
	l.gen++
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
}

// onTick runs on the ticker. A fire from a cancelled generation is ignored.
func (l *Logger) onTick(gen uint64) {
	var ev *events.Event
	l.guard("tick", func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if !l.running || gen != l.gen {
			return
		}
		ev = l.tickLocked()
		l.scheduleLocked(gen)
	})
	l.publish(ev)
}

func (l *Logger) publish(ev *events.Event) {
	if ev == nil {
		return
	}
	l.guard("publish", func() { l.bus.Publish(*ev) })
}

func (l *Logger) refreshSelector() {
	if l.presenter == nil {
		return
	}
	l.guard("refresh_selector", func() {
		if err := l.presenter.RefreshSelector(); err != nil {
			l.log.Warn("presenter_refresh_failed", zap.Error(err))
		}
	})
}

// guard runs fn, logging a recovered panic instead of propagating it.
func (l *Logger) guard(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Warn("logger_"+op+"_failed", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
