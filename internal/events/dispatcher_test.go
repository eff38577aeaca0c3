package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/runnerr0/runtimelog/internal/clock"
	"github.com/runnerr0/runtimelog/internal/logstore"
)

type fakeRegistry struct{ touched []string }

func (r *fakeRegistry) Touch(pageKey string) { r.touched = append(r.touched, pageKey) }

type fakePresenter struct {
	selection  string
	refreshes  int
	lines      []string
	refreshErr error
	panicOnAdd bool
}

func (p *fakePresenter) Selection() string { return p.selection }

func (p *fakePresenter) RefreshSelector() error {
	p.refreshes++
	return p.refreshErr
}

func (p *fakePresenter) AppendLine(e logstore.Entry, pageKey string) error {
	if p.panicOnAdd {
		panic("render failed")
	}
	p.lines = append(p.lines, pageKey+" "+e.Time+" "+e.Text)
	return nil
}

type fakeMirror struct{ lines []string }

func (m *fakeMirror) Live(e logstore.Entry, pageKey string) error {
	m.lines = append(m.lines, e.Time+" "+e.Text)
	return nil
}

func newTestDispatcher(t *testing.T, p *fakePresenter) (*Dispatcher, *fakeRegistry, *fakeMirror, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	reg := &fakeRegistry{}
	mirror := &fakeMirror{}
	opts := []DispatcherOption{WithMirror(mirror), WithDeduper(NewDeduper(fake, DefaultWindow))}
	if p != nil {
		opts = append(opts, WithPresenter(p))
	}
	return NewDispatcher(reg, opts...), reg, mirror, fake
}

func TestDeduper_Ticks(t *testing.T) {
	d := NewDeduper(clock.NewFake(time.Unix(0, 0)), 0)

	assert.False(t, d.IsDuplicate(logstore.Entry{Time: "00:00:00"}, "/a"))
	assert.True(t, d.IsDuplicate(logstore.Entry{Time: "00:00:00"}, "/a"))
	assert.True(t, d.IsDuplicate(logstore.Entry{Time: "00:00:00"}, "/b"), "tick labels are not page scoped")
	assert.False(t, d.IsDuplicate(logstore.Entry{Time: "00:00:30"}, "/a"))
	// Only the single last tick is compared.
	assert.False(t, d.IsDuplicate(logstore.Entry{Time: "00:00:00"}, "/a"))
}

func TestDeduper_ManualWindow(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	d := NewDeduper(fake, DefaultWindow)
	e := logstore.Entry{TS: 1000000, Time: "00:00:01", Text: "hello"}

	require.False(t, d.IsDuplicate(e, "/a"))
	d.Commit(e, "/a")

	fake.Advance(2999 * time.Millisecond)
	assert.True(t, d.IsDuplicate(e, "/a"), "within window")
	assert.False(t, d.IsDuplicate(e, "/b"), "different page")

	fake.Advance(2 * time.Millisecond)
	assert.False(t, d.IsDuplicate(e, "/a"), "beyond window")
	assert.Equal(t, 0, d.Len(), "expired keys are pruned")
}

func TestDeduper_CommitIgnoresTicks(t *testing.T) {
	d := NewDeduper(nil, 0)
	d.Commit(logstore.Entry{Time: "00:00:00"}, "/a")
	assert.Equal(t, 0, d.Len())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "12|hi|/a", Key(logstore.Entry{TS: 12, Text: "hi"}, "/a"))
	assert.Equal(t, "|hi|/a", Key(logstore.Entry{Text: "hi"}, "/a"))
}

func TestDispatcher_RunsAllSideEffects(t *testing.T) {
	p := &fakePresenter{selection: "/a"}
	d, reg, mirror, _ := newTestDispatcher(t, p)

	d.Handle(Event{Entry: logstore.Entry{TS: 1, Time: "00:00:01", Text: "hello"}, PageKey: "/a"})

	assert.Equal(t, []string{"/a"}, reg.touched)
	assert.Equal(t, 1, p.refreshes)
	assert.Equal(t, []string{"/a 00:00:01 hello"}, p.lines)
	assert.Equal(t, []string{"00:00:01 hello"}, mirror.lines)
}

func TestDispatcher_PresenterSelection(t *testing.T) {
	p := &fakePresenter{selection: "/other"}
	d, _, mirror, _ := newTestDispatcher(t, p)

	d.Handle(Event{Entry: logstore.Entry{TS: 1, Text: "x"}, PageKey: "/a"})
	assert.Empty(t, p.lines, "other page selected")
	assert.Len(t, mirror.lines, 1)

	p.selection = logstore.AllPages
	d.Handle(Event{Entry: logstore.Entry{TS: 2, Text: "y"}, PageKey: "/a"})
	assert.Len(t, p.lines, 1)
}

func TestDispatcher_DuplicateManualWithinWindow(t *testing.T) {
	d, reg, mirror, fake := newTestDispatcher(t, nil)
	ev := Event{Entry: logstore.Entry{TS: 42, Time: "00:00:01", Text: "same"}, PageKey: "/a"}

	d.Handle(ev)
	fake.Advance(time.Second)
	d.Handle(ev)
	assert.Len(t, mirror.lines, 1)
	assert.Len(t, reg.touched, 1)

	fake.Advance(3 * time.Second)
	d.Handle(ev)
	assert.Len(t, mirror.lines, 2, "accepted again once the window passes")
}

func TestDispatcher_DuplicateTick(t *testing.T) {
	d, _, mirror, _ := newTestDispatcher(t, nil)
	tick := Event{Entry: logstore.Entry{TS: 1, Time: "00:00:30", Tag: logstore.TagTick}, PageKey: "/a"}

	d.Handle(tick)
	d.Handle(tick)
	assert.Len(t, mirror.lines, 1)
}

func TestDispatcher_SideEffectFailuresAreIsolated(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := &fakePresenter{selection: "/a", refreshErr: errors.New("selector gone"), panicOnAdd: true}
	fake := clock.NewFake(time.Unix(0, 0))
	reg := &fakeRegistry{}
	mirror := &fakeMirror{}
	d := NewDispatcher(reg,
		WithPresenter(p),
		WithMirror(mirror),
		WithDeduper(NewDeduper(fake, 0)),
		WithLogger(zap.New(core)),
	)

	assert.NotPanics(t, func() {
		d.Handle(Event{Entry: logstore.Entry{TS: 1, Text: "x"}, PageKey: "/a"})
	})

	assert.Len(t, reg.touched, 1)
	assert.Len(t, mirror.lines, 1, "console still runs after presenter failures")

	failures := logs.FilterMessage("side_effect_failed").All()
	require.Len(t, failures, 2)
	assert.Equal(t, EffectSelector, failures[0].ContextMap()["effect"])
	assert.Equal(t, EffectPresenter, failures[1].ContextMap()["effect"])
}

func TestDispatcher_AttachOnce(t *testing.T) {
	bus := NewBus()
	d1, _, m1, _ := newTestDispatcher(t, nil)
	d2, _, m2, _ := newTestDispatcher(t, nil)

	assert.True(t, d1.Attach(bus))
	assert.False(t, d1.Attach(bus))
	assert.False(t, d2.Attach(bus))

	bus.Publish(Event{Entry: logstore.Entry{TS: 1, Text: "x"}, PageKey: "/a"})
	assert.Len(t, m1.lines, 1)
	assert.Empty(t, m2.lines)
}
