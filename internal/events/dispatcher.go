package events

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/runnerr0/runtimelog/internal/logstore"
	"github.com/runnerr0/runtimelog/internal/metrics"
)

// Presenter is the display surface for log lines.
type Presenter interface {
	// Selection returns the page currently shown, or logstore.AllPages.
	Selection() string
	// RefreshSelector re-reads the list of known pages.
	RefreshSelector() error
	// AppendLine shows one entry for pageKey.
	AppendLine(e logstore.Entry, pageKey string) error
}

// Shows reports whether p's selection includes pageKey.
func Shows(p Presenter, pageKey string) bool {
	sel := p.Selection()
	return sel == pageKey || sel == logstore.AllPages
}

// Registry records that a page produced an entry.
type Registry interface {
	Touch(pageKey string)
}

// Mirror prints live entries, typically to a terminal.
type Mirror interface {
	Live(e logstore.Entry, pageKey string) error
}

// Side effect names used in logs and metrics.
const (
	EffectRegistry  = "registry"
	EffectSelector  = "selector"
	EffectPresenter = "presenter"
	EffectConsole   = "console"
)

// Dispatcher handles bus events: it drops duplicates and runs every side
// effect independently, so one failing effect never suppresses another.
type Dispatcher struct {
	dedup     *Deduper
	registry  Registry
	presenter Presenter
	mirror    Mirror
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithPresenter(p Presenter) DispatcherOption {
	return func(d *Dispatcher) { d.presenter = p }
}

func WithMirror(m Mirror) DispatcherOption {
	return func(d *Dispatcher) { d.mirror = m }
}

func WithDeduper(dd *Deduper) DispatcherOption {
	return func(d *Dispatcher) { d.dedup = dd }
}

func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher returns a Dispatcher touching registry for every accepted
// event. Presenter and mirror are optional.
func NewDispatcher(registry Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: registry, log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	if d.dedup == nil {
		d.dedup = NewDeduper(nil, DefaultWindow)
	}
	return d
}

// Attach subscribes d to bus. It reports false if bus already had a
// subscriber, in which case d is not attached.
func (d *Dispatcher) Attach(bus *Bus) bool {
	return bus.Subscribe(d.Handle)
}

// Handle processes one event.
func (d *Dispatcher) Handle(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("dispatch_failed", zap.String("page", ev.PageKey), zap.Any("panic", r))
		}
	}()

	if d.dedup.IsDuplicate(ev.Entry, ev.PageKey) {
		kind := "manual"
		if ev.Entry.IsTick() {
			kind = "tick"
		}
		d.metrics.EventDeduplicated(kind)
		return
	}
	d.dedup.Commit(ev.Entry, ev.PageKey)
	d.metrics.EventDispatched()

	if d.registry != nil {
		d.run(EffectRegistry, ev, func() error {
			d.registry.Touch(ev.PageKey)
			return nil
		})
	}
	if d.presenter != nil {
		d.run(EffectSelector, ev, d.presenter.RefreshSelector)
		d.run(EffectPresenter, ev, func() error {
			if !Shows(d.presenter, ev.PageKey) {
				return nil
			}
			return d.presenter.AppendLine(ev.Entry, ev.PageKey)
		})
	}
	if d.mirror != nil {
		d.run(EffectConsole, ev, func() error {
			return d.mirror.Live(ev.Entry, ev.PageKey)
		})
	}
}

func (d *Dispatcher) run(effect string, ev Event, fn func() error) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = fn()
	}()
	if err != nil {
		d.log.Warn("side_effect_failed",
			zap.String("effect", effect),
			zap.String("page", ev.PageKey),
			zap.Error(err),
		)
		d.metrics.SideEffectFailed(effect)
	}
}
