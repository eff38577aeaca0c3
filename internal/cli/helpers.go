package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/runtimelog/internal/clock"
	"github.com/runnerr0/runtimelog/internal/config"
	"github.com/runnerr0/runtimelog/internal/console"
	"github.com/runnerr0/runtimelog/internal/events"
	"github.com/runnerr0/runtimelog/internal/logging"
	"github.com/runnerr0/runtimelog/internal/logstore"
	"github.com/runnerr0/runtimelog/internal/metrics"
	"github.com/runnerr0/runtimelog/internal/storage"
	"github.com/runnerr0/runtimelog/internal/timer"
)

// environment bundles everything a command needs. Tests build one over an
// in-memory backend and a fake clock.
type environment struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	clock   clock.Clock
	kv      *storage.Adapter
	store   *logstore.Store
	bus     *events.Bus
}

// openEnvironment resolves config, builds the logger and opens the
// configured backend.
func openEnvironment(globals *GlobalFlags) (*environment, error) {
	path := ""
	if globals != nil {
		path = globals.Config
	}
	cfg, err := config.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if globals != nil && globals.Verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	backend, err := storage.Open(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	return newEnvironment(cfg, backend, log, clock.Real(), events.Default()), nil
}

func newEnvironment(cfg *config.Config, backend storage.Backend, log *zap.Logger, c clock.Clock, bus *events.Bus) *environment {
	log = logging.OrNop(log)
	m := metrics.New()
	kv := storage.NewAdapter(backend,
		storage.WithLogger(log.Named("storage")),
		storage.WithMetrics(m),
		storage.WithNamespace(cfg.Storage.Namespace),
	)
	store := logstore.New(kv,
		logstore.WithClock(c),
		logstore.WithRetention(cfg.Retention.MaxAge.Std(), cfg.Retention.MaxEntries),
		logstore.WithLogger(log.Named("logstore")),
		logstore.WithMetrics(m),
	)
	return &environment{
		cfg:     cfg,
		log:     log,
		metrics: m,
		clock:   c,
		kv:      kv,
		store:   store,
		bus:     bus,
	}
}

func (e *environment) Close() error {
	_ = e.log.Sync()
	return e.kv.Close()
}

// resolveEnv returns the injected environment, or opens one. The returned
// func closes only what this call opened.
func resolveEnv(injected *environment, globals *GlobalFlags) (*environment, func(), error) {
	if injected != nil {
		return injected, func() {}, nil
	}
	env, err := openEnvironment(globals)
	if err != nil {
		return nil, nil, err
	}
	return env, func() { env.Close() }, nil
}

// attachDispatcher subscribes a dispatcher for presenter and mirror on the
// environment's bus. It returns false when the bus already has one.
func (e *environment) attachDispatcher(p events.Presenter, mirror events.Mirror) bool {
	opts := []events.DispatcherOption{
		events.WithDeduper(events.NewDeduper(e.clock, e.cfg.DedupWindow())),
		events.WithLogger(e.log.Named("events")),
		events.WithMetrics(e.metrics),
	}
	if p != nil {
		opts = append(opts, events.WithPresenter(p))
	}
	if mirror != nil {
		opts = append(opts, events.WithMirror(mirror))
	}
	return events.NewDispatcher(e.store, opts...).Attach(e.bus)
}

// newLogger creates a page logger wired to the environment.
func (e *environment) newLogger(pageKey string, p events.Presenter) *timer.Logger {
	opts := []timer.Option{
		timer.WithClock(e.clock),
		timer.WithBus(e.bus),
		timer.WithTickInterval(e.cfg.TickInterval()),
		timer.WithLogger(e.log.Named("timer")),
	}
	if p != nil {
		opts = append(opts, timer.WithPresenter(p))
	}
	return timer.New(pageKey, e.store, opts...)
}

func (e *environment) mirror(w io.Writer) *console.Mirror {
	return console.New(w, e.cfg.Logging.Color)
}

// pageKeyFlag turns a --url value into a page key, rejecting empty input.
func pageKeyFlag(cmd, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("--url is required for %s command", cmd)
	}
	return logstore.PageKeyFromURL(url), nil
}

// targetFlags resolves --url/--all into a page key or logstore.AllPages.
func targetFlags(cmd, url string, all bool) (string, error) {
	switch {
	case all && url != "":
		return "", fmt.Errorf("--url and --all are mutually exclusive")
	case all:
		return logstore.AllPages, nil
	default:
		return pageKeyFlag(cmd, url)
	}
}

func stdinOr(r io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return os.Stdin
}

// formatMillis renders an epoch-millisecond timestamp in local time.
func formatMillis(ms int64) string {
	return logstore.FormatDateTime(time.UnixMilli(ms).Local())
}
