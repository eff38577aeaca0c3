package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/runtimelog/internal/events"
	"github.com/runnerr0/runtimelog/internal/timer"
)

// Control lines understood by watch.
const (
	ctlStart = "/start"
	ctlStop  = "/stop"
	ctlReset = "/reset"
)

// Execute implements the go-flags Commander interface for WatchCommand.
func (c *WatchCommand) Execute(args []string) error {
	env, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.executeWithEnv(ctx, env)
}

// executeWithEnv runs the watch loop until stdin closes or ctx is done.
func (c *WatchCommand) executeWithEnv(ctx context.Context, env *environment) error {
	pageKey, err := pageKeyFlag("watch", c.URL)
	if err != nil {
		return err
	}

	addr := c.MetricsAddr
	if addr == "" {
		addr = env.cfg.Metrics.Addr
	}
	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(env), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				env.log.Warn("metrics_server_failed", zap.String("addr", addr), zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	presenter := newTerminalPresenter(pageKey, env.mirror(os.Stdout), env.store)
	var mirror events.Mirror
	if c.Console {
		mirror = env.mirror(os.Stderr)
	}
	env.attachDispatcher(presenter, mirror)

	logger := env.newLogger(pageKey, presenter)
	defer logger.Close()

	lines := scanLines(ctx, stdinOr(c.stdin))
	logger.Start()
	defer logger.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			handleWatchLine(logger, line)
		}
	}
}

func handleWatchLine(logger *timer.Logger, line string) {
	switch strings.TrimSpace(line) {
	case "":
	case ctlStart:
		logger.Start()
	case ctlStop:
		logger.Stop()
	case ctlReset:
		logger.Reset()
	default:
		logger.Log(line)
	}
}

// scanLines feeds r's lines into a channel that is closed at EOF.
func scanLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func metricsMux(env *environment) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", env.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return mux
}
