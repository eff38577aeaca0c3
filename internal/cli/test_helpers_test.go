package cli

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/runtimelog/internal/clock"
	"github.com/runnerr0/runtimelog/internal/config"
	"github.com/runnerr0/runtimelog/internal/events"
	"github.com/runnerr0/runtimelog/internal/logstore"
	"github.com/runnerr0/runtimelog/internal/storage"
)

var testNow = time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestEnv builds an environment over an in-memory backend, a fake clock
// and a private event bus.
func newTestEnv(t *testing.T) (*environment, *clock.Fake) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "memory"
	cfg.Storage.Path = ""
	cfg.Logging.Color = false

	fake := clock.NewFake(testNow)
	env := newEnvironment(cfg, storage.NewMemoryBackend(), nil, fake, events.NewBus())
	t.Cleanup(func() { env.Close() })
	return env, fake
}

// seed appends manual entries for pageKey, one second apart.
func seed(t *testing.T, env *environment, fake *clock.Fake, pageKey string, texts ...string) {
	t.Helper()
	for _, text := range texts {
		now := fake.Now()
		env.store.Append(pageKey, logstore.Entry{
			TS:       now.UnixMilli(),
			Datetime: logstore.FormatDateTime(now),
			Time:     "00:00:00",
			Text:     text,
		})
		fake.Advance(time.Second)
	}
}

func storedTexts(env *environment, pageKey string) []string {
	entries := env.store.Read(pageKey)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}
