package hostqueue

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/runnerr0/runtimelog/internal/logstore"
)

type recordingSink struct {
	texts   []string
	panicOn string
}

func (s *recordingSink) Log(text any) logstore.Entry {
	str := text.(string)
	if str == s.panicOn {
		panic("bad message")
	}
	s.texts = append(s.texts, str)
	return logstore.Entry{Text: str}
}

func TestAdd_Stringifies(t *testing.T) {
	q := New()
	q.Add("plain")
	q.Add(7)
	q.Add(2.5)
	q.Add(true)
	q.Add(map[string]int{"a": 1})
	q.Add([]string{"x", "y"})
	q.Add(nil)

	sink := &recordingSink{}
	res := q.Flush(context.Background(), func() Sink { return sink })

	assert.Equal(t, Result{Delivered: 7}, res)
	assert.Equal(t, []string{"plain", "7", "2.5", "true", `{"a":1}`, `["x","y"]`, "null"}, sink.texts)
	assert.Equal(t, 0, q.Len())
}

func TestFlush_Empty(t *testing.T) {
	q := New()
	called := false
	res := q.Flush(context.Background(), func() Sink { called = true; return nil })
	assert.Equal(t, Result{}, res)
	assert.False(t, called)
}

func TestFlush_RetriesOnce(t *testing.T) {
	q := New()
	q.RetryDelay = time.Millisecond
	q.Add("late")

	sink := &recordingSink{}
	calls := 0
	res := q.Flush(context.Background(), func() Sink {
		calls++
		if calls == 1 {
			return nil
		}
		return sink
	})

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, []string{"late"}, sink.texts)
}

func TestFlush_FallsBackToWriter(t *testing.T) {
	var buf bytes.Buffer
	q := New()
	q.RetryDelay = time.Millisecond
	q.Fallback = &buf
	q.Add("one")
	q.Add(2)

	var nilSink *recordingSink
	calls := 0
	res := q.Flush(context.Background(), func() Sink { calls++; return nilSink })

	assert.Equal(t, 2, calls)
	assert.Equal(t, Result{Fallback: 2}, res)
	assert.Equal(t, "[runtimelog fallback] one\n[runtimelog fallback] 2\n", buf.String())
	assert.Equal(t, 0, q.Len())
}

func TestFlush_ContextCancelledSkipsRetry(t *testing.T) {
	var buf bytes.Buffer
	q := New()
	q.RetryDelay = time.Hour
	q.Fallback = &buf
	q.Add("x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	res := q.Flush(ctx, func() Sink { calls++; return nil })

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, res.Fallback)
}

func TestFlush_PanickingMessageDoesNotStopOthers(t *testing.T) {
	q := New()
	q.Add("a")
	q.Add("bad")
	q.Add("c")

	sink := &recordingSink{panicOn: "bad"}
	res := q.Flush(context.Background(), func() Sink { return sink })

	assert.Equal(t, Result{Delivered: 2, Failed: 1}, res)
	assert.Equal(t, []string{"a", "c"}, sink.texts)
}
