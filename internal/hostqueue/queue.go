// Package hostqueue buffers messages produced before a page logger exists
// and delivers them once one is available.
package hostqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/runtimelog/internal/logstore"
)

// RetryDelay is how long Flush waits before resolving the sink a second time.
const RetryDelay = 250 * time.Millisecond

// FallbackPrefix starts every line written when no sink can be resolved.
const FallbackPrefix = "[runtimelog fallback] "

// Sink receives flushed messages. *timer.Logger implements it.
type Sink interface {
	Log(text any) logstore.Entry
}

// Result summarises a Flush.
type Result struct {
	Delivered int
	Fallback  int
	Failed    int
}

// Queue collects messages in arrival order.
type Queue struct {
	mu       sync.Mutex
	messages []string

	// RetryDelay overrides the package default when positive.
	RetryDelay time.Duration
	// Fallback receives messages when no sink resolves. Defaults to stderr.
	Fallback io.Writer
	Log      *zap.Logger
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Add queues v. Scalars keep their printed form; anything else is
// JSON-encoded.
func (q *Queue) Add(v any) {
	msg := stringify(v)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Flush hands every queued message to the sink returned by resolve. If
// resolve returns nil, Flush waits the retry delay (or until ctx is done)
// and tries once more before writing the messages to the fallback writer.
// The queue is empty afterwards.
func (q *Queue) Flush(ctx context.Context, resolve func() Sink) Result {
	q.mu.Lock()
	msgs := q.messages
	q.messages = nil
	q.mu.Unlock()

	if len(msgs) == 0 {
		return Result{}
	}

	sink := q.resolve(resolve)
	if sink == nil {
		delay := q.RetryDelay
		if delay <= 0 {
			delay = RetryDelay
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
			sink = q.resolve(resolve)
		}
	}

	if sink == nil {
		return q.fallback(msgs)
	}

	var res Result
	for _, m := range msgs {
		if q.deliver(sink, m) {
			res.Delivered++
		} else {
			res.Failed++
		}
	}
	return res
}

func (q *Queue) resolve(resolve func() Sink) (s Sink) {
	if resolve == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger().Warn("hostqueue_resolve_failed", zap.Any("panic", r))
			s = nil
		}
	}()
	s = resolve()
	if isNil(s) {
		return nil
	}
	return s
}

func (q *Queue) deliver(sink Sink, msg string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			q.logger().Warn("hostqueue_deliver_failed", zap.Any("panic", r))
			ok = false
		}
	}()
	sink.Log(msg)
	return true
}

func (q *Queue) fallback(msgs []string) Result {
	w := q.Fallback
	if w == nil {
		w = os.Stderr
	}
	var res Result
	for _, m := range msgs {
		if _, err := fmt.Fprintln(w, FallbackPrefix+m); err != nil {
			res.Failed++
			continue
		}
		res.Fallback++
	}
	return res
}

func (q *Queue) logger() *zap.Logger {
	if q.Log == nil {
		return zap.NewNop()
	}
	return q.Log
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return "null"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return fmt.Sprint(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// isNil catches typed nil pointers wrapped in the Sink interface.
func isNil(s Sink) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
