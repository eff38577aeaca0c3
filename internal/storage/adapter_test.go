package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/runnerr0/runtimelog/internal/metrics"
)

type panickingBackend struct{ *MemoryBackend }

func (p *panickingBackend) Get(string) (string, bool, error) { panic("corrupt page") }

func TestAdapter_RoundTrip(t *testing.T) {
	a := NewAdapter(NewMemoryBackend())

	_, ok := a.Get("k")
	assert.False(t, ok)

	a.Set("k", "v")
	v, ok := a.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	a.Remove("k")
	_, ok = a.Get("k")
	assert.False(t, ok)
}

func TestAdapter_Namespace(t *testing.T) {
	mem := NewMemoryBackend()
	a := NewAdapter(mem, WithNamespace("site1:"))

	a.Set("logs::/a", "[]")
	a.Set("logs::/b", "[]")

	raw, ok := mem.Raw("site1:logs::/a")
	assert.True(t, ok)
	assert.Equal(t, "[]", raw)
	assert.Equal(t, []string{"logs::/a", "logs::/b"}, a.Keys("logs::"))
}

func TestAdapter_FailSoft(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := metrics.New()
	mem := NewMemoryBackend()
	a := NewAdapter(mem, WithLogger(zap.New(core)), WithMetrics(m))

	mem.SetQuota(4)
	a.Set("key", "too long") // dropped, not propagated
	_, ok := a.Get("key")
	assert.False(t, ok)

	boom := errors.New("boom")
	mem.FailOn("get", boom)
	mem.FailOn("keys", boom)
	mem.FailOn("remove", boom)

	v, ok := a.Get("anything")
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.Nil(t, a.Keys(""))
	a.Remove("anything")

	require.Equal(t, 4, logs.Len())
	assert.Equal(t, "storage_set_failed", logs.All()[0].Message)
	assert.Equal(t, "storage_get_failed", logs.All()[1].Message)

	assert.Equal(t, float64(4), storageFailures(t, m))
}

func TestAdapter_LookupSeparatesMissingFromFailed(t *testing.T) {
	m := metrics.New()
	mem := NewMemoryBackend()
	a := NewAdapter(mem, WithMetrics(m))

	_, found, err := a.Lookup("k")
	require.NoError(t, err)
	assert.False(t, found)

	a.Set("k", "v")
	v, found, err := a.Lookup("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)

	boom := errors.New("boom")
	mem.FailOn("get", boom)
	v, found, err = a.Lookup("k")
	assert.ErrorIs(t, err, boom)
	assert.False(t, found)
	assert.Empty(t, v)
	assert.Equal(t, float64(1), storageFailures(t, m))
}

func TestAdapter_RecoversPanics(t *testing.T) {
	m := metrics.New()
	a := NewAdapter(&panickingBackend{MemoryBackend: NewMemoryBackend()}, WithMetrics(m))

	assert.NotPanics(t, func() {
		_, ok := a.Get("k")
		assert.False(t, ok)
	})
	assert.Equal(t, float64(1), storageFailures(t, m))
}

func TestAdapter_SizeBytes(t *testing.T) {
	mem := NewMemoryBackend()
	a := NewAdapter(mem)
	a.Set("ab", "cd")
	assert.Equal(t, int64(4), a.SizeBytes())
}

func storageFailures(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	mfs, err := m.Gatherer().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != "runtimelog_storage_failures_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}
