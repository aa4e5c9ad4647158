package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.runsTotal)
	assert.NotNil(t, collector.runDuration)
	assert.NotNil(t, collector.retriesTotal)
	assert.NotNil(t, collector.cacheHits)
	assert.NotNil(t, collector.cacheMisses)
	assert.NotNil(t, collector.eventsDropped)
}

func TestCollector_RecordRun(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRun("my-task", "COMPLETED", 100*time.Millisecond)
	collector.RecordRun("my-task", "FAILED", 50*time.Millisecond)

	count := testutil.CollectAndCount(collector.runsTotal)
	assert.Equal(t, 2, count, "one series per task/state pair")
}

func TestCollector_RecordRetry(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRetry("my-task")
	collector.RecordRetry("my-task")

	value := testutil.ToFloat64(collector.retriesTotal.WithLabelValues("my-task"))
	assert.Equal(t, 2.0, value)
}

func TestCollector_ActiveGauge(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RunStarted("my-task")
	collector.RunStarted("my-task")
	collector.RunFinished("my-task")

	value := testutil.ToFloat64(collector.runsActive.WithLabelValues("my-task"))
	assert.Equal(t, 1.0, value)
}

func TestCollector_CacheCounters(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("my-task")
	collector.RecordCacheMiss("my-task")
	collector.RecordCacheMiss("my-task")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("my-task")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheMisses.WithLabelValues("my-task")))
}

func TestCollector_DroppedEvents(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDroppedEvent()
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.eventsDropped))
}
