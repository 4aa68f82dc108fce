package ivfgo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasicMetricsCollector(t *testing.T) {
	var m BasicMetricsCollector
	boom := errors.New("boom")

	m.RecordTrain(100, time.Millisecond, nil)
	m.RecordTrain(10, time.Millisecond, boom)
	m.RecordAdd(time.Microsecond, nil)
	m.RecordSearch(10, 3, 2*time.Millisecond, nil)
	m.RecordSearch(10, 0, 4*time.Millisecond, boom)
	m.RecordPersist(512, time.Millisecond, nil)
	m.RecordPersist(1024, time.Millisecond, boom)
	m.RecordLoad(time.Millisecond, nil)

	assert.Equal(t, BasicMetricsStats{
		TrainCount:     2,
		TrainErrors:    1,
		AddCount:       1,
		SearchCount:    2,
		SearchErrors:   1,
		SearchAvgNanos: int64(3 * time.Millisecond),
		PersistCount:   2,
		PersistErrors:  1,
		PersistBytes:   512,
		LoadCount:      1,
	}, m.GetStats())
}

func TestBasicMetricsCollector_NoSearches(t *testing.T) {
	var m BasicMetricsCollector
	assert.Zero(t, m.GetStats().SearchAvgNanos)
}

func TestNoopMetricsCollector(t *testing.T) {
	var c MetricsCollector = NoopMetricsCollector{}
	assert.NotPanics(t, func() {
		c.RecordTrain(1, 0, nil)
		c.RecordAdd(0, nil)
		c.RecordSearch(1, 1, 0, nil)
		c.RecordPersist(1, 0, nil)
		c.RecordLoad(0, nil)
	})
}
