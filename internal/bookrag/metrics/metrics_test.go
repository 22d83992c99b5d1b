package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsSameInstance(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestSnapshotCounters(t *testing.T) {
	m := &Metrics{startTime: time.Now()}

	m.RecordQuery(100*time.Millisecond, false, nil)
	m.RecordQuery(300*time.Millisecond, true, nil)
	m.RecordQuery(0, false, errors.New("boom"))
	m.RecordStreamQuery()
	m.RecordTokens(42)
	m.RecordStreamAbort()

	s := m.Snapshot()
	assert.Equal(t, uint64(4), s.QueriesTotal)
	assert.Equal(t, uint64(1), s.QueriesStream)
	assert.Equal(t, uint64(2), s.QueriesErrors)
	assert.Equal(t, uint64(1), s.CacheHits)
	assert.Equal(t, uint64(42), s.TokensStreamed)
	assert.Equal(t, uint64(1), s.StreamAborts)
	assert.InDelta(t, 0.2, s.AvgQuerySecs, 1e-9)
	assert.GreaterOrEqual(t, s.UptimeSecs, 0.0)
}

func TestSnapshotNoCompletedQueries(t *testing.T) {
	m := &Metrics{startTime: time.Now()}
	m.RecordStreamQuery()
	m.RecordStreamAbort()

	s := m.Snapshot()
	assert.Zero(t, s.AvgQuerySecs)
}

func TestConcurrentRecording(t *testing.T) {
	m := &Metrics{startTime: time.Now()}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordQuery(time.Millisecond, false, nil)
			m.RecordTokens(1)
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, uint64(50), s.QueriesTotal)
	assert.Equal(t, uint64(50), s.TokensStreamed)
}

func TestReset(t *testing.T) {
	m := &Metrics{startTime: time.Now()}
	m.RecordQuery(time.Second, true, nil)
	m.Reset()

	s := m.Snapshot()
	assert.Zero(t, s.QueriesTotal)
	assert.Zero(t, s.CacheHits)
	assert.Zero(t, s.AvgQuerySecs)
}
