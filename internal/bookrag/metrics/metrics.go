// Package metrics collects service counters for the stats endpoint.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks query activity. All counters are updated atomically
// and safe for concurrent use.
type Metrics struct {
	queriesTotal     atomic.Uint64
	queriesStream    atomic.Uint64
	queriesErrors    atomic.Uint64
	queriesCompleted atomic.Uint64
	cacheHits        atomic.Uint64

	tokensStreamed atomic.Uint64
	streamAborts   atomic.Uint64

	queryDurationMu sync.Mutex
	queryDuration   time.Duration

	startTime time.Time
}

var (
	global *Metrics
	once   sync.Once
)

// Get returns the process-wide metrics instance.
func Get() *Metrics {
	once.Do(func() {
		global = &Metrics{startTime: time.Now()}
	})
	return global
}

// RecordQuery records a completed non-streaming query.
func (m *Metrics) RecordQuery(duration time.Duration, cacheHit bool, err error) {
	m.queriesTotal.Add(1)
	if err != nil {
		m.queriesErrors.Add(1)
		return
	}
	if cacheHit {
		m.cacheHits.Add(1)
	}
	m.queriesCompleted.Add(1)
	m.queryDurationMu.Lock()
	m.queryDuration += duration
	m.queryDurationMu.Unlock()
}

// RecordStreamQuery records a started streaming query.
func (m *Metrics) RecordStreamQuery() {
	m.queriesTotal.Add(1)
	m.queriesStream.Add(1)
}

// RecordTokens records tokens delivered to clients.
func (m *Metrics) RecordTokens(n int) {
	m.tokensStreamed.Add(uint64(n))
}

// RecordStreamAbort records a stream that ended before completion,
// whether from a client disconnect or a backend failure.
func (m *Metrics) RecordStreamAbort() {
	m.streamAborts.Add(1)
	m.queriesErrors.Add(1)
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	QueriesTotal   uint64  `json:"queries_total"`
	QueriesStream  uint64  `json:"queries_stream"`
	QueriesErrors  uint64  `json:"queries_errors"`
	CacheHits      uint64  `json:"cache_hits"`
	TokensStreamed uint64  `json:"tokens_streamed"`
	StreamAborts   uint64  `json:"stream_aborts"`
	AvgQuerySecs   float64 `json:"avg_query_seconds"`
	UptimeSecs     float64 `json:"uptime_seconds"`
}

// Snapshot captures the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		QueriesTotal:   m.queriesTotal.Load(),
		QueriesStream:  m.queriesStream.Load(),
		QueriesErrors:  m.queriesErrors.Load(),
		CacheHits:      m.cacheHits.Load(),
		TokensStreamed: m.tokensStreamed.Load(),
		StreamAborts:   m.streamAborts.Load(),
		UptimeSecs:     time.Since(m.startTime).Seconds(),
	}

	m.queryDurationMu.Lock()
	total := m.queryDuration
	m.queryDurationMu.Unlock()

	if completed := m.queriesCompleted.Load(); completed > 0 {
		s.AvgQuerySecs = total.Seconds() / float64(completed)
	}
	return s
}

// Reset zeroes every counter. Test helper.
func (m *Metrics) Reset() {
	m.queriesTotal.Store(0)
	m.queriesStream.Store(0)
	m.queriesErrors.Store(0)
	m.queriesCompleted.Store(0)
	m.cacheHits.Store(0)
	m.tokensStreamed.Store(0)
	m.streamAborts.Store(0)
	m.queryDurationMu.Lock()
	m.queryDuration = 0
	m.queryDurationMu.Unlock()
	m.startTime = time.Now()
}
