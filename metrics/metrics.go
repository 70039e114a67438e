package metrics

import "sync/atomic"

// Metrics captures shared operational stats for ingest and scoring runs.
type Metrics struct {
	rowsIngested int64
	rowsDropped  int64
	racesWritten int64

	runsSucceeded int64
	runsFailed    int64
}

// Snapshot provides a consistent view of the current metrics.
type Snapshot struct {
	RowsIngested  int64
	RowsDropped   int64
	RacesWritten  int64
	RunsSucceeded int64
	RunsFailed    int64
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// AddIngested records raw result rows accepted into the store.
func (m *Metrics) AddIngested(n int) {
	atomic.AddInt64(&m.rowsIngested, int64(n))
}

// AddDropped records rows excluded during aggregation.
func (m *Metrics) AddDropped(n int) {
	atomic.AddInt64(&m.rowsDropped, int64(n))
}

// AddRacesWritten records classified races published to the store.
func (m *Metrics) AddRacesWritten(n int) {
	atomic.AddInt64(&m.racesWritten, int64(n))
}

// RecordRun increments the success/failure counters based on outcome.
func (m *Metrics) RecordRun(err error) {
	if err != nil {
		atomic.AddInt64(&m.runsFailed, 1)
		return
	}
	atomic.AddInt64(&m.runsSucceeded, 1)
}

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RowsIngested:  atomic.LoadInt64(&m.rowsIngested),
		RowsDropped:   atomic.LoadInt64(&m.rowsDropped),
		RacesWritten:  atomic.LoadInt64(&m.racesWritten),
		RunsSucceeded: atomic.LoadInt64(&m.runsSucceeded),
		RunsFailed:    atomic.LoadInt64(&m.runsFailed),
	}
}
