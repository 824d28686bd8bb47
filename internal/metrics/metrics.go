package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds acceptor runtime counters. All fields are safe for
// concurrent use by the worker pool.
type Metrics struct {
	RequestsTotal     atomic.Int64
	ActiveConnections atomic.Int64
	Errors4xx         atomic.Int64
	Errors5xx         atomic.Int64
	Timeouts          atomic.Int64

	// Latency tracking (simplified - use histogram in production)
	TotalLatencyNs atomic.Int64
}

// New creates a new metrics instance
func New() *Metrics {
	return &Metrics{}
}

// RecordRequest records a completed request
func (m *Metrics) RecordRequest(statusCode int, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.TotalLatencyNs.Add(duration.Nanoseconds())

	if statusCode >= 400 && statusCode < 500 {
		m.Errors4xx.Add(1)
	} else if statusCode >= 500 {
		m.Errors5xx.Add(1)
	}
}

// RecordTimeout counts a connection dropped because its deadline passed
// before a full request arrived.
func (m *Metrics) RecordTimeout() {
	m.Timeouts.Add(1)
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	totalReqs := m.RequestsTotal.Load()
	if totalReqs == 0 {
		return 0
	}

	avgNs := m.TotalLatencyNs.Load() / totalReqs
	return time.Duration(avgNs)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	RequestsTotal     int64         `json:"requests_total"`
	ActiveConnections int64         `json:"active_connections"`
	Errors4xx         int64         `json:"errors_4xx"`
	Errors5xx         int64         `json:"errors_5xx"`
	Timeouts          int64         `json:"timeouts"`
	AverageLatency    time.Duration `json:"average_latency_ns"`
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RequestsTotal:     m.RequestsTotal.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		Errors4xx:         m.Errors4xx.Load(),
		Errors5xx:         m.Errors5xx.Load(),
		Timeouts:          m.Timeouts.Load(),
		AverageLatency:    m.AverageLatency(),
	}
}
