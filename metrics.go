package rfmsync

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/oberon-rt/rfmsync/internal/interfaces"
)

// LatencyBuckets defines the cycle-latency histogram buckets in
// nanoseconds, covering from 10us to 100ms with logarithmic spacing (a
// cycle period is typically in the 1ms-10ms range).
var LatencyBuckets = []uint64{
	10_000,      // 10us
	100_000,     // 100us
	1_000_000,   // 1ms
	10_000_000,  // 10ms
	100_000_000, // 100ms
}

const numLatencyBuckets = 5

// Metrics tracks cycle statistics for one host; every DataSource creates
// its own.
type Metrics struct {
	CycleCount               atomic.Uint64
	TotalLatencyNs           atomic.Uint64
	SyncMissedCount          atomic.Uint64
	TornReadCount            atomic.Uint64
	MasterStepExhaustedCount atomic.Uint64
	LastMasterDrift          atomic.Int32

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	mu        sync.Mutex
	staleness map[uint32]float32
	StartTime atomic.Int64
}

// NewMetrics creates an empty metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{staleness: make(map[uint32]float32)}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordCycle(latencyNs uint64) {
	m.CycleCount.Add(1)
	m.TotalLatencyNs.Add(latencyNs)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

func (m *Metrics) recordStaleness(nodeID uint32, diagData float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleness[nodeID] = diagData
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// racing further updates.
type MetricsSnapshot struct {
	CycleCount               uint64
	AvgLatencyNs             uint64
	SyncMissedCount          uint64
	TornReadCount            uint64
	MasterStepExhaustedCount uint64
	LastMasterDrift          int32
	LatencyHistogram         [numLatencyBuckets]uint64
	Staleness                map[uint32]float32
	UptimeNs                 uint64
}

// Snapshot returns a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		CycleCount:               m.CycleCount.Load(),
		SyncMissedCount:          m.SyncMissedCount.Load(),
		TornReadCount:            m.TornReadCount.Load(),
		MasterStepExhaustedCount: m.MasterStepExhaustedCount.Load(),
		LastMasterDrift:          m.LastMasterDrift.Load(),
		UptimeNs:                 uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
	if snap.CycleCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / snap.CycleCount
	}
	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	m.mu.Lock()
	snap.Staleness = make(map[uint32]float32, len(m.staleness))
	for k, v := range m.staleness {
		snap.Staleness[k] = v
	}
	m.mu.Unlock()
	return snap
}

// MetricsObserver adapts Metrics to interfaces.Observer, the surface
// internal/orchestrator reports telemetry through.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an Observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCycle(localCycle uint32, latencyNs uint64) {
	o.metrics.recordCycle(latencyNs)
}

func (o *MetricsObserver) ObserveSyncMissed() {
	o.metrics.SyncMissedCount.Add(1)
}

func (o *MetricsObserver) ObserveTornRead() {
	o.metrics.TornReadCount.Add(1)
}

func (o *MetricsObserver) ObserveMasterStepExhausted(drift int32) {
	o.metrics.MasterStepExhaustedCount.Add(1)
	o.metrics.LastMasterDrift.Store(drift)
}

func (o *MetricsObserver) ObserveStaleness(nodeID uint32, diagData float32) {
	o.metrics.recordStaleness(nodeID, diagData)
}

// NoOpObserver discards every observation; used when a caller wants no
// telemetry at all.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCycle(uint32, uint64)      {}
func (NoOpObserver) ObserveSyncMissed()               {}
func (NoOpObserver) ObserveTornRead()                 {}
func (NoOpObserver) ObserveMasterStepExhausted(int32) {}
func (NoOpObserver) ObserveStaleness(uint32, float32) {}

var (
	_ interfaces.Observer = (*MetricsObserver)(nil)
	_ interfaces.Observer = NoOpObserver{}
)
