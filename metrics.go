package netstack

import (
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/gonetstack/internal/interfaces"
)

// Metrics tracks engine-wide operational counters. Every field is an
// atomic so it can be updated from any worker goroutine without a lock.
type Metrics struct {
	FramesReceived       atomic.Uint64
	FramesReceivedErrors atomic.Uint64
	FramesSent           atomic.Uint64
	FramesSentErrors     atomic.Uint64
	BytesReceived        atomic.Uint64
	BytesSent            atomic.Uint64

	ReassemblyCompletions atomic.Uint64
	ReassemblyGiveUps     atomic.Uint64
	DuplicateFragments    atomic.Uint64

	SendGiveUps atomic.Uint64
	QueueFulls  atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with its start time set.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordFrameReceived(bytes uint64, success bool) {
	m.FramesReceived.Add(1)
	if success {
		m.BytesReceived.Add(bytes)
	} else {
		m.FramesReceivedErrors.Add(1)
	}
}

func (m *Metrics) recordFrameSent(bytes uint64, success bool) {
	m.FramesSent.Add(1)
	if success {
		m.BytesSent.Add(bytes)
	} else {
		m.FramesSentErrors.Add(1)
	}
}

// Stop marks the engine as stopped, freezing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// further synchronization.
type MetricsSnapshot struct {
	FramesReceived       uint64
	FramesReceivedErrors uint64
	FramesSent           uint64
	FramesSentErrors     uint64
	BytesReceived        uint64
	BytesSent            uint64

	ReassemblyCompletions uint64
	ReassemblyGiveUps     uint64
	DuplicateFragments    uint64

	SendGiveUps uint64
	QueueFulls  uint64

	UptimeNs uint64
}

// Snapshot creates a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		FramesReceived:        m.FramesReceived.Load(),
		FramesReceivedErrors:  m.FramesReceivedErrors.Load(),
		FramesSent:            m.FramesSent.Load(),
		FramesSentErrors:      m.FramesSentErrors.Load(),
		BytesReceived:         m.BytesReceived.Load(),
		BytesSent:             m.BytesSent.Load(),
		ReassemblyCompletions: m.ReassemblyCompletions.Load(),
		ReassemblyGiveUps:     m.ReassemblyGiveUps.Load(),
		DuplicateFragments:    m.DuplicateFragments.Load(),
		SendGiveUps:           m.SendGiveUps.Load(),
		QueueFulls:            m.QueueFulls.Load(),
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}
	return snap
}

// Reset zeroes every counter and restarts the uptime clock; useful for
// testing.
func (m *Metrics) Reset() {
	m.FramesReceived.Store(0)
	m.FramesReceivedErrors.Store(0)
	m.FramesSent.Store(0)
	m.FramesSentErrors.Store(0)
	m.BytesReceived.Store(0)
	m.BytesSent.Store(0)
	m.ReassemblyCompletions.Store(0)
	m.ReassemblyGiveUps.Store(0)
	m.DuplicateFragments.Store(0)
	m.SendGiveUps.Store(0)
	m.QueueFulls.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer is the pluggable metrics-collection surface every internal
// layer reports to. It is the public form of interfaces.Observer.
type Observer = interfaces.Observer

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) ObserveFrameReceived(uint64, bool)     {}
func (NoOpObserver) ObserveFrameSent(uint64, bool)         {}
func (NoOpObserver) ObserveReassemblyComplete(uint32, int) {}
func (NoOpObserver) ObserveReassemblyGiveUp()              {}
func (NoOpObserver) ObserveSendGiveUp()                    {}
func (NoOpObserver) ObserveDuplicateFragment()             {}
func (NoOpObserver) ObserveQueueFull()                     {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveFrameReceived(bytes uint64, success bool) {
	o.metrics.recordFrameReceived(bytes, success)
}

func (o *MetricsObserver) ObserveFrameSent(bytes uint64, success bool) {
	o.metrics.recordFrameSent(bytes, success)
}

func (o *MetricsObserver) ObserveReassemblyComplete(whole uint32, fragments int) {
	o.metrics.ReassemblyCompletions.Add(1)
}

func (o *MetricsObserver) ObserveReassemblyGiveUp() {
	o.metrics.ReassemblyGiveUps.Add(1)
}

func (o *MetricsObserver) ObserveSendGiveUp() {
	o.metrics.SendGiveUps.Add(1)
}

func (o *MetricsObserver) ObserveDuplicateFragment() {
	o.metrics.DuplicateFragments.Add(1)
}

func (o *MetricsObserver) ObserveQueueFull() {
	o.metrics.QueueFulls.Add(1)
}

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
