package netstack

import (
	"sync/atomic"

	"github.com/ehrlich-b/gonetstack/internal/buffer"
	"github.com/ehrlich-b/gonetstack/internal/constants"
	"github.com/ehrlich-b/gonetstack/internal/interfaces"
	"github.com/ehrlich-b/gonetstack/internal/sched"
)

// MAC is a 6-byte hardware address.
type MAC [6]byte

var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Config configures an Engine.
type Config struct {
	Device   interfaces.Device
	Logger   interfaces.Logger
	Observer interfaces.Observer

	MAC  MAC
	IPv4 [4]byte
	IPv6 [16]byte

	Workers     int
	TaskQueue   int
	CPUAffinity []int
}

// Engine is the process-wide composition root: every protocol layer holds
// a non-owning back-reference to it rather than duplicating shared state.
// Components are constructed once at startup and never copied.
type Engine struct {
	device   interfaces.Device
	logger   interfaces.Logger
	observer interfaces.Observer

	mac  MAC
	ipv4 [4]byte
	ipv6 [16]byte

	pool       *buffer.Pool
	sendIDSeq  atomic.Uint32
	workerPool *sched.Pool
	delayed    *sched.DelayedScheduler

	arp        *ARPTable
	ndp        *NDPTable
	reassembly *ReassemblyManager
	tcpServer  *TCPServer
	udpQueues  []*deliveryQueue
	tcpQueues  []*deliveryQueue
}

// NewEngine constructs the composition root and starts its worker pool and
// timer goroutine. Call Close to stop them.
func NewEngine(cfg Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = constants.DefaultWorkers
	}
	queueSize := cfg.TaskQueue
	if queueSize <= 0 {
		queueSize = constants.TaskQueueSize
	}

	e := &Engine{
		device:   cfg.Device,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		mac:      cfg.MAC,
		ipv4:     cfg.IPv4,
		ipv6:     cfg.IPv6,
		pool:     buffer.DefaultPool(),
	}

	e.workerPool = sched.NewPool(sched.Config{
		Workers:     workers,
		QueueSize:   queueSize,
		Logger:      cfg.Logger,
		CPUAffinity: cfg.CPUAffinity,
	})
	e.delayed = sched.NewDelayedScheduler(e.workerPool, constants.DelayedHeapInitialCapacity)

	e.arp = newARPTable(e)
	e.ndp = newNDPTable(e)
	e.reassembly = newReassemblyManager(e)
	e.tcpServer = newTCPServer()
	e.udpQueues = newDeliveryQueues(constants.TransportQueueCount, constants.TransportQueueSize)
	e.tcpQueues = newDeliveryQueues(constants.TransportQueueCount, constants.TransportQueueSize)

	return e
}

// Close stops the worker pool and timer goroutine, invoking close hooks on
// every task still pending.
func (e *Engine) Close() {
	e.delayed.Stop()
	e.workerPool.Stop()
}

// AcquireBuffer returns a fresh buffer with device headroom already
// consumed, for the caller to fill and submit via Send.
func (e *Engine) AcquireBuffer() *buffer.Buffer {
	return e.pool.Acquire()
}

func (e *Engine) nextSendID() uint16 {
	return uint16(e.sendIDSeq.Add(1))
}

// ListenTCP marks port as accepting inbound TCP segments.
func (e *Engine) ListenTCP(port uint16) { e.tcpServer.Listen(port) }

// CloseTCP stops accepting inbound TCP segments on port.
func (e *Engine) CloseTCP(port uint16) { e.tcpServer.Close(port) }

// UDPQueueCount and TCPQueueCount expose the shard count so a consumer can
// drain every shard round-robin rather than guessing at sizing.
func (e *Engine) UDPQueueCount() int { return len(e.udpQueues) }
func (e *Engine) TCPQueueCount() int { return len(e.tcpQueues) }

// DequeueUDP drains the next delivered UDP segment from shard i, if any.
func (e *Engine) DequeueUDP(i int) (srcIP [16]byte, srcPort, dstPort uint16, data []byte, ok bool) {
	seg, found := e.udpQueues[i].Dequeue()
	if !found {
		return srcIP, 0, 0, nil, false
	}
	return seg.srcIP, seg.srcPort, seg.dstPort, seg.data, true
}

// DequeueTCP drains the next delivered TCP segment from shard i, if any.
func (e *Engine) DequeueTCP(i int) (srcIP [16]byte, srcPort, dstPort uint16, data []byte, ok bool) {
	seg, found := e.tcpQueues[i].Dequeue()
	if !found {
		return srcIP, 0, 0, nil, false
	}
	return seg.srcIP, seg.srcPort, seg.dstPort, seg.data, true
}

func (e *Engine) observeFrameReceived(bytes uint64, success bool) {
	if e.observer != nil {
		e.observer.ObserveFrameReceived(bytes, success)
	}
}

func (e *Engine) observeFrameSent(bytes uint64, success bool) {
	if e.observer != nil {
		e.observer.ObserveFrameSent(bytes, success)
	}
}

func (e *Engine) observeReassemblyComplete(whole uint32, fragments int) {
	if e.observer != nil {
		e.observer.ObserveReassemblyComplete(whole, fragments)
	}
}

func (e *Engine) observeReassemblyGiveUp() {
	if e.observer != nil {
		e.observer.ObserveReassemblyGiveUp()
	}
}

func (e *Engine) observeDuplicateFragment() {
	if e.observer != nil {
		e.observer.ObserveDuplicateFragment()
	}
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

func (e *Engine) debugf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debugf(format, args...)
	}
}
