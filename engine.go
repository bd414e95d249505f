// Package netstack provides the public API for a userspace network stack:
// an Ethernet/ARP/NDP/IPv4/IPv6 engine that receives frames from a pluggable
// Device, reassembles fragmented IPv4 datagrams, and dispatches ICMP, UDP,
// and TCP payloads to sharded delivery queues.
package netstack

import (
	"github.com/ehrlich-b/gonetstack/internal/buffer"
	"github.com/ehrlich-b/gonetstack/internal/interfaces"
	intnetstack "github.com/ehrlich-b/gonetstack/internal/netstack"
)

// Buffer is the scatter-buffer type shared by the device boundary and
// every protocol layer.
type Buffer = buffer.Buffer

// Device is the boundary to the physical (or simulated) link layer.
type Device = interfaces.Device

// Logger is the narrow logging surface the engine depends on; nil is a
// valid Logger.
type Logger = interfaces.Logger

// MAC is a 6-byte hardware address.
type MAC = intnetstack.MAC

// BroadcastMAC is the Ethernet broadcast address.
var BroadcastMAC = intnetstack.BroadcastMAC

// Options configures a new Engine.
type Options struct {
	// Device is where received frames come from and sent frames go.
	// Required.
	Device Device

	// Logger receives debug/info messages; nil disables logging.
	Logger Logger

	// Observer receives metrics events; nil uses NoOpObserver.
	Observer Observer

	// MAC is this engine's own hardware address.
	MAC MAC

	// IPv4 and IPv6 are this engine's own addresses.
	IPv4 [4]byte
	IPv6 [16]byte

	// Workers is the fixed worker pool size; 0 uses DefaultWorkers.
	Workers int

	// TaskQueue is the bounded task submission queue capacity; 0 uses
	// TaskQueueSize.
	TaskQueue int

	// CPUAffinity, if non-empty, pins worker i to CPU
	// CPUAffinity[i%len(CPUAffinity)].
	CPUAffinity []int
}

// Engine is the process-wide entry point: it receives frames via
// FrameUnmarshal, sends via IPv4Send/IPv6Send, and delivers UDP/TCP
// payloads to sharded queues a caller drains with DequeueUDP/DequeueTCP.
type Engine struct {
	inner *intnetstack.Engine
}

// NewEngine constructs an Engine and starts its worker pool and timer
// goroutine. Call Close to stop them.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Device == nil {
		return nil, NewError("new_engine", ErrCodeInitFailed, "no device provided")
	}

	var observer Observer = NoOpObserver{}
	if opts.Observer != nil {
		observer = opts.Observer
	}

	inner := intnetstack.NewEngine(intnetstack.Config{
		Device:      opts.Device,
		Logger:      opts.Logger,
		Observer:    observer,
		MAC:         opts.MAC,
		IPv4:        opts.IPv4,
		IPv6:        opts.IPv6,
		Workers:     opts.Workers,
		TaskQueue:   opts.TaskQueue,
		CPUAffinity: opts.CPUAffinity,
	})

	return &Engine{inner: inner}, nil
}

// Close stops the worker pool and timer goroutine, invoking close hooks on
// every task still pending.
func (e *Engine) Close() {
	e.inner.Close()
}

// AcquireBuffer returns a fresh buffer with device headroom already
// consumed, for the caller to fill and hand to the device before calling
// FrameUnmarshal, or for building an outgoing message.
func (e *Engine) AcquireBuffer() *Buffer {
	return e.inner.AcquireBuffer()
}

// FrameUnmarshal is the device's ingress entry point. On any outcome other
// than Retained, the caller must release buf; on Retained some async
// continuation now owns it.
func (e *Engine) FrameUnmarshal(buf *Buffer) (Outcome, error) {
	return e.inner.FrameUnmarshal(buf)
}

// IPv4Send transmits payload to dstIP over IPv4, resolving the next hop's
// MAC via ARP and slicing into MTU-sized fragments as needed. Send is
// asynchronous: a nil error means the send was accepted for processing,
// not that it reached the wire.
func (e *Engine) IPv4Send(dstIP [4]byte, proto uint8, payload []byte) error {
	return e.inner.IPv4Send(dstIP, proto, payload)
}

// ListenTCP marks port as accepting inbound TCP segments.
func (e *Engine) ListenTCP(port uint16) { e.inner.ListenTCP(port) }

// CloseTCP stops accepting inbound TCP segments on port.
func (e *Engine) CloseTCP(port uint16) { e.inner.CloseTCP(port) }

// UDPQueueCount and TCPQueueCount report the number of delivery shards.
func (e *Engine) UDPQueueCount() int { return e.inner.UDPQueueCount() }
func (e *Engine) TCPQueueCount() int { return e.inner.TCPQueueCount() }

// DequeueUDP drains the next delivered UDP segment from shard i, if any.
func (e *Engine) DequeueUDP(i int) (srcIP [16]byte, srcPort, dstPort uint16, data []byte, ok bool) {
	return e.inner.DequeueUDP(i)
}

// DequeueTCP drains the next delivered TCP segment from shard i, if any.
func (e *Engine) DequeueTCP(i int) (srcIP [16]byte, srcPort, dstPort uint16, data []byte, ok bool) {
	return e.inner.DequeueTCP(i)
}
