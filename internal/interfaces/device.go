// Package interfaces provides internal interface definitions for
// gonetstack. These are separate from the public package's types to avoid
// import cycles between the engine and its internal layers.
package interfaces

import "github.com/ehrlich-b/gonetstack/internal/buffer"

// Device is the boundary to the physical (or simulated) link layer. The
// engine never owns a receive loop itself: the device drives ingress by
// calling the engine's frame entry point, and the engine drives egress by
// calling Send.
type Device interface {
	// Send takes ownership of buf and transmits it. buf.FromHdr bytes of
	// headroom have already been consumed by every header the caller
	// wrote; Send must not assume there is room to prepend further.
	Send(buf *buffer.Buffer) error

	// MTU returns the device's Ethernet payload MTU.
	MTU() int
}

// Logger is the narrow logging surface every internal component depends
// on; nil is a valid Logger (all calls become no-ops).
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer receives point-in-time engine events for metrics collection.
// Implementations must be safe for concurrent use: methods are called
// from worker goroutines.
type Observer interface {
	ObserveFrameReceived(bytes uint64, success bool)
	ObserveFrameSent(bytes uint64, success bool)
	ObserveReassemblyComplete(whole uint32, fragments int)
	ObserveReassemblyGiveUp()
	ObserveSendGiveUp()
	ObserveDuplicateFragment()
	ObserveQueueFull()
}
