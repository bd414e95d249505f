// Package backend provides Device implementations for running the engine
// without a real network interface.
package backend

import (
	"sync"

	netstack "github.com/ehrlich-b/gonetstack"
)

// Loopback connects two engines in-process: a frame sent on one side is
// delivered directly to the other's FrameUnmarshal on its own goroutine,
// with no real link layer, packet socket, or TAP device in between. Used
// by the demo CLI and integration tests.
type Loopback struct {
	mtu int

	mu     sync.Mutex
	peer   *netstack.Engine
	closed bool
}

// NewLoopback creates an unbound loopback device; call Bind before any
// Send.
func NewLoopback(mtu int) *Loopback {
	return &Loopback{mtu: mtu}
}

// Bind wires the device's peer engine.
func (l *Loopback) Bind(peer *netstack.Engine) {
	l.mu.Lock()
	l.peer = peer
	l.mu.Unlock()
}

// Send implements Device by handing buf directly to the peer's
// FrameUnmarshal entry point.
func (l *Loopback) Send(buf *netstack.Buffer) error {
	l.mu.Lock()
	peer := l.peer
	closed := l.closed
	l.mu.Unlock()

	if closed {
		return netstack.NewError("loopback_send", netstack.ErrCodeSendFailed, "device closed")
	}
	if peer == nil {
		return netstack.NewError("loopback_send", netstack.ErrCodeInitFailed, "no peer bound")
	}

	go func() {
		outcome, _ := peer.FrameUnmarshal(buf)
		if outcome != netstack.OutcomeRetained {
			buf.Release()
		}
	}()
	return nil
}

// MTU implements Device.
func (l *Loopback) MTU() int {
	return l.mtu
}

// Close marks the device closed; further Send calls fail.
func (l *Loopback) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

var _ netstack.Device = (*Loopback)(nil)
