package netstack

import "sync"

// LoopbackDevice is a Device that queues every sent frame for the test to
// retrieve with Sent, without a real link layer. It does not deliver frames
// to any engine's FrameUnmarshal. It tracks call counts for verification.
type LoopbackDevice struct {
	mu        sync.Mutex
	mtu       int
	sent      []*Buffer
	sendCalls int
	closed    bool
}

// NewLoopbackDevice creates a loopback device with the given MTU.
func NewLoopbackDevice(mtu int) *LoopbackDevice {
	return &LoopbackDevice{mtu: mtu}
}

// Send implements Device: it records buf rather than transmitting it.
func (d *LoopbackDevice) Send(buf *Buffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sendCalls++
	if d.closed {
		return NewError("loopback_send", ErrCodeSendFailed, "device closed")
	}
	d.sent = append(d.sent, buf)
	return nil
}

// MTU implements Device.
func (d *LoopbackDevice) MTU() int {
	return d.mtu
}

// Sent drains and returns every buffer queued by Send since the last call.
func (d *LoopbackDevice) Sent() []*Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.sent
	d.sent = nil
	return out
}

// SendCalls returns the number of times Send has been called.
func (d *LoopbackDevice) SendCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendCalls
}

// Close marks the device closed; further Send calls fail.
func (d *LoopbackDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

var _ Device = (*LoopbackDevice)(nil)
