package netstack

import (
	"sync"
	"testing"

	"github.com/ehrlich-b/gonetstack/internal/buffer"
	"github.com/ehrlich-b/gonetstack/internal/errs"
)

// captureDevice is a Device that records every sent buffer's payload
// instead of transmitting it, for assertions against marshaled frame
// contents. The buffer itself is released back to its pool immediately,
// mirroring what a real device does once the bytes are copied to the
// wire.
type captureDevice struct {
	mu   sync.Mutex
	sent [][]byte
	mtu  int
	fail bool
}

func newCaptureDevice() *captureDevice {
	return &captureDevice{mtu: 1500}
}

func (d *captureDevice) Send(buf *buffer.Buffer) error {
	d.mu.Lock()
	fail := d.fail
	if !fail {
		d.sent = append(d.sent, append([]byte(nil), buf.Payload()...))
	}
	d.mu.Unlock()
	buf.Release()
	if fail {
		return errs.New("capture_device", errs.ErrCodeSendFailed, "simulated send failure")
	}
	return nil
}

func (d *captureDevice) MTU() int { return d.mtu }

func (d *captureDevice) frames() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.sent...)
}

func (d *captureDevice) setFail(fail bool) {
	d.mu.Lock()
	d.fail = fail
	d.mu.Unlock()
}

// testEngine builds an Engine wired to a captureDevice, for tests that
// drive the receive or send path end to end within this package. Its
// worker pool and timer goroutine are stopped automatically at test
// cleanup.
func testEngine(t *testing.T) (*Engine, *captureDevice) {
	t.Helper()
	dev := newCaptureDevice()
	e := NewEngine(Config{
		Device: dev,
		MAC:    MAC{0x02, 0, 0, 0, 0, 1},
		IPv4:   [4]byte{10, 0, 0, 1},
		IPv6:   [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x1},
	})
	t.Cleanup(e.Close)
	return e, dev
}
