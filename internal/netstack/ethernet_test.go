package netstack

import (
	"encoding/binary"
	"testing"

	"github.com/ehrlich-b/gonetstack/internal/errs"
)

func TestFrameUnmarshalRejectsWrongDestination(t *testing.T) {
	e, _ := testEngine(t)
	buf := e.AcquireBuffer()
	frame := make([]byte, 20)
	copy(frame[0:6], MAC{9, 9, 9, 9, 9, 9}[:]) // not ours, not broadcast
	copy(buf.Data[buf.FromHdr:], frame)
	buf.ValidSize = len(frame)

	outcome, err := e.FrameUnmarshal(buf)
	if outcome != errs.OutcomeDropped || !errs.IsCode(err, errs.ErrCodeWrongMAC) {
		t.Errorf("expected ErrCodeWrongMAC drop, got %v, %v", outcome, err)
	}
}

func TestFrameUnmarshalAcceptsBroadcast(t *testing.T) {
	e, _ := testEngine(t)
	buf := e.AcquireBuffer()
	frame := make([]byte, 20)
	copy(frame[0:6], BroadcastMAC[:])
	binary.BigEndian.PutUint16(frame[12:14], 0x9999) // unsupported EtherType
	copy(buf.Data[buf.FromHdr:], frame)
	buf.ValidSize = len(frame)

	outcome, err := e.FrameUnmarshal(buf)
	if outcome != errs.OutcomeDropped || !errs.IsCode(err, errs.ErrCodeNotImplemented) {
		t.Errorf("expected an unsupported-EtherType drop past the MAC check, got %v, %v", outcome, err)
	}
}

func TestFrameUnmarshalRejectsShortFrame(t *testing.T) {
	e, _ := testEngine(t)
	buf := e.AcquireBuffer()
	buf.ValidSize = 4

	outcome, err := e.FrameUnmarshal(buf)
	if outcome != errs.OutcomeDropped || !errs.IsCode(err, errs.ErrCodeWrongField) {
		t.Errorf("expected a short-frame drop, got %v, %v", outcome, err)
	}
}

func TestEthernetMarshalPrependsHeaderAndSends(t *testing.T) {
	e, dev := testEngine(t)
	dst := MAC{0x02, 0, 0, 0, 0, 9}

	buf := e.AcquireBuffer()
	copy(buf.Data[buf.FromHdr:buf.FromHdr+4], []byte("data"))
	buf.ValidSize = 4

	if err := e.ethernetMarshal(dst, etherTypeIPv4, buf); err != nil {
		t.Fatalf("ethernetMarshal failed: %v", err)
	}

	frames := dev.frames()
	if len(frames) != 1 {
		t.Fatalf("expected one frame sent, got %d", len(frames))
	}
	frame := frames[0]
	var gotDst MAC
	copy(gotDst[:], frame[0:6])
	if gotDst != dst {
		t.Errorf("frame dst MAC = %v, want %v", gotDst, dst)
	}
	var gotSrc MAC
	copy(gotSrc[:], frame[6:12])
	if gotSrc != e.mac {
		t.Errorf("frame src MAC = %v, want %v", gotSrc, e.mac)
	}
	etherType := binary.BigEndian.Uint16(frame[12:14])
	if etherType != etherTypeIPv4 {
		t.Errorf("EtherType = %#x, want IPv4", etherType)
	}
	if string(frame[14:]) != "data" {
		t.Errorf("payload = %q, want %q", frame[14:], "data")
	}
}

func TestEthernetMarshalNoDeviceFails(t *testing.T) {
	e, _ := testEngine(t)
	e.device = nil

	buf := e.AcquireBuffer()
	buf.ValidSize = 4
	err := e.ethernetMarshal(MAC{}, etherTypeIPv4, buf)
	if !errs.IsCode(err, errs.ErrCodeInitFailed) {
		t.Errorf("expected ErrCodeInitFailed with no device bound, got %v", err)
	}
}
