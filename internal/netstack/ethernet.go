package netstack

import (
	"encoding/binary"

	"github.com/ehrlich-b/gonetstack/internal/buffer"
	"github.com/ehrlich-b/gonetstack/internal/errs"
)

const (
	etherHeaderLen = 14

	etherTypeARP  = 0x0806
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
)

// FrameUnmarshal is the device ingress entry point: buf already has
// constants.DeviceHeaderReserve bytes of headroom consumed, and its valid
// payload starts at the Ethernet header. On any outcome other than
// Retained, the caller (the device) must release buf; on Retained some
// async continuation (reassembly, a transport delivery queue) now owns it.
func (e *Engine) FrameUnmarshal(buf *buffer.Buffer) (errs.Outcome, error) {
	payload := buf.Payload()
	frameBytes := uint64(len(payload))

	if len(payload) < etherHeaderLen {
		e.observeFrameReceived(frameBytes, false)
		return errs.OutcomeDropped, errs.New("ethernet_unmarshal", errs.ErrCodeWrongField, "frame shorter than an Ethernet header")
	}

	var dst MAC
	copy(dst[:], payload[0:6])
	if dst != e.mac && dst != BroadcastMAC {
		e.observeFrameReceived(frameBytes, false)
		return errs.OutcomeDropped, errs.New("ethernet_unmarshal", errs.ErrCodeWrongMAC, "frame not addressed to us")
	}

	var src MAC
	copy(src[:], payload[6:12])
	etherType := binary.BigEndian.Uint16(payload[12:14])

	if err := buf.Advance(etherHeaderLen); err != nil {
		e.observeFrameReceived(frameBytes, false)
		return errs.OutcomeDropped, errs.Wrap("ethernet_unmarshal", err)
	}

	var outcome errs.Outcome
	var err error
	switch etherType {
	case etherTypeARP:
		outcome, err = e.arpUnmarshal(src, buf)
	case etherTypeIPv4:
		outcome, err = e.ipv4Unmarshal(src, buf)
	case etherTypeIPv6:
		outcome, err = e.ipv6Unmarshal(src, buf)
	default:
		outcome, err = errs.OutcomeDropped, errs.New("ethernet_unmarshal", errs.ErrCodeNotImplemented, "unsupported EtherType")
	}
	e.observeFrameReceived(frameBytes, outcome != errs.OutcomeDropped)
	return outcome, err
}

// ethernetMarshal prepends an Ethernet II header and hands buf to the
// device. It takes ownership of buf regardless of outcome.
func (e *Engine) ethernetMarshal(dst MAC, etherType uint16, buf *buffer.Buffer) error {
	if err := buf.Retreat(etherHeaderLen); err != nil {
		return errs.Wrap("ethernet_marshal", err)
	}
	hdr := buf.Header(etherHeaderLen)
	copy(hdr[0:6], dst[:])
	copy(hdr[6:12], e.mac[:])
	binary.BigEndian.PutUint16(hdr[12:14], etherType)

	frameBytes := uint64(buf.ValidSize)
	if e.device == nil {
		e.observeFrameSent(frameBytes, false)
		return errs.New("ethernet_marshal", errs.ErrCodeInitFailed, "no device bound")
	}
	if err := e.device.Send(buf); err != nil {
		e.observeFrameSent(frameBytes, false)
		return errs.Wrap("ethernet_marshal", err)
	}
	e.observeFrameSent(frameBytes, true)
	return nil
}
