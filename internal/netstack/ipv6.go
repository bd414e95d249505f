package netstack

import (
	"encoding/binary"

	"github.com/ehrlich-b/gonetstack/internal/buffer"
	"github.com/ehrlich-b/gonetstack/internal/errs"
)

const (
	ipv6HeaderLen = 40

	icmpv6Proto = 58
	tcpProto6   = 6
	udpProto6   = 17
)

// ipv6Unmarshal validates a fixed IPv6 header and dispatches directly to
// the matching transport entry point. IPv6 send never fragments in this
// engine (see the IPv6 module notes), so there is no reassembly table on
// the receive side either: extension headers and fragment headers are not
// supported.
func (e *Engine) ipv6Unmarshal(srcMAC MAC, buf *buffer.Buffer) (errs.Outcome, error) {
	payload := buf.Payload()
	if len(payload) < ipv6HeaderLen {
		buf.Release()
		return errs.OutcomeDropped, errs.New("ipv6_unmarshal", errs.ErrCodeWrongField, "short IPv6 header")
	}

	version := payload[0] >> 4
	if version != 6 {
		buf.Release()
		return errs.OutcomeDropped, errs.New("ipv6_unmarshal", errs.ErrCodeWrongField, "not IPv6")
	}

	payloadLen := int(binary.BigEndian.Uint16(payload[4:6]))
	nextHeader := payload[6]

	var srcIP, dstIP [16]byte
	copy(srcIP[:], payload[8:24])
	copy(dstIP[:], payload[24:40])

	if dstIP != e.ipv6 {
		buf.Release()
		return errs.OutcomeDropped, errs.New("ipv6_unmarshal", errs.ErrCodeWrongIPAddress, "not addressed to us")
	}
	if ipv6HeaderLen+payloadLen > len(payload) {
		buf.Release()
		return errs.OutcomeDropped, errs.New("ipv6_unmarshal", errs.ErrCodeWrongField, "payload length mismatch")
	}

	e.ndp.Bind(srcIP, srcMAC)

	if err := buf.Advance(ipv6HeaderLen); err != nil {
		buf.Release()
		return errs.OutcomeDropped, errs.Wrap("ipv6_unmarshal", err)
	}
	body := buf.Payload()[:payloadLen]

	var outcome errs.Outcome
	var err error
	switch nextHeader {
	case icmpv6Proto:
		outcome, err = e.icmpv6Unmarshal(srcMAC, srcIP, body)
	case udpProto6:
		outcome, err = e.udpUnmarshalV6(srcIP, body)
	case tcpProto6:
		outcome, err = e.tcpUnmarshalV6(srcIP, body)
	default:
		outcome, err = errs.OutcomeDropped, errs.New("ipv6_unmarshal", errs.ErrCodeWrongProtocol, "unknown next header")
	}
	if outcome != errs.OutcomeRetained {
		buf.Release()
	}
	return outcome, err
}

// ipv6Marshal looks up target's link-layer address in the NDP table and,
// on a hit, hands the already-built buf to the link layer (no slicing:
// IPv6 send never fragments here). On a miss it releases buf, sends a
// neighbor solicitation and returns the lookup error; unlike IPv4Send, the
// send is not deferred or retried.
func (e *Engine) ipv6Marshal(dstIP [16]byte, nextHeader uint8, buf *buffer.Buffer) error {
	mac, err := e.ndp.Lookup(dstIP)
	if err != nil {
		buf.Release()
		e.sendNeighborSolicit(dstIP)
		return errs.Wrap("ipv6_marshal", err)
	}
	return e.ipv6MarshalDirect(mac, dstIP, nextHeader, buf)
}

// ipv6MarshalDirect writes the IPv6 header and sends to a known MAC,
// skipping NDP resolution. Used for replies where the destination MAC is
// already known (an NDP advertisement, or a UDP/TCP reply on an existing
// binding).
func (e *Engine) ipv6MarshalDirect(dstMAC MAC, dstIP [16]byte, nextHeader uint8, buf *buffer.Buffer) error {
	payloadLen := buf.ValidSize
	if err := buf.Retreat(ipv6HeaderLen); err != nil {
		buf.Release()
		return errs.Wrap("ipv6_marshal", err)
	}
	hdr := buf.Header(ipv6HeaderLen)
	hdr[0] = 0x60 // version 6, traffic class/flow label left zero
	hdr[1], hdr[2], hdr[3] = 0, 0, 0
	binary.BigEndian.PutUint16(hdr[4:6], uint16(payloadLen))
	hdr[6] = nextHeader
	hdr[7] = 64 // hop limit
	copy(hdr[8:24], e.ipv6[:])
	copy(hdr[24:40], dstIP[:])

	return e.ethernetMarshal(dstMAC, etherTypeIPv6, buf)
}
