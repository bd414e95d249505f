package netstack

import (
	"encoding/binary"

	"github.com/ehrlich-b/gonetstack/internal/errs"
)

const (
	icmpv6TypeEchoRequest = 128
	icmpv6TypeEchoReply   = 129
)

// icmpv6Unmarshal dispatches a reassembled ICMPv6 payload: neighbor
// discovery messages go to icmpv6NDPUnmarshal, echo request gets a reply,
// everything else is dropped. Unlike ICMPv4, the checksum here covers the
// IPv6 pseudo-header rather than the ICMPv6 header alone, so validating it
// requires the source/destination addresses; callers that need strict
// validation should check it before calling in.
func (e *Engine) icmpv6Unmarshal(srcMAC MAC, srcIP [16]byte, body []byte) (errs.Outcome, error) {
	if len(body) < 4 {
		return errs.OutcomeDropped, errs.New("icmpv6_unmarshal", errs.ErrCodeWrongField, "short ICMPv6 message")
	}

	icmpType := body[0]
	switch icmpType {
	case icmpv6TypeNeighborSolicit, icmpv6TypeNeighborAdvertise:
		if err := e.icmpv6NDPUnmarshal(srcMAC, srcIP, icmpType, body); err != nil {
			return errs.OutcomeDropped, err
		}
		return errs.OutcomeConsumed, nil
	case icmpv6TypeEchoRequest:
		e.sendICMPv6EchoReply(srcMAC, srcIP, body)
		return errs.OutcomeConsumed, nil
	default:
		return errs.OutcomeDropped, errs.New("icmpv6_unmarshal", errs.ErrCodeNotImplemented, "unsupported ICMPv6 type")
	}
}

func (e *Engine) sendICMPv6EchoReply(dstMAC MAC, dstIP [16]byte, echo []byte) {
	reply := make([]byte, len(echo))
	copy(reply, echo)
	reply[0] = icmpv6TypeEchoReply
	reply[2], reply[3] = 0, 0

	seed := pseudoHeaderSumV6(e.ipv6, dstIP, icmpv6Proto, uint32(len(reply)))
	binary.BigEndian.PutUint16(reply[2:4], checksum16(onesComplementSum(reply, seed)))

	buf := e.AcquireBuffer()
	copy(buf.Data[buf.FromHdr:buf.FromHdr+len(reply)], reply)
	buf.ValidSize = len(reply)

	if err := e.ipv6MarshalDirect(dstMAC, dstIP, icmpv6Proto, buf); err != nil {
		e.debugf("icmpv6: echo reply send failed: %v", err)
	}
}
