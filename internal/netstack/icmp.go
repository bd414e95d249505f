package netstack

import (
	"encoding/binary"

	"github.com/ehrlich-b/gonetstack/internal/errs"
)

const (
	icmpTypeEchoRequest = 8
	icmpTypeEchoReply   = 0
	icmpHeaderLen       = 8
)

// icmpUnmarshal handles a reassembled ICMPv4 payload. Only echo request is
// implemented (answered with an echo reply); every other type, echo reply
// included, is dropped.
func (e *Engine) icmpUnmarshal(srcIP [4]byte, data []byte) (errs.Outcome, error) {
	if len(data) < icmpHeaderLen {
		return errs.OutcomeDropped, errs.New("icmp_unmarshal", errs.ErrCodeWrongField, "short ICMP message")
	}
	if ipChecksum(data) != 0 {
		return errs.OutcomeDropped, errs.New("icmp_unmarshal", errs.ErrCodeWrongChecksum, "ICMP checksum invalid")
	}

	icmpType := data[0]
	switch icmpType {
	case icmpTypeEchoRequest:
		e.sendICMPEchoReply(srcIP, data)
		return errs.OutcomeConsumed, nil
	default:
		return errs.OutcomeDropped, errs.New("icmp_unmarshal", errs.ErrCodeNotImplemented, "unsupported ICMP type")
	}
}

// sendICMPEchoReply builds the reply in a freshly allocated slice rather
// than a pooled buffer: IPv4Send retains its payload across an
// asynchronous ARP wait and retry sequence, well past the point a pooled
// buffer would normally be released back for reuse.
func (e *Engine) sendICMPEchoReply(dstIP [4]byte, echo []byte) {
	reply := make([]byte, len(echo))
	copy(reply, echo)
	reply[0] = icmpTypeEchoReply
	reply[1] = 0
	reply[2], reply[3] = 0, 0
	binary.BigEndian.PutUint16(reply[2:4], ipChecksum(reply))

	if err := e.IPv4Send(dstIP, protoICMP, reply); err != nil {
		e.debugf("icmp: echo reply send failed: %v", err)
	}
}
