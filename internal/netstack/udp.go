package netstack

import (
	"encoding/binary"

	"github.com/ehrlich-b/gonetstack/internal/errs"
)

const udpHeaderLen = 8

// udpUnmarshalV4 validates a reassembled UDP datagram and delivers it to
// its shard. A zero checksum field means the sender opted out, which UDP
// over IPv4 permits.
func (e *Engine) udpUnmarshalV4(srcIP [4]byte, data []byte) (errs.Outcome, error) {
	if len(data) < udpHeaderLen {
		return errs.OutcomeDropped, errs.New("udp_unmarshal", errs.ErrCodeWrongField, "short UDP header")
	}
	length := int(binary.BigEndian.Uint16(data[4:6]))
	if length < udpHeaderLen || length > len(data) {
		return errs.OutcomeDropped, errs.New("udp_unmarshal", errs.ErrCodeWrongField, "UDP length mismatch")
	}
	datagram := data[:length]

	if checksumField := binary.BigEndian.Uint16(datagram[6:8]); checksumField != 0 {
		sum := pseudoHeaderSumV4(srcIP, e.ipv4, protoUDP, uint16(length))
		sum = onesComplementSum(datagram, sum)
		if checksum16(sum) != 0 {
			return errs.OutcomeDropped, errs.New("udp_unmarshal", errs.ErrCodeWrongChecksum, "UDP checksum invalid")
		}
	}

	seg := &segment{
		srcIP:   v4Mapped(srcIP),
		srcPort: binary.BigEndian.Uint16(datagram[0:2]),
		dstPort: binary.BigEndian.Uint16(datagram[2:4]),
		proto:   protoUDP,
		data:    append([]byte(nil), datagram[udpHeaderLen:]...),
	}
	e.deliverUDP(seg)
	return errs.OutcomeConsumed, nil
}

// udpUnmarshalV6 is the IPv6 analogue of udpUnmarshalV4; the checksum is
// mandatory over IPv6, per RFC 2460.
func (e *Engine) udpUnmarshalV6(srcIP [16]byte, data []byte) (errs.Outcome, error) {
	if len(data) < udpHeaderLen {
		return errs.OutcomeDropped, errs.New("udp_unmarshal", errs.ErrCodeWrongField, "short UDP header")
	}
	length := int(binary.BigEndian.Uint16(data[4:6]))
	if length < udpHeaderLen || length > len(data) {
		return errs.OutcomeDropped, errs.New("udp_unmarshal", errs.ErrCodeWrongField, "UDP length mismatch")
	}
	datagram := data[:length]

	sum := pseudoHeaderSumV6(srcIP, e.ipv6, udpProto6, uint32(length))
	sum = onesComplementSum(datagram, sum)
	if checksum16(sum) != 0 {
		return errs.OutcomeDropped, errs.New("udp_unmarshal", errs.ErrCodeWrongChecksum, "UDP checksum invalid")
	}

	seg := &segment{
		srcIP:   srcIP,
		srcPort: binary.BigEndian.Uint16(datagram[0:2]),
		dstPort: binary.BigEndian.Uint16(datagram[2:4]),
		proto:   udpProto6,
		data:    append([]byte(nil), datagram[udpHeaderLen:]...),
	}
	e.deliverUDP(seg)
	return errs.OutcomeConsumed, nil
}
