package netstack

import (
	"encoding/binary"

	"github.com/ehrlich-b/gonetstack/internal/errs"
)

const tcpMinHeaderLen = 20

// tcpUnmarshalV4 validates checksum and header length, and either delivers
// the segment to its shard or drops it if nothing is listening on the
// destination port. No RST is sent on the drop path; this engine only
// ever participates as configured listeners, never as a full peer that
// resets unexpected connections.
func (e *Engine) tcpUnmarshalV4(srcIP [4]byte, data []byte) (errs.Outcome, error) {
	if len(data) < tcpMinHeaderLen {
		return errs.OutcomeDropped, errs.New("tcp_unmarshal", errs.ErrCodeWrongField, "short TCP header")
	}
	dataOffset := int(data[12]>>4) * 4
	if dataOffset < tcpMinHeaderLen || dataOffset > len(data) {
		return errs.OutcomeDropped, errs.New("tcp_unmarshal", errs.ErrCodeWrongField, "TCP data offset out of range")
	}

	sum := pseudoHeaderSumV4(srcIP, e.ipv4, protoTCP, uint16(len(data)))
	sum = onesComplementSum(data, sum)
	if checksum16(sum) != 0 {
		return errs.OutcomeDropped, errs.New("tcp_unmarshal", errs.ErrCodeWrongChecksum, "TCP checksum invalid")
	}

	dstPort := binary.BigEndian.Uint16(data[2:4])
	if !e.tcpServer.isListening(dstPort) {
		return errs.OutcomeDropped, nil
	}

	seg := &segment{
		srcIP:   v4Mapped(srcIP),
		srcPort: binary.BigEndian.Uint16(data[0:2]),
		dstPort: dstPort,
		proto:   protoTCP,
		data:    append([]byte(nil), data[dataOffset:]...),
	}
	e.deliverTCP(seg)
	return errs.OutcomeConsumed, nil
}

// tcpUnmarshalV6 is the IPv6 analogue of tcpUnmarshalV4.
func (e *Engine) tcpUnmarshalV6(srcIP [16]byte, data []byte) (errs.Outcome, error) {
	if len(data) < tcpMinHeaderLen {
		return errs.OutcomeDropped, errs.New("tcp_unmarshal", errs.ErrCodeWrongField, "short TCP header")
	}
	dataOffset := int(data[12]>>4) * 4
	if dataOffset < tcpMinHeaderLen || dataOffset > len(data) {
		return errs.OutcomeDropped, errs.New("tcp_unmarshal", errs.ErrCodeWrongField, "TCP data offset out of range")
	}

	sum := pseudoHeaderSumV6(srcIP, e.ipv6, tcpProto6, uint32(len(data)))
	sum = onesComplementSum(data, sum)
	if checksum16(sum) != 0 {
		return errs.OutcomeDropped, errs.New("tcp_unmarshal", errs.ErrCodeWrongChecksum, "TCP checksum invalid")
	}

	dstPort := binary.BigEndian.Uint16(data[2:4])
	if !e.tcpServer.isListening(dstPort) {
		return errs.OutcomeDropped, nil
	}

	seg := &segment{
		srcIP:   srcIP,
		srcPort: binary.BigEndian.Uint16(data[0:2]),
		dstPort: dstPort,
		proto:   tcpProto6,
		data:    append([]byte(nil), data[dataOffset:]...),
	}
	e.deliverTCP(seg)
	return errs.OutcomeConsumed, nil
}
