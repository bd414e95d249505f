package netstack

import (
	"encoding/binary"

	"github.com/ehrlich-b/gonetstack/internal/buffer"
	"github.com/ehrlich-b/gonetstack/internal/constants"
	"github.com/ehrlich-b/gonetstack/internal/errs"
	"github.com/ehrlich-b/gonetstack/internal/queue"
)

const (
	arpHeaderLen = 28

	arpHTypeEthernet = 1
	arpPTypeIPv4     = 0x0800
	arpOpRequest     = 1
	arpOpReply       = 2
)

// ARPTable maps IPv4 addresses to MAC bindings. Lookups never block: a
// miss returns ErrCodeNoMACAddress, which the send engine treats as a
// transient condition driving a retry.
type ARPTable struct {
	engine *Engine
	table  *queue.HashTable
}

func newARPTable(e *Engine) *ARPTable {
	return &ARPTable{
		engine: e,
		table:  queue.NewHashTable(constants.ARPTableBuckets, constants.ARPTableInitialFree),
	}
}

func ipv4Key(ip [4]byte) uint64 {
	return uint64(binary.BigEndian.Uint32(ip[:]))
}

func macToUint64(m MAC) uint64 {
	var b [8]byte
	copy(b[2:], m[:])
	return binary.BigEndian.Uint64(b[:])
}

func uint64ToMAC(v uint64) MAC {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	var m MAC
	copy(m[:], b[2:])
	return m
}

// Lookup returns the MAC bound to ip, or ErrCodeNoMACAddress on a miss.
func (t *ARPTable) Lookup(ip [4]byte) (MAC, error) {
	v, ok := t.table.Get(ipv4Key(ip))
	if !ok {
		return MAC{}, errs.New("arp_lookup", errs.ErrCodeNoMACAddress, "no binding for address")
	}
	return uint64ToMAC(v), nil
}

// Bind installs or overwrites an IP->MAC binding, as happens on receiving
// an ARP reply (or request, which also carries the sender's binding).
func (t *ARPTable) Bind(ip [4]byte, mac MAC) {
	t.table.Insert(ipv4Key(ip), macToUint64(mac), queue.OverwriteOnExist)
}

// arpUnmarshal handles an inbound ARP packet: installs the sender's
// binding, and replies to requests for our own address.
func (e *Engine) arpUnmarshal(srcMAC MAC, buf *buffer.Buffer) (errs.Outcome, error) {
	payload := buf.Payload()
	if len(payload) < arpHeaderLen {
		buf.Release()
		return errs.OutcomeDropped, errs.New("arp_unmarshal", errs.ErrCodeWrongField, "short ARP packet")
	}

	htype := binary.BigEndian.Uint16(payload[0:2])
	ptype := binary.BigEndian.Uint16(payload[2:4])
	op := binary.BigEndian.Uint16(payload[6:8])
	if htype != arpHTypeEthernet || ptype != arpPTypeIPv4 {
		buf.Release()
		return errs.OutcomeDropped, errs.New("arp_unmarshal", errs.ErrCodeNotImplemented, "unsupported ARP hw/proto type")
	}

	var senderIP, targetIP [4]byte
	copy(senderIP[:], payload[14:18])
	copy(targetIP[:], payload[24:28])

	e.arp.Bind(senderIP, srcMAC)

	if op == arpOpRequest && targetIP == e.ipv4 {
		e.sendARPReply(srcMAC, senderIP)
	}

	buf.Release()
	return errs.OutcomeConsumed, nil
}

func (e *Engine) sendARPRequest(target [4]byte) {
	buf := e.AcquireBuffer()
	e.writeARP(buf, arpOpRequest, BroadcastMAC, target)
	if err := e.ethernetMarshal(BroadcastMAC, etherTypeARP, buf); err != nil {
		e.debugf("arp: request send failed: %v", err)
	}
}

func (e *Engine) sendARPReply(dstMAC MAC, dstIP [4]byte) {
	buf := e.AcquireBuffer()
	e.writeARP(buf, arpOpReply, dstMAC, dstIP)
	if err := e.ethernetMarshal(dstMAC, etherTypeARP, buf); err != nil {
		e.debugf("arp: reply send failed: %v", err)
	}
}

func (e *Engine) writeARP(buf *buffer.Buffer, op uint16, dstMAC MAC, dstIP [4]byte) {
	_ = buf.Retreat(0)
	hdr := make([]byte, arpHeaderLen)
	binary.BigEndian.PutUint16(hdr[0:2], arpHTypeEthernet)
	binary.BigEndian.PutUint16(hdr[2:4], arpPTypeIPv4)
	hdr[4] = 6
	hdr[5] = 4
	binary.BigEndian.PutUint16(hdr[6:8], op)
	copy(hdr[8:14], e.mac[:])
	copy(hdr[14:18], e.ipv4[:])
	copy(hdr[18:24], dstMAC[:])
	copy(hdr[24:28], dstIP[:])

	copy(buf.Data[buf.FromHdr:], hdr)
	buf.ValidSize = arpHeaderLen
}
