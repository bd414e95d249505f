package netstack

import (
	"encoding/binary"

	"github.com/ehrlich-b/gonetstack/internal/buffer"
	"github.com/ehrlich-b/gonetstack/internal/constants"
	"github.com/ehrlich-b/gonetstack/internal/errs"
	"github.com/ehrlich-b/gonetstack/internal/queue"
)

const (
	icmpv6TypeNeighborSolicit    = 135
	icmpv6TypeNeighborAdvertise  = 136
	ndpOptSourceLinkLayerAddress = 1
	ndpOptTargetLinkLayerAddress = 2
)

// NDPTable is the IPv6 analogue of ARPTable: address-to-MAC bindings
// discovered via neighbor solicitation/advertisement.
type NDPTable struct {
	engine *Engine
	table  *queue.HashTable
}

func newNDPTable(e *Engine) *NDPTable {
	return &NDPTable{
		engine: e,
		table:  queue.NewHashTable(constants.ARPTableBuckets, constants.ARPTableInitialFree),
	}
}

func ipv6Key(ip [16]byte) uint64 {
	lo := binary.BigEndian.Uint64(ip[0:8])
	hi := binary.BigEndian.Uint64(ip[8:16])
	return lo ^ (hi * 0x9E3779B97F4A7C15)
}

// Lookup returns the MAC bound to ip, or ErrCodeNoMACAddress on a miss.
func (t *NDPTable) Lookup(ip [16]byte) (MAC, error) {
	v, ok := t.table.Get(ipv6Key(ip))
	if !ok {
		return MAC{}, errs.New("ndp_lookup", errs.ErrCodeNoMACAddress, "no binding for address")
	}
	return uint64ToMAC(v), nil
}

// Bind installs or overwrites an IPv6->MAC binding.
func (t *NDPTable) Bind(ip [16]byte, mac MAC) {
	t.table.Insert(ipv6Key(ip), macToUint64(mac), queue.OverwriteOnExist)
}

// icmpv6NDPUnmarshal handles neighbor solicitation/advertisement messages,
// invoked from icmpv6Unmarshal for the two NDP message types.
func (e *Engine) icmpv6NDPUnmarshal(srcMAC MAC, srcIP [16]byte, icmpType uint8, body []byte) error {
	if len(body) < 20 {
		return errs.New("ndp_unmarshal", errs.ErrCodeWrongField, "short NDP message")
	}

	var target [16]byte
	copy(target[:], body[4:20])

	switch icmpType {
	case icmpv6TypeNeighborSolicit:
		e.ndp.Bind(srcIP, srcMAC)
		if target == e.ipv6 {
			e.sendNeighborAdvertise(srcMAC, srcIP, target)
		}
	case icmpv6TypeNeighborAdvertise:
		linkLayerMAC, ok := parseNDPOptionMAC(body[20:])
		if ok {
			e.ndp.Bind(target, linkLayerMAC)
		}
	}
	return nil
}

func parseNDPOptionMAC(opts []byte) (MAC, bool) {
	for len(opts) >= 8 {
		optType := opts[0]
		optLen := int(opts[1]) * 8
		if optLen == 0 || optLen > len(opts) {
			return MAC{}, false
		}
		if optType == ndpOptSourceLinkLayerAddress || optType == ndpOptTargetLinkLayerAddress {
			var mac MAC
			copy(mac[:], opts[2:8])
			return mac, true
		}
		opts = opts[optLen:]
	}
	return MAC{}, false
}

func (e *Engine) sendNeighborSolicit(target [16]byte) {
	dst := allNodesMulticast()
	buf := e.AcquireBuffer()
	e.writeNeighborMessage(buf, icmpv6TypeNeighborSolicit, target, ndpOptSourceLinkLayerAddress)
	// A solicitation is itself how a binding gets resolved, so it must not
	// go through ipv6Marshal's NDP gating: the multicast destination never
	// has (and never needs) an NDP binding, and gating it here would solicit
	// forever. Send directly to the multicast MAC instead.
	if err := e.ipv6MarshalDirect(multicastMAC(dst), dst, icmpv6Proto, buf); err != nil {
		e.debugf("ndp: solicit send failed: %v", err)
	}
}

func (e *Engine) sendNeighborAdvertise(dstMAC MAC, dstIP [16]byte, target [16]byte) {
	buf := e.AcquireBuffer()
	e.writeNeighborMessage(buf, icmpv6TypeNeighborAdvertise, target, ndpOptTargetLinkLayerAddress)
	if err := e.ipv6MarshalDirect(dstMAC, dstIP, icmpv6Proto, buf); err != nil {
		e.debugf("ndp: advertise send failed: %v", err)
	}
}

func (e *Engine) writeNeighborMessage(buf *buffer.Buffer, icmpType uint8, target [16]byte, optType byte) {
	body := make([]byte, 28)
	body[0] = icmpType
	copy(body[4:20], target[:])
	body[20] = optType
	body[21] = 1 // option length in 8-byte units
	copy(body[22:28], e.mac[:])

	copy(buf.Data[buf.FromHdr:], body)
	buf.ValidSize = len(body)
}

func allNodesMulticast() [16]byte {
	return [16]byte{0xff, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01}
}

// multicastMAC maps an IPv6 multicast address to its Ethernet multicast
// MAC per RFC 2464: 33:33 followed by the address's low 32 bits.
func multicastMAC(ip [16]byte) MAC {
	return MAC{0x33, 0x33, ip[12], ip[13], ip[14], ip[15]}
}
