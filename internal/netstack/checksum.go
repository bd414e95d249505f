package netstack

import "encoding/binary"

// onesComplementSum computes the running ones-complement sum over data,
// folding the final carry the way the IPv4/ICMP/UDP/TCP checksums all do.
func onesComplementSum(data []byte, initial uint32) uint32 {
	sum := initial
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return sum
}

// checksum16 finishes a ones-complement sum into the 16-bit field value.
func checksum16(sum uint32) uint16 {
	return ^uint16(sum)
}

// ipChecksum computes the standard IPv4 header checksum.
func ipChecksum(header []byte) uint16 {
	return checksum16(onesComplementSum(header, 0))
}

// pseudoHeaderSumV4 seeds a running checksum with the IPv4 pseudo-header
// used by UDP and TCP: src, dst, zero, protocol, length.
func pseudoHeaderSumV4(src, dst [4]byte, proto uint8, length uint16) uint32 {
	var buf [12]byte
	copy(buf[0:4], src[:])
	copy(buf[4:8], dst[:])
	buf[8] = 0
	buf[9] = proto
	binary.BigEndian.PutUint16(buf[10:12], length)
	return onesComplementSum(buf[:], 0)
}

// pseudoHeaderSumV6 is the IPv6 analogue of pseudoHeaderSumV4.
func pseudoHeaderSumV6(src, dst [16]byte, proto uint8, length uint32) uint32 {
	var buf [40]byte
	copy(buf[0:16], src[:])
	copy(buf[16:32], dst[:])
	binary.BigEndian.PutUint32(buf[32:36], length)
	buf[36], buf[37], buf[38] = 0, 0, 0
	buf[39] = proto
	return onesComplementSum(buf[:], 0)
}
