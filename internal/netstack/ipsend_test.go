package netstack

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIPv4SliceSinglePacketNoFragmentation(t *testing.T) {
	e, dev := testEngine(t)
	dstMAC := MAC{0x02, 0, 0, 0, 0, 9}
	rec := &sendRecord{
		engine: e,
		dstIP:  [4]byte{10, 0, 0, 9},
		proto:  protoUDP,
		id:     1,
		data:   []byte("small payload"),
		dstMAC: &dstMAC,
	}

	ok := e.ipv4Slice(rec)
	require.True(t, ok)
	require.Equal(t, len(rec.data), rec.sentSize)

	frames := dev.frames()
	require.Len(t, frames, 1)
	ipHdr := frames[0][14:]
	require.Equal(t, byte(0x45), ipHdr[0])
	flags := binary.BigEndian.Uint16(ipHdr[6:8])
	require.Zero(t, flags&ipv4FlagMF, "single-fragment send must not set more-fragments")
	require.Equal(t, "small payload", string(ipHdr[ipv4MinHeaderLen:]))
}

func TestIPv4SliceSplitsOversizedPayload(t *testing.T) {
	e, dev := testEngine(t)
	dstMAC := MAC{0x02, 0, 0, 0, 0, 9}
	payload := make([]byte, 3000) // more than two IPv4MTU-sized slices
	for i := range payload {
		payload[i] = byte(i)
	}
	rec := &sendRecord{
		engine: e,
		dstIP:  [4]byte{10, 0, 0, 9},
		proto:  protoUDP,
		id:     7,
		data:   payload,
		dstMAC: &dstMAC,
	}

	ok := e.ipv4Slice(rec)
	require.True(t, ok)
	require.Equal(t, len(payload), rec.sentSize)

	frames := dev.frames()
	require.Greater(t, len(frames), 1, "expected the payload to be split across multiple fragments")

	reassembled := make([]byte, 0, len(payload))
	for i, frame := range frames {
		ipHdr := frame[14:]
		flags := binary.BigEndian.Uint16(ipHdr[6:8])
		isLast := i == len(frames)-1
		if isLast {
			require.Zero(t, flags&ipv4FlagMF, "last fragment must not set more-fragments")
		} else {
			require.NotZero(t, flags&ipv4FlagMF, "non-last fragment must set more-fragments")
		}
		reassembled = append(reassembled, ipHdr[ipv4MinHeaderLen:]...)
	}
	require.Equal(t, payload, reassembled)
}

func TestIPv4SliceStopsOnDeviceFailure(t *testing.T) {
	e, dev := testEngine(t)
	dstMAC := MAC{0x02, 0, 0, 0, 0, 9}
	dev.setFail(true)

	rec := &sendRecord{
		engine: e,
		dstIP:  [4]byte{10, 0, 0, 9},
		proto:  protoUDP,
		id:     2,
		data:   []byte("hello"),
		dstMAC: &dstMAC,
	}

	ok := e.ipv4Slice(rec)
	require.False(t, ok)
	require.Zero(t, rec.sentSize, "a failed send must not advance sentSize")
}

func TestIPv4SendWithExistingARPBindingSendsAsynchronously(t *testing.T) {
	e, dev := testEngine(t)
	dstIP := [4]byte{10, 0, 0, 9}
	e.arp.Bind(dstIP, MAC{0x02, 0, 0, 0, 0, 9})

	err := e.IPv4Send(dstIP, protoUDP, []byte("hi"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(dev.frames()) == 1
	}, time.Second, time.Millisecond)
}

func TestIPv4SendWithoutARPBindingSendsSolicitAndRetries(t *testing.T) {
	e, dev := testEngine(t)
	dstIP := [4]byte{10, 0, 0, 42}

	err := e.IPv4Send(dstIP, protoUDP, []byte("hi"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(dev.frames()) >= 1
	}, time.Second, time.Millisecond)

	frame := dev.frames()[0]
	etherType := binary.BigEndian.Uint16(frame[12:14])
	require.Equal(t, uint16(etherTypeARP), etherType, "expected an ARP request while no binding exists")

	// The first checkGetMAC fires after ARPWaitUS and, still finding no
	// binding, sends a second ARP request.
	require.Eventually(t, func() bool {
		return len(dev.frames()) >= 2
	}, time.Second, time.Millisecond)
	retry := dev.frames()[1]
	require.Equal(t, uint16(etherTypeARP), binary.BigEndian.Uint16(retry[12:14]), "expected the retry to be another ARP request")
}
