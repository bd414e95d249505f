package netstack

import "testing"

func buildNeighborSolicit(target [16]byte, senderMAC MAC) []byte {
	body := make([]byte, 28)
	body[0] = icmpv6TypeNeighborSolicit
	copy(body[4:20], target[:])
	body[20] = ndpOptSourceLinkLayerAddress
	body[21] = 1
	copy(body[22:28], senderMAC[:])
	return body
}

func buildNeighborAdvertise(target [16]byte, targetMAC MAC) []byte {
	body := make([]byte, 28)
	body[0] = icmpv6TypeNeighborAdvertise
	copy(body[4:20], target[:])
	body[20] = ndpOptTargetLinkLayerAddress
	body[21] = 1
	copy(body[22:28], targetMAC[:])
	return body
}

func TestNDPSolicitForUsBindsAndAdvertises(t *testing.T) {
	e, dev := testEngine(t)
	peerMAC := MAC{0x02, 0, 0, 0, 0, 9}
	peerIP := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x9}

	body := buildNeighborSolicit(e.ipv6, peerMAC)
	if err := e.icmpv6NDPUnmarshal(peerMAC, peerIP, icmpv6TypeNeighborSolicit, body); err != nil {
		t.Fatalf("icmpv6NDPUnmarshal failed: %v", err)
	}

	if _, err := e.ndp.Lookup(peerIP); err != nil {
		t.Errorf("expected solicitor's binding installed, got %v", err)
	}
	if len(dev.frames()) != 1 {
		t.Errorf("expected one neighbor advertisement sent, got %d", len(dev.frames()))
	}
}

func TestNDPSolicitNotForUsBindsOnlyNoAdvertise(t *testing.T) {
	e, dev := testEngine(t)
	peerMAC := MAC{0x02, 0, 0, 0, 0, 9}
	peerIP := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x9}
	otherTarget := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xFE}

	body := buildNeighborSolicit(otherTarget, peerMAC)
	if err := e.icmpv6NDPUnmarshal(peerMAC, peerIP, icmpv6TypeNeighborSolicit, body); err != nil {
		t.Fatalf("icmpv6NDPUnmarshal failed: %v", err)
	}
	if _, err := e.ndp.Lookup(peerIP); err != nil {
		t.Errorf("expected solicitor's binding installed regardless of target, got %v", err)
	}
	if len(dev.frames()) != 0 {
		t.Errorf("expected no advertisement for a solicitation not targeting us")
	}
}

func TestNDPAdvertiseBindsTargetToOptionMAC(t *testing.T) {
	e, _ := testEngine(t)
	target := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x5}
	targetMAC := MAC{0x02, 0, 0, 0, 0, 5}

	body := buildNeighborAdvertise(target, targetMAC)
	if err := e.icmpv6NDPUnmarshal(targetMAC, target, icmpv6TypeNeighborAdvertise, body); err != nil {
		t.Fatalf("icmpv6NDPUnmarshal failed: %v", err)
	}

	got, err := e.ndp.Lookup(target)
	if err != nil {
		t.Fatalf("expected target binding after advertisement, got %v", err)
	}
	if got != targetMAC {
		t.Errorf("ndp.Lookup(target) = %v, want %v", got, targetMAC)
	}
}

func TestNDPUnmarshalShortMessage(t *testing.T) {
	e, _ := testEngine(t)
	err := e.icmpv6NDPUnmarshal(MAC{}, [16]byte{}, icmpv6TypeNeighborSolicit, make([]byte, 10))
	if err == nil {
		t.Error("expected error for a short NDP message")
	}
}

func TestParseNDPOptionMAC(t *testing.T) {
	mac := MAC{1, 2, 3, 4, 5, 6}
	opts := make([]byte, 8)
	opts[0] = ndpOptSourceLinkLayerAddress
	opts[1] = 1
	copy(opts[2:8], mac[:])

	got, ok := parseNDPOptionMAC(opts)
	if !ok || got != mac {
		t.Errorf("parseNDPOptionMAC = %v, %v, want %v, true", got, ok, mac)
	}
}

func TestParseNDPOptionMACNoMatch(t *testing.T) {
	_, ok := parseNDPOptionMAC(nil)
	if ok {
		t.Error("expected no match for empty options")
	}
}
