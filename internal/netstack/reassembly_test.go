package netstack

import (
	"testing"
	"time"

	"github.com/ehrlich-b/gonetstack/internal/errs"
)

func TestHandleFragmentFastPathUnfragmented(t *testing.T) {
	e, _ := testEngine(t)
	srcIP := [4]byte{10, 0, 0, 9}

	payload := []byte{253, 0, 0, 0, 0, 0, 0, 0} // unrecognized ICMP type, observable via drop
	buf := e.AcquireBuffer()
	copy(buf.Data[buf.FromHdr:buf.FromHdr+len(payload)], payload)
	buf.ValidSize = len(payload)

	hdr := ipv4Header{proto: protoICMP, srcIP: srcIP, flags: 0, offset: 0}
	outcome, _ := e.reassembly.handleFragment(hdr, buf)
	if outcome != errs.OutcomeDropped {
		t.Errorf("fast path should pass through ipHandle's own outcome, got %v", outcome)
	}
}

func TestHandleFragmentReassemblesTwoFragments(t *testing.T) {
	e, _ := testEngine(t)
	srcIP := [4]byte{10, 0, 0, 9}

	first := []byte{0x13, 0x88, 0x1B, 0x58, 0, 16, 0, 0} // first 8 bytes: UDP header
	second := []byte("12345678")                         // remaining 8 bytes of an already-length-prefixed datagram

	buf1 := e.AcquireBuffer()
	copy(buf1.Data[buf1.FromHdr:buf1.FromHdr+len(first)], first)
	buf1.ValidSize = len(first)
	hdr1 := ipv4Header{id: 1, proto: protoUDP, srcIP: srcIP, flags: ipv4FlagMF, offset: 0}

	buf2 := e.AcquireBuffer()
	copy(buf2.Data[buf2.FromHdr:buf2.FromHdr+len(second)], second)
	buf2.ValidSize = len(second)
	hdr2 := ipv4Header{id: 1, proto: protoUDP, srcIP: srcIP, flags: 0, offset: 1} // offset units of 8 bytes => byte offset 8

	outcome1, _ := e.reassembly.handleFragment(hdr1, buf1)
	if outcome1 != errs.OutcomeRetained {
		t.Fatalf("expected OutcomeRetained for an incomplete fragment, got %v", outcome1)
	}

	outcome2, _ := e.reassembly.handleFragment(hdr2, buf2)
	if outcome2 != errs.OutcomeRetained {
		t.Fatalf("expected OutcomeRetained for the completing fragment, got %v", outcome2)
	}

	var found *segment
	for i := 0; i < len(e.udpQueues); i++ {
		if seg, ok := e.udpQueues[i].Dequeue(); ok {
			found = seg
		}
	}
	if found == nil {
		t.Fatal("expected the reassembled datagram to be delivered to a UDP shard")
	}
	if string(found.data) != "12345678" {
		t.Errorf("delivered payload = %q, want %q", found.data, "12345678")
	}
}

func TestHandleFragmentDuplicateDropped(t *testing.T) {
	e, _ := testEngine(t)
	srcIP := [4]byte{10, 0, 0, 9}

	payload := []byte{0x13, 0x88, 0x1B, 0x58, 0, 16, 0, 0}
	hdr := ipv4Header{id: 2, proto: protoUDP, srcIP: srcIP, flags: ipv4FlagMF, offset: 0}

	buf1 := e.AcquireBuffer()
	copy(buf1.Data[buf1.FromHdr:buf1.FromHdr+len(payload)], payload)
	buf1.ValidSize = len(payload)
	e.reassembly.handleFragment(hdr, buf1)

	buf2 := e.AcquireBuffer()
	copy(buf2.Data[buf2.FromHdr:buf2.FromHdr+len(payload)], payload)
	buf2.ValidSize = len(payload)
	outcome, err := e.reassembly.handleFragment(hdr, buf2)
	if outcome != errs.OutcomeDropped || !errs.IsCode(err, errs.ErrCodeDuplicateSeg) {
		t.Errorf("expected duplicate-fragment drop, got %v, %v", outcome, err)
	}
}

func TestCheckEntryGivesUpAfterTTLExceeded(t *testing.T) {
	e, _ := testEngine(t)
	srcIP := [4]byte{10, 0, 0, 9}
	key := reassemblyKey{srcIP: srcIP, id: 3}
	shard := e.reassembly.shardFor(key)

	payload := []byte{0x13, 0x88, 0x1B, 0x58, 0, 16, 0, 0}
	hdr := ipv4Header{id: 3, proto: protoUDP, srcIP: srcIP, flags: ipv4FlagMF, offset: 0}
	buf := e.AcquireBuffer()
	copy(buf.Data[buf.FromHdr:buf.FromHdr+len(payload)], payload)
	buf.ValidSize = len(payload)
	e.reassembly.handleFragment(hdr, buf)

	shard.mu.Lock()
	entry := shard.entries[key]
	shard.mu.Unlock()
	entry.mu.Lock()
	entry.ttl = 400 * time.Second // already past give-up threshold on next check
	entry.mu.Unlock()

	e.reassembly.checkEntry(key, shard)

	shard.mu.Lock()
	_, stillPresent := shard.entries[key]
	shard.mu.Unlock()
	if stillPresent {
		t.Error("expected the entry to be removed after giving up")
	}
}
