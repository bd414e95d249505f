package netstack

import (
	"sync"
	"time"

	"github.com/ehrlich-b/gonetstack/internal/buffer"
	"github.com/ehrlich-b/gonetstack/internal/constants"
	"github.com/ehrlich-b/gonetstack/internal/errs"
	"github.com/ehrlich-b/gonetstack/internal/sched"
)

const wholeSizeUnknown = -1

// reassemblyEntry tracks partial-arrival state for one (src_ip, id) pair.
// Table membership is guarded by the owning shard's mutex; the fields
// below are guarded by mu, the entry's own lock.
type reassemblyEntry struct {
	mu sync.Mutex

	proto     uint8
	srcIP     [4]byte
	wholeSize int
	data      []byte
	segSet    map[uint32]bool
	received  int
	ttl       time.Duration
}

type reassemblyKey struct {
	srcIP [4]byte
	id    uint16
}

// reassemblyShard is one of Q independently locked partitions of the
// table, indexed by hash(src_ip, id). The spinlock here covers table
// mutation only; entry field mutation uses the entry's own mutex.
type reassemblyShard struct {
	mu      sync.Mutex
	entries map[reassemblyKey]*reassemblyEntry
}

// ReassemblyManager owns the sharded reassembly table chosen over the
// lock-free hash table per the resolved open question: avoids resize
// contention under fragment storms.
type ReassemblyManager struct {
	engine *Engine
	shards []reassemblyShard
}

func newReassemblyManager(e *Engine) *ReassemblyManager {
	m := &ReassemblyManager{
		engine: e,
		shards: make([]reassemblyShard, constants.ReassemblyShardCount),
	}
	for i := range m.shards {
		m.shards[i].entries = make(map[reassemblyKey]*reassemblyEntry)
	}
	return m
}

func (m *ReassemblyManager) shardFor(key reassemblyKey) *reassemblyShard {
	h := uint64(key.id)
	for _, b := range key.srcIP {
		h = h*31 + uint64(b)
	}
	return &m.shards[h%uint64(len(m.shards))]
}

// handleFragment implements the fast/slow path split of section 4.5.
func (m *ReassemblyManager) handleFragment(hdr ipv4Header, buf *buffer.Buffer) (errs.Outcome, error) {
	size := buf.ValidSize
	offset := hdr.offsetBytes()

	if hdr.dontFragment() || (!hdr.moreFragments() && offset == 0) {
		outcome, err := m.engine.ipHandle(hdr.proto, hdr.srcIP, buf.Payload())
		if outcome != errs.OutcomeRetained {
			buf.Release()
		}
		return outcome, err
	}

	key := reassemblyKey{srcIP: hdr.srcIP, id: hdr.id}
	shard := m.shardFor(key)

	shard.mu.Lock()
	entry, exists := shard.entries[key]
	if !exists {
		entry = &reassemblyEntry{
			proto:     hdr.proto,
			srcIP:     hdr.srcIP,
			wholeSize: wholeSizeUnknown,
			segSet:    map[uint32]bool{},
			ttl:       time.Duration(constants.IPv4RetryRecvUS) * time.Microsecond,
		}
		shard.entries[key] = entry
	}
	shard.mu.Unlock()

	entry.mu.Lock()

	if entry.segSet[offset] {
		entry.mu.Unlock()
		buf.Release()
		m.engine.observeDuplicateFragment()
		return errs.OutcomeDropped, errs.New("reassembly_insert", errs.ErrCodeDuplicateSeg, "fragment already seen")
	}
	entry.segSet[offset] = true
	entry.ttl = time.Duration(float64(entry.ttl) / 1.5)

	if !hdr.moreFragments() {
		entry.wholeSize = int(offset) + size
	}

	needed := int(offset) + size
	if needed > len(entry.data) {
		grown := make([]byte, needed)
		copy(grown, entry.data)
		entry.data = grown
	}
	copy(entry.data[offset:needed], buf.Payload())
	entry.received += size

	complete := entry.wholeSize != wholeSizeUnknown && entry.received == entry.wholeSize
	isFresh := !exists
	ttl := entry.ttl
	entry.mu.Unlock()

	buf.Release() // the fragment's own buffer is copied out; never retained

	if complete {
		m.closeAndDeliver(key, shard)
		return errs.OutcomeRetained, nil
	}

	if isFresh {
		m.scheduleCheck(key, shard, ttl)
	}
	return errs.OutcomeRetained, nil
}

// closeAndDeliver removes the entry from its shard and hands its
// reassembled payload to ipHandle.
func (m *ReassemblyManager) closeAndDeliver(key reassemblyKey, shard *reassemblyShard) {
	shard.mu.Lock()
	entry, ok := shard.entries[key]
	if ok {
		delete(shard.entries, key)
	}
	shard.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	data := entry.data
	proto := entry.proto
	srcIP := entry.srcIP
	fragments := len(entry.segSet)
	entry.mu.Unlock()

	m.engine.observeReassemblyComplete(uint32(len(data)), fragments)
	if _, err := m.engine.ipHandle(proto, srcIP, data); err != nil {
		m.engine.debugf("reassembly: ip_handle failed: %v", err)
	}
}

// scheduleCheck submits a deferred TTL check. On each re-fire, ttl is
// multiplied by 1.5 ("no new fragment, wait longer"); once it reaches the
// give-up deadline the entry is closed and freed.
func (m *ReassemblyManager) scheduleCheck(key reassemblyKey, shard *reassemblyShard, ttl time.Duration) {
	m.engine.delayed.Submit(ttl, &sched.DelayedTask{
		Process: func() { m.checkEntry(key, shard) },
		Close:   func() { m.forceCloseEntry(key, shard) },
	})
}

func (m *ReassemblyManager) checkEntry(key reassemblyKey, shard *reassemblyShard) {
	shard.mu.Lock()
	entry, ok := shard.entries[key]
	shard.mu.Unlock()
	if !ok {
		return // completed or expired already
	}

	entry.mu.Lock()
	complete := entry.wholeSize != wholeSizeUnknown && entry.received == entry.wholeSize
	entry.ttl = time.Duration(float64(entry.ttl) * 1.5)
	giveUp := entry.ttl >= time.Duration(constants.IPv4GiveupRecvUS)*time.Microsecond
	ttl := entry.ttl
	entry.mu.Unlock()

	switch {
	case complete:
		m.closeAndDeliver(key, shard)
	case giveUp:
		m.forceCloseEntry(key, shard)
	default:
		m.scheduleCheck(key, shard, ttl)
	}
}

func (m *ReassemblyManager) forceCloseEntry(key reassemblyKey, shard *reassemblyShard) {
	shard.mu.Lock()
	_, existed := shard.entries[key]
	delete(shard.entries, key)
	shard.mu.Unlock()
	if existed {
		m.engine.observeReassemblyGiveUp()
	}
}
