package netstack

import (
	"unsafe"

	"github.com/ehrlich-b/gonetstack/internal/queue"
)

// segment is a parsed transport-layer datagram handed from the unmarshal
// path to a sharded delivery queue. ipv4 sources are stored v4-mapped so
// the same shard-index hash works for both address families.
type segment struct {
	srcIP   [16]byte
	srcPort uint16
	dstPort uint16
	proto   uint8
	data    []byte
}

// deliveryQueue is one shard of the UDP or TCP delivery table: a bounded
// lock-free ring a consumer goroutine drains independently of every other
// shard, so one busy flow cannot starve another's delivery.
type deliveryQueue struct {
	ring *queue.BdQueue
}

func newDeliveryQueues(count, size int) []*deliveryQueue {
	qs := make([]*deliveryQueue, count)
	for i := range qs {
		qs[i] = &deliveryQueue{ring: queue.NewBdQueue(size)}
	}
	return qs
}

func (q *deliveryQueue) enqueue(seg *segment) bool {
	return q.ring.Enqueue(unsafe.Pointer(seg))
}

// Dequeue removes the next delivered segment for this shard, or false if
// empty. Consumers outside this package reach it through
// Engine.DequeueUDP/DequeueTCP.
func (q *deliveryQueue) Dequeue() (*segment, bool) {
	p, ok := q.ring.Dequeue()
	if !ok {
		return nil, false
	}
	return (*segment)(p), true
}

func v4Mapped(ip [4]byte) [16]byte {
	var mapped [16]byte
	mapped[10] = 0xff
	mapped[11] = 0xff
	copy(mapped[12:], ip[:])
	return mapped
}

// shardIndex hashes the flow's identifying fields to pick a delivery
// queue: spreading load by source address and port pair keeps one busy
// flow from serializing every other flow's delivery through the same
// shard.
func shardIndex(srcIP [16]byte, srcPort, dstPort uint16, count int) int {
	h := uint64(srcPort)<<16 | uint64(dstPort)
	for _, b := range srcIP {
		h = h*31 + uint64(b)
	}
	return int(h % uint64(count))
}

func (e *Engine) deliverUDP(seg *segment) {
	q := e.udpQueues[shardIndex(seg.srcIP, seg.srcPort, seg.dstPort, len(e.udpQueues))]
	if !q.enqueue(seg) {
		e.observeQueueFull()
	}
}

func (e *Engine) deliverTCP(seg *segment) {
	q := e.tcpQueues[shardIndex(seg.srcIP, seg.srcPort, seg.dstPort, len(e.tcpQueues))]
	if !q.enqueue(seg) {
		e.observeQueueFull()
	}
}

func (e *Engine) observeQueueFull() {
	if e.observer != nil {
		e.observer.ObserveQueueFull()
	}
}
