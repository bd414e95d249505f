package netstack

import (
	"time"

	"github.com/ehrlich-b/gonetstack/internal/constants"
	"github.com/ehrlich-b/gonetstack/internal/errs"
	"github.com/ehrlich-b/gonetstack/internal/sched"
)

// sendRecord tracks an outgoing logical IPv4 datagram through ARP
// resolution, slicing, and retries. At most one deferred task is ever
// outstanding for a given record, which serializes all access without an
// explicit lock (see section 4.6's serialization invariant).
type sendRecord struct {
	engine *Engine

	dstIP         [4]byte
	proto         uint8
	id            uint16
	data          []byte
	sentSize      int
	dstMAC        *MAC
	retryInterval time.Duration
}

// IPv4Send is the top-level ip_marshal entry point: allocates an ID, looks
// up the next hop's MAC, and either starts sending immediately or begins
// the ARP-gated retry dance.
func (e *Engine) IPv4Send(dstIP [4]byte, proto uint8, payload []byte) error {
	rec := &sendRecord{
		engine:        e,
		dstIP:         dstIP,
		proto:         proto,
		id:            e.nextSendID(),
		data:          payload,
		retryInterval: time.Duration(constants.IPv4RetrySendUS) * time.Microsecond,
	}

	mac, err := e.arp.Lookup(dstIP)
	switch {
	case err == nil:
		rec.dstMAC = &mac
		if submitErr := e.workerPool.Submit(&sched.Task{Run: func() { rec.checkSendMessage() }}); submitErr != nil {
			return errs.Wrap("ip_marshal", submitErr)
		}
		return nil
	case errs.IsCode(err, errs.ErrCodeNoMACAddress):
		rec.retryInterval = time.Duration(constants.ARPWaitUS) * time.Microsecond
		e.sendARPRequest(dstIP)
		e.delayed.Submit(rec.retryInterval, &sched.DelayedTask{
			Process: func() { rec.checkGetMAC() },
			Close:   func() { rec.closeSendingMessage() },
		})
		return nil
	default:
		return errs.Wrap("ip_marshal", err)
	}
}

// checkGetMAC re-polls the ARP table; see section 4.6.
func (r *sendRecord) checkGetMAC() {
	giveup := time.Duration(constants.IPv4GiveupSendUS) * time.Microsecond

	mac, err := r.engine.arp.Lookup(r.dstIP)
	if err != nil {
		r.retryInterval *= 2
		if r.retryInterval >= giveup {
			r.closeSendingMessage()
			return
		}
		r.engine.sendARPRequest(r.dstIP)
		r.engine.delayed.Submit(r.retryInterval, &sched.DelayedTask{
			Process: func() { r.checkGetMAC() },
			Close:   func() { r.closeSendingMessage() },
		})
		return
	}

	r.dstMAC = &mac
	r.retryInterval = time.Duration(constants.IPv4RetrySendUS) * time.Microsecond
	r.engine.delayed.Submit(0, &sched.DelayedTask{
		Process: func() { r.checkSendMessage() },
		Close:   func() { r.closeSendingMessage() },
	})
}

// checkSendMessage drives ipv4Slice and reschedules on partial progress or
// link-layer failure, per section 4.6.
func (r *sendRecord) checkSendMessage() {
	giveup := time.Duration(constants.IPv4GiveupSendUS) * time.Microsecond
	if r.retryInterval > giveup {
		r.closeSendingMessage()
		return
	}

	ok := r.engine.ipv4Slice(r)
	if r.sentSize == len(r.data) {
		return // done; record has no explicit free, GC reclaims it
	}

	if ok {
		// Link layer accepted every slice we attempted this pass but more
		// remain only if a prior failure left sentSize behind; reaching
		// here with sentSize < len(data) and ok==true cannot happen given
		// ipv4Slice's contract, kept defensive for future slicing changes.
		return
	}

	r.retryInterval *= 2
	if r.retryInterval >= giveup {
		r.closeSendingMessage()
		return
	}
	r.engine.delayed.Submit(r.retryInterval, &sched.DelayedTask{
		Process: func() { r.checkSendMessage() },
		Close:   func() { r.closeSendingMessage() },
	})
}

func (r *sendRecord) closeSendingMessage() {
	r.engine.observeSendGiveUp()
}

// ipv4Slice sends every remaining MTU-sized slice of rec's payload in
// order, advancing sentSize after each success. On link-layer failure it
// stops, leaving sentSize at the last successful boundary so a retry
// resumes there. Returns true if every slice attempted this call
// succeeded (which, combined with sentSize == len(data), means the
// message is fully sent).
func (e *Engine) ipv4Slice(rec *sendRecord) bool {
	total := len(rec.data)
	for rec.sentSize < total {
		remaining := total - rec.sentSize
		segSize := remaining
		if segSize > constants.IPv4MTU {
			segSize = constants.IPv4MTU
		}
		moreFragments := remaining > constants.IPv4MTU
		dontFragment := total <= constants.IPMinimumNoFrag && rec.sentSize == 0

		buf := e.AcquireBuffer()
		copy(buf.Data[buf.FromHdr:buf.FromHdr+segSize], rec.data[rec.sentSize:rec.sentSize+segSize])
		buf.ValidSize = segSize

		if err := buf.Retreat(ipv4MinHeaderLen); err != nil {
			buf.Release()
			return false
		}
		hdr := buf.Header(ipv4MinHeaderLen)

		var flags uint16
		if dontFragment {
			flags |= ipv4FlagDF
		}
		if moreFragments {
			flags |= ipv4FlagMF
		}
		offsetUnits := uint16(rec.sentSize / 8)

		writeIPv4Header(hdr, rec.id, flags, offsetUnits, ipv4MinHeaderLen+segSize, rec.proto, e.ipv4, rec.dstIP)

		if err := e.ethernetMarshal(*rec.dstMAC, etherTypeIPv4, buf); err != nil {
			e.debugf("ipv4_slice: send failed at offset %d: %v", rec.sentSize, err)
			return false
		}

		rec.sentSize += segSize
	}
	return true
}

func (e *Engine) observeSendGiveUp() {
	if e.observer != nil {
		e.observer.ObserveSendGiveUp()
	}
}
