// Package buffer provides the scatter-buffer type shared by every layer of
// the engine, plus the pool that produces pre-offset buffers with headroom
// reserved for lower-layer headers.
package buffer

import (
	"fmt"
	"sync"

	"github.com/ehrlich-b/gonetstack/internal/constants"
)

// Buffer owns a byte region of fixed capacity. FromHdr bytes of headroom at
// the front are claimed by headers already written (on send) or already
// parsed and skipped (on receive); ValidSize bytes starting at FromHdr are
// the payload currently live. The invariant FromHdr+ValidSize <= len(Data)
// holds for the lifetime of the buffer.
//
// FromHdr increases as a received frame descends through the stack (each
// unmarshal step advances past its own header) and decreases as an outgoing
// message ascends toward the wire (each marshal step reserves room to
// prepend its header).
type Buffer struct {
	Data      []byte
	FromHdr   int
	ValidSize int

	pool *Pool
}

// Payload returns the live portion of the buffer.
func (b *Buffer) Payload() []byte {
	return b.Data[b.FromHdr : b.FromHdr+b.ValidSize]
}

// Capacity returns the total backing size of the buffer.
func (b *Buffer) Capacity() int {
	return len(b.Data)
}

// Headroom returns the number of unclaimed bytes still available below
// FromHdr for a lower layer to prepend into.
func (b *Buffer) Headroom() int {
	return b.FromHdr
}

// Advance skips past a header of n bytes that has just been parsed: it is
// used while a frame descends through Ethernet -> IPv4 -> transport.
func (b *Buffer) Advance(n int) error {
	if n < 0 || n > b.ValidSize {
		return fmt.Errorf("buffer: cannot advance %d bytes, only %d valid", n, b.ValidSize)
	}
	b.FromHdr += n
	b.ValidSize -= n
	return nil
}

// Retreat reserves n bytes of headroom for a header about to be prepended:
// it is used while an outgoing message ascends from a transport payload
// toward the wire.
func (b *Buffer) Retreat(n int) error {
	if n < 0 || n > b.FromHdr {
		return fmt.Errorf("buffer: cannot retreat %d bytes, only %d headroom", n, b.FromHdr)
	}
	b.FromHdr -= n
	b.ValidSize += n
	return nil
}

// Header returns the first n bytes of the current payload, valid to call
// right after Retreat(n) (to write a new header) or right before
// Advance(n) (to read the header about to be skipped).
func (b *Buffer) Header(n int) []byte {
	return b.Data[b.FromHdr : b.FromHdr+n]
}

// View returns a non-owning sub-buffer over [offset, offset+size) of the
// current payload, sharing the same backing array. Used by the IPv4 send
// engine to slice one logical payload into MTU-sized fragments without
// copying.
func (b *Buffer) View(offset, size int) Buffer {
	start := b.FromHdr + offset
	return Buffer{
		Data:      b.Data,
		FromHdr:   start,
		ValidSize: size,
	}
}

// Release returns the buffer to the pool it was acquired from, if any.
func (b *Buffer) Release() {
	if b == nil || b.pool == nil {
		return
	}
	b.pool.put(b)
}

// Pool produces fixed-size buffers pre-offset with the pool's headroom
// (constants.SendHeadroom for DefaultPool) already consumed, so every layer
// above the device can immediately treat FromHdr as "my header starts here".
type Pool struct {
	slabSize int
	headroom int
	pool     sync.Pool
}

// NewPool creates a buffer pool producing slabs of slabSize bytes, each
// pre-offset by headroom bytes.
func NewPool(slabSize, headroom int) *Pool {
	p := &Pool{slabSize: slabSize, headroom: headroom}
	p.pool.New = func() any {
		return &Buffer{Data: make([]byte, slabSize)}
	}
	return p
}

// DefaultPool returns a pool sized for a single Ethernet frame with
// constants.SendHeadroom pre-consumed, enough for every layer from ARP up
// through IPv4 to prepend its header without reallocating.
func DefaultPool() *Pool {
	return NewPool(constants.SendHeadroom+constants.EtherMaxSize, constants.SendHeadroom)
}

// Acquire returns a zero-length buffer with the pool's headroom already
// consumed.
func (p *Pool) Acquire() *Buffer {
	buf := p.pool.Get().(*Buffer)
	buf.FromHdr = p.headroom
	buf.ValidSize = 0
	buf.pool = p
	return buf
}

func (p *Pool) put(buf *Buffer) {
	buf.pool = nil
	buf.FromHdr = 0
	buf.ValidSize = 0
	p.pool.Put(buf)
}
