// Package slist implements an intrusive, lock-free, singly-linked LIFO list.
//
// A Header is the only shared state. Every mutation takes one atomic
// snapshot of it, computes the successor header and commits with a single
// compare-and-swap; a failed CAS means another goroutine committed first and
// the operation starts over. The successful CAS is the linearization point.
//
// Entries are caller-owned and addressed by Ref, a 16-byte aligned offset
// into caller memory. The list reaches an entry's forward link only through
// the Links supplied at initialization and never allocates or frees
// entries. The caller must keep a Ref's link readable for as long as any
// goroutine may still be retrying against it, for example by drawing
// entries from a slab that is never freed.
//
// The sequence counter advances on every mutation to make a recycled head
// look different to a stale CAS. It wraps, so it narrows the ABA window
// without closing it.
package slist

import (
	"sync/atomic"

	"github.com/23skdu/slist/internal/codec"
	"github.com/23skdu/slist/internal/interlocked"
)

// Ref addresses an entry. Zero is the null reference. Non-null references
// must be multiples of codec.Alignment.
type Ref uint64

// Null is the empty reference.
const Null Ref = 0

// Links resolves the forward link of an entry. Implementations must make
// Next and SetNext atomic with respect to each other.
type Links interface {
	Next(ref Ref) Ref
	SetNext(ref, next Ref)
}

// Header is the list head. It must be initialized with New or Initialize
// before use and must not be copied afterwards.
type Header struct {
	cell  interlocked.Wide
	links Links
	codec codec.Codec
	load  func(*interlocked.Wide) interlocked.Uint128
	cas   func(w *interlocked.Wide, old, new interlocked.Uint128) bool
}

// Option customizes Initialize.
type Option func(*options)

type options struct {
	codec    codec.Codec
	sequence uint64
}

// WithCodec forces a header layout instead of codec.ForTarget.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithSequence sets the starting sequence value.
func WithSequence(seq uint64) Option {
	return func(o *options) {
		o.sequence = seq
	}
}

// New returns an initialized, empty Header.
func New(links Links, opts ...Option) *Header {
	h := &Header{}
	h.Initialize(links, opts...)
	return h
}

// Initialize resets h to an empty list with depth 0. It must not race with
// any other operation on h.
func (h *Header) Initialize(links Links, opts ...Option) {
	o := options{codec: codec.ForTarget()}
	for _, opt := range opts {
		opt(&o)
	}

	h.links = links
	h.codec = o.codec
	if o.codec.Words() == 1 {
		h.load = loadNarrow
		h.cas = casNarrow
	} else {
		h.load = (*interlocked.Wide).Load
		h.cas = (*interlocked.Wide).CompareAndSwap
	}
	h.cell.Store(o.codec.Encode(codec.Fields{Sequence: o.sequence}))
}

func loadNarrow(w *interlocked.Wide) interlocked.Uint128 {
	return interlocked.Uint128{Lo: atomic.LoadUint64(w.Lo())}
}

func casNarrow(w *interlocked.Wide, old, new interlocked.Uint128) bool {
	return atomic.CompareAndSwapUint64(w.Lo(), old.Lo, new.Lo)
}

// Codec returns the layout chosen at initialization.
func (h *Header) Codec() codec.Codec {
	return h.codec
}

// Links returns the resolver the list follows entry links with.
func (h *Header) Links() Links {
	return h.links
}

// Push links entry in as the new head and returns the previous head, which
// may be Null. entry must be non-null and not currently linked.
func (h *Header) Push(entry Ref) Ref {
	for {
		old := h.load(&h.cell)
		cur := h.codec.Decode(old)
		h.links.SetNext(entry, Ref(cur.Next))
		next := h.codec.Encode(codec.Fields{
			Next:     uint64(entry),
			Depth:    cur.Depth + 1,
			Sequence: cur.Sequence + 1,
		})
		if h.cas(&h.cell, old, next) {
			return Ref(cur.Next)
		}
	}
}

// PushBatch prepends the pre-linked chain first..last holding count entries
// with a single CAS and returns the previous head. A zero count leaves the
// list untouched and returns the current head.
func (h *Header) PushBatch(first, last Ref, count int) Ref {
	if count == 0 {
		return Ref(h.codec.Decode(h.load(&h.cell)).Next)
	}
	for {
		old := h.load(&h.cell)
		cur := h.codec.Decode(old)
		h.links.SetNext(last, Ref(cur.Next))
		next := h.codec.Encode(codec.Fields{
			Next:     uint64(first),
			Depth:    cur.Depth + uint16(count),
			Sequence: cur.Sequence + 1,
		})
		if h.cas(&h.cell, old, next) {
			return Ref(cur.Next)
		}
	}
}

// Pop unlinks and returns the head, or Null when the list is empty.
func (h *Header) Pop() Ref {
	for {
		old := h.load(&h.cell)
		cur := h.codec.Decode(old)
		head := Ref(cur.Next)
		if head == Null {
			return Null
		}
		// head may already be gone; its link is then stale but readable, and
		// the CAS below fails on the changed sequence.
		next := h.codec.Encode(codec.Fields{
			Next:     uint64(h.links.Next(head)),
			Depth:    cur.Depth - 1,
			Sequence: cur.Sequence + 1,
		})
		if h.cas(&h.cell, old, next) {
			return head
		}
	}
}

// Flush detaches the whole chain, leaves the list empty and returns the old
// head. The chain keeps its order and is owned by the caller.
func (h *Header) Flush() Ref {
	for {
		old := h.load(&h.cell)
		cur := h.codec.Decode(old)
		next := h.codec.Encode(codec.Fields{Sequence: cur.Sequence + 1})
		if h.cas(&h.cell, old, next) {
			return Ref(cur.Next)
		}
	}
}

// QueryDepth returns the number of linked entries at one instant. The value
// is advisory: it may be stale by the time the caller acts on it.
func (h *Header) QueryDepth() uint16 {
	return h.codec.DepthOf(atomic.LoadUint64(h.cell.Lo()))
}

// Snapshot returns the decoded header at one instant.
func (h *Header) Snapshot() codec.Fields {
	return h.codec.Decode(h.load(&h.cell))
}
