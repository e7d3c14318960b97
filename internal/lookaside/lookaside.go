// Package lookaside recycles arena entries through an SLIST free list.
//
// Get pops a previously returned entry when one is available and falls back
// to a fresh arena allocation otherwise. Put and PutChain give entries back
// with Push and PushBatch. Entries are never released to the runtime, so
// refs stay stable for stale readers of the free list.
package lookaside

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/23skdu/slist/internal/arena"
	"github.com/23skdu/slist/internal/codec"
	slerrors "github.com/23skdu/slist/internal/errors"
	"github.com/23skdu/slist/internal/metrics"
	"github.com/23skdu/slist/internal/slist"
)

// Pool is a lock-free lookaside list over an Arena.
type Pool[T any] struct {
	arena *arena.Arena[T]
	free  slist.Header

	hits   atomic.Int64
	misses atomic.Int64
	puts   atomic.Int64
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Hits   int64
	Misses int64
	Puts   int64
	Free   int
}

// New builds a pool over a. The free list uses c, or codec.ForTarget when c
// is nil; every ref a can produce must fit the layout.
func New[T any](a *arena.Arena[T], c codec.Codec, logger zerolog.Logger) (*Pool[T], error) {
	if c == nil {
		c = codec.ForTarget()
	}
	if uint64(a.MaxRef()) > c.MaxNext() {
		return nil, slerrors.NewCapacityError("lookaside.New", "arena refs exceed header layout").
			WithContext("codec", c.Name()).
			WithContext("max_ref", uint64(a.MaxRef())).
			WithContext("max_next", c.MaxNext())
	}

	p := &Pool[T]{arena: a}
	p.free.Initialize(a, slist.WithCodec(c))

	logger.Debug().
		Str("codec", c.Name()).
		Uint64("capacity", a.Capacity()).
		Msg("lookaside pool ready")
	return p, nil
}

// Get returns a recycled entry or allocates a new one. A recycled entry
// keeps whatever Value it had when it was returned.
func (p *Pool[T]) Get() (slist.Ref, *arena.Entry[T], error) {
	if ref := p.free.Pop(); ref != slist.Null {
		p.hits.Add(1)
		metrics.LookasideRequestsTotal.WithLabelValues("hit").Inc()
		return ref, p.arena.Get(ref), nil
	}

	ref, e, err := p.arena.Alloc()
	if err != nil {
		return slist.Null, nil, slerrors.WrapCapacityError(err, "lookaside.Get", "no free entry")
	}
	p.misses.Add(1)
	metrics.LookasideRequestsTotal.WithLabelValues("miss").Inc()
	return ref, e, nil
}

// Put returns one entry. The caller must not touch it afterwards.
func (p *Pool[T]) Put(ref slist.Ref) {
	p.free.Push(ref)
	p.puts.Add(1)
	metrics.LookasideReturnsTotal.Inc()
}

// PutChain returns a linked chain of count entries with one CAS.
func (p *Pool[T]) PutChain(first, last slist.Ref, count int) {
	if count == 0 {
		return
	}
	p.free.PushBatch(first, last, count)
	p.puts.Add(int64(count))
	metrics.LookasideReturnsTotal.Add(float64(count))
}

// Free is the advisory number of entries waiting for reuse.
func (p *Pool[T]) Free() int {
	return int(p.free.QueryDepth())
}

// Arena returns the backing arena.
func (p *Pool[T]) Arena() *arena.Arena[T] {
	return p.arena
}

// Codec returns the free list layout.
func (p *Pool[T]) Codec() codec.Codec {
	return p.free.Codec()
}

// Stats reports counters since construction.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Hits:   p.hits.Load(),
		Misses: p.misses.Load(),
		Puts:   p.puts.Load(),
		Free:   p.Free(),
	}
}
