package concurrency

import (
	"github.com/rs/zerolog"

	"github.com/23skdu/slist/internal/arena"
	"github.com/23skdu/slist/internal/codec"
	"github.com/23skdu/slist/internal/lookaside"
	"github.com/23skdu/slist/internal/slist"
)

// LockFreeStack is a typed LIFO over an SLIST header. Nodes come from a
// lookaside pool so the header only ever sees arena refs.
type LockFreeStack[T any] struct {
	pool *lookaside.Pool[T]
	head slist.Header
}

// NewLockFreeStack sizes the backing arena from cfg. A nil codec picks the
// widest layout the target can CAS without locks.
func NewLockFreeStack[T any](cfg arena.Config, c codec.Codec, logger zerolog.Logger) (*LockFreeStack[T], error) {
	a, err := arena.New[T](cfg, logger)
	if err != nil {
		return nil, err
	}
	pool, err := lookaside.New(a, c, logger)
	if err != nil {
		return nil, err
	}
	s := &LockFreeStack[T]{pool: pool}
	s.head.Initialize(a, slist.WithCodec(pool.Codec()))
	return s, nil
}

// Push fails only when the arena is exhausted.
func (s *LockFreeStack[T]) Push(value T) error {
	ref, e, err := s.pool.Get()
	if err != nil {
		return err
	}
	e.Value = value
	s.head.Push(ref)
	return nil
}

func (s *LockFreeStack[T]) Pop() (T, bool) {
	var zero T

	ref := s.head.Pop()
	if ref == slist.Null {
		return zero, false
	}
	e := s.pool.Arena().Get(ref)
	value := e.Value
	e.Value = zero
	s.pool.Put(ref)
	return value, true
}

// Len is advisory and wraps past 65535 entries.
func (s *LockFreeStack[T]) Len() int {
	return int(s.head.QueryDepth())
}

// Drain detaches everything in one step and returns it top first. The
// nodes go back to the pool as a single chain.
func (s *LockFreeStack[T]) Drain() []T {
	a := s.pool.Arena()
	first := s.head.Flush()

	var zero T
	var values []T
	last := slist.Null
	slist.Walk(a, first, func(ref slist.Ref) bool {
		e := a.Get(ref)
		values = append(values, e.Value)
		e.Value = zero
		last = ref
		return true
	})
	s.pool.PutChain(first, last, len(values))
	return values
}

// Pool exposes node recycling stats.
func (s *LockFreeStack[T]) Pool() *lookaside.Pool[T] {
	return s.pool
}
