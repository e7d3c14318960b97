// Package arena provides caller-owned entry storage for SLIST headers.
//
// An Arena hands out entries from fixed-size slabs and never frees them, so
// every Ref stays valid for the arena's lifetime. Lock-free readers may
// therefore follow a stale link without touching reclaimed memory, which is
// the reclamation guarantee the list core leaves to its callers.
package arena

import (
	"errors"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/23skdu/slist/internal/codec"
	slerrors "github.com/23skdu/slist/internal/errors"
	"github.com/23skdu/slist/internal/metrics"
	"github.com/23skdu/slist/internal/slist"
)

// ErrOOM is returned once every slab is full.
var ErrOOM = errors.New("arena out of entries")

// Limits accepted by New.
const (
	MaxSlabEntries = 1 << 20
	MaxSlabs       = 1 << 16
)

// Entry is one arena slot. The list only touches next; Value belongs to
// the caller.
type Entry[T any] struct {
	next  atomic.Uint64
	Value T
}

// Config sizes an arena.
type Config struct {
	SlabEntries int `envconfig:"SLAB_ENTRIES" default:"1024"` // rounded up to a power of two
	MaxSlabs    int `envconfig:"MAX_SLABS" default:"1024"`
}

// DefaultConfig returns the default arena configuration
func DefaultConfig() Config {
	return Config{SlabEntries: 1024, MaxSlabs: 1024}
}

// Arena allocates entries addressed by Ref. Ref = (index+1) << codec.AlignShift,
// so Null never names an entry and every Ref is 16-byte aligned.
type Arena[T any] struct {
	slabShift uint
	slabMask  uint64
	// slabs has a fixed length; published slabs are read without locking.
	slabs     []atomic.Pointer[[]Entry[T]]
	allocated atomic.Uint64

	mu     sync.Mutex // serializes Alloc
	logger zerolog.Logger
}

// New creates an arena with its first slab in place.
func New[T any](cfg Config, logger zerolog.Logger) (*Arena[T], error) {
	if cfg.SlabEntries <= 0 || cfg.SlabEntries > MaxSlabEntries {
		return nil, slerrors.NewConfigurationError("arena.New", "slab entries out of range").
			WithContext("slab_entries", cfg.SlabEntries)
	}
	if cfg.MaxSlabs <= 0 || cfg.MaxSlabs > MaxSlabs {
		return nil, slerrors.NewConfigurationError("arena.New", "max slabs out of range").
			WithContext("max_slabs", cfg.MaxSlabs)
	}

	shift := uint(bits.Len(uint(cfg.SlabEntries - 1)))
	a := &Arena[T]{
		slabShift: shift,
		slabMask:  1<<shift - 1,
		slabs:     make([]atomic.Pointer[[]Entry[T]], cfg.MaxSlabs),
		logger:    logger,
	}
	a.addSlab(0)
	return a, nil
}

func (a *Arena[T]) addSlab(idx int) {
	slab := make([]Entry[T], 1<<a.slabShift)
	a.slabs[idx].Store(&slab)
	metrics.ArenaSlabsTotal.Inc()
	a.logger.Debug().Int("slab", idx).Int("entries", len(slab)).Msg("arena slab added")
}

// Alloc reserves a fresh entry.
func (a *Arena[T]) Alloc() (slist.Ref, *Entry[T], error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.allocated.Load()
	if i == a.Capacity() {
		metrics.ArenaExhaustedTotal.Inc()
		return slist.Null, nil, ErrOOM
	}

	idx := int(i >> a.slabShift)
	slab := a.slabs[idx].Load()
	if slab == nil {
		a.addSlab(idx)
		slab = a.slabs[idx].Load()
	}

	e := &(*slab)[i&a.slabMask]
	a.allocated.Store(i + 1)
	metrics.ArenaEntriesAllocatedTotal.Inc()
	return refOf(i), e, nil
}

// Get returns the entry for ref, or nil if ref is null, misaligned or was
// never allocated.
func (a *Arena[T]) Get(ref slist.Ref) *Entry[T] {
	if ref == slist.Null || uint64(ref)&(codec.Alignment-1) != 0 {
		return nil
	}
	i := uint64(ref)>>codec.AlignShift - 1
	if i >= a.allocated.Load() {
		return nil
	}
	slab := a.slabs[i>>a.slabShift].Load()
	if slab == nil {
		return nil
	}
	return &(*slab)[i&a.slabMask]
}

// Next implements slist.Links.
func (a *Arena[T]) Next(ref slist.Ref) slist.Ref {
	return slist.Ref(a.Get(ref).next.Load())
}

// SetNext implements slist.Links.
func (a *Arena[T]) SetNext(ref, next slist.Ref) {
	a.Get(ref).next.Store(uint64(next))
}

// Capacity is the number of entries the arena can ever hold.
func (a *Arena[T]) Capacity() uint64 {
	return uint64(len(a.slabs)) << a.slabShift
}

// Allocated is the number of entries handed out so far.
func (a *Arena[T]) Allocated() uint64 {
	return a.allocated.Load()
}

// SlabEntries is the effective slab size after rounding.
func (a *Arena[T]) SlabEntries() int {
	return 1 << a.slabShift
}

// MaxRef is the largest Ref the arena can produce. Headers storing refs from
// this arena need a codec whose MaxNext is at least this large.
func (a *Arena[T]) MaxRef() slist.Ref {
	return refOf(a.Capacity() - 1)
}

func refOf(i uint64) slist.Ref {
	return slist.Ref((i + 1) << codec.AlignShift)
}
