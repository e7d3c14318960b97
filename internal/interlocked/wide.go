package interlocked

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Uint128 is a double-word value handled as one unit by Wide.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

// Wide is a 16-byte cell supporting double-width atomic load and
// compare-exchange. Go offers no way to request 16-byte alignment, so the
// cell reserves 32 bytes and operates on the aligned 16-byte window inside;
// the window offset is recomputed on each access and is stable for the
// lifetime of the cell. The zero value holds Uint128{}.
//
// A Wide must not be copied after first use.
type Wide struct {
	raw [4]uint64
}

func (w *Wide) words() *[2]uint64 {
	p := unsafe.Pointer(&w.raw)
	off := (16 - uintptr(p)&15) & 15
	return (*[2]uint64)(unsafe.Add(p, off))
}

// Lo returns the address of the low word. Single-word atomics on it are
// valid alongside double-width operations on the whole cell.
func (w *Wide) Lo() *uint64 {
	return &w.words()[0]
}

// Load returns both words as observed at one instant.
func (w *Wide) Load() Uint128 {
	lo, hi, _ := cmpxchg128(w.words(), 0, 0, 0, 0)
	return Uint128{Lo: lo, Hi: hi}
}

// CompareExchange replaces the cell with exchange if it equals comparand
// and returns the value observed before the attempt.
func (w *Wide) CompareExchange(exchange, comparand Uint128) Uint128 {
	lo, hi, _ := cmpxchg128(w.words(), comparand.Lo, comparand.Hi, exchange.Lo, exchange.Hi)
	return Uint128{Lo: lo, Hi: hi}
}

// CompareAndSwap replaces the cell with new if it equals old.
func (w *Wide) CompareAndSwap(old, new Uint128) bool {
	_, _, swapped := cmpxchg128(w.words(), old.Lo, old.Hi, new.Lo, new.Hi)
	return swapped
}

// Store unconditionally replaces the cell.
func (w *Wide) Store(v Uint128) {
	for {
		if w.CompareAndSwap(w.Load(), v) {
			return
		}
	}
}

// Striped locks back the double-width operations on targets without a
// 16-byte compare-exchange instruction. Halves are still read and written
// with single-word atomics so Lo stays usable lock-free.
const wideStripes = 64

var wideLocks [wideStripes]sync.Mutex

func lockedCmpxchg128(addr *[2]uint64, oldLo, oldHi, newLo, newHi uint64) (lo, hi uint64, swapped bool) {
	mu := &wideLocks[(uintptr(unsafe.Pointer(addr))>>4)%wideStripes]
	mu.Lock()
	lo = atomic.LoadUint64(&addr[0])
	hi = atomic.LoadUint64(&addr[1])
	if lo == oldLo && hi == oldHi {
		atomic.StoreUint64(&addr[0], newLo)
		atomic.StoreUint64(&addr[1], newHi)
		swapped = true
	}
	mu.Unlock()
	return lo, hi, swapped
}
