//go:build !amd64

package interlocked

// WideLockFree is false: double-width operations fall back to striped locks.
var WideLockFree = false

func cmpxchg128(addr *[2]uint64, oldLo, oldHi, newLo, newHi uint64) (lo, hi uint64, swapped bool) {
	return lockedCmpxchg128(addr, oldLo, oldHi, newLo, newHi)
}
