//go:build amd64

package interlocked

import "golang.org/x/sys/cpu"

// WideLockFree reports whether Wide operations compile to a single
// LOCK CMPXCHG16B instruction.
var WideLockFree = cpu.X86.HasCX16

//go:noescape
func cmpxchg16b(addr *[2]uint64, oldLo, oldHi, newLo, newHi uint64) (lo, hi uint64, swapped bool)

func cmpxchg128(addr *[2]uint64, oldLo, oldHi, newLo, newHi uint64) (lo, hi uint64, swapped bool) {
	if WideLockFree {
		return cmpxchg16b(addr, oldLo, oldHi, newLo, newHi)
	}
	return lockedCmpxchg128(addr, oldLo, oldHi, newLo, newHi)
}
