// Package interlocked provides the atomic read-modify-write primitives the
// SLIST header is built on: single-word increment, decrement, exchange and
// compare-exchange, and a double-word compare-exchange for headers that do
// not fit one word.
//
// The single-word helpers follow the interlocked convention of returning a
// value rather than a success flag: Increment/Decrement return the new
// value, Exchange/ExchangeAdd/CompareExchange return the value observed
// before the operation.
package interlocked

import "sync/atomic"

// Increment atomically adds one to *addend and returns the new value.
func Increment(addend *int32) int32 {
	return atomic.AddInt32(addend, 1)
}

// Decrement atomically subtracts one from *addend and returns the new value.
func Decrement(addend *int32) int32 {
	return atomic.AddInt32(addend, -1)
}

// Increment64 is Increment for 64-bit counters.
func Increment64(addend *int64) int64 {
	return atomic.AddInt64(addend, 1)
}

// Decrement64 is Decrement for 64-bit counters.
func Decrement64(addend *int64) int64 {
	return atomic.AddInt64(addend, -1)
}

// Exchange stores value into *target and returns the previous value in a
// single atomic step.
func Exchange(target *int32, value int32) int32 {
	return atomic.SwapInt32(target, value)
}

// Exchange64 is Exchange for 64-bit targets.
func Exchange64(target *int64, value int64) int64 {
	return atomic.SwapInt64(target, value)
}

// ExchangeAdd adds value to *addend and returns the value held before the add.
func ExchangeAdd(addend *int32, value int32) int32 {
	return atomic.AddInt32(addend, value) - value
}

// ExchangeAdd64 is ExchangeAdd for 64-bit addends.
func ExchangeAdd64(addend *int64, value int64) int64 {
	return atomic.AddInt64(addend, value) - value
}

// CompareExchange sets *destination to exchange if it currently equals
// comparand. It always returns the value observed before the attempt, so
// the caller detects success by comparing the result with comparand.
func CompareExchange(destination *int32, exchange, comparand int32) int32 {
	for {
		if atomic.CompareAndSwapInt32(destination, comparand, exchange) {
			return comparand
		}
		// Report a witness of the mismatch; retry if the word already went
		// back to comparand.
		if observed := atomic.LoadInt32(destination); observed != comparand {
			return observed
		}
	}
}

// CompareExchange64 is CompareExchange for 64-bit destinations.
func CompareExchange64(destination *int64, exchange, comparand int64) int64 {
	for {
		if atomic.CompareAndSwapInt64(destination, comparand, exchange) {
			return comparand
		}
		if observed := atomic.LoadInt64(destination); observed != comparand {
			return observed
		}
	}
}

// CompareExchangeUint64 is CompareExchange64 for unsigned words, the form
// used by packed headers.
func CompareExchangeUint64(destination *uint64, exchange, comparand uint64) uint64 {
	for {
		if atomic.CompareAndSwapUint64(destination, comparand, exchange) {
			return comparand
		}
		if observed := atomic.LoadUint64(destination); observed != comparand {
			return observed
		}
	}
}
