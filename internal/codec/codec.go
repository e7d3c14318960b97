// Package codec packs an SLIST header (head reference, depth and sequence)
// into the one or two machine words that are swapped atomically.
//
// Two layouts exist. Narrow fits a single 64-bit word and is updated with a
// plain 64-bit CAS. Wide spreads the fields over two words and needs a
// double-width CAS; it compresses the head reference by dropping the four
// low bits, which are always zero for 16-byte aligned entries.
//
// Encode and Decode are pure and total. Fields wider than their slot are
// truncated; handing Encode a misaligned or out-of-range reference is a
// contract violation whose result is unspecified.
package codec

import (
	"strconv"

	"github.com/23skdu/slist/internal/errors"
	"github.com/23skdu/slist/internal/interlocked"
)

// Alignment is the boundary every entry reference must respect.
const (
	AlignShift = 4
	Alignment  = 1 << AlignShift
)

// Fields is the decoded header.
type Fields struct {
	Next     uint64
	Depth    uint16
	Sequence uint64
}

// Codec converts between Fields and their packed form.
type Codec interface {
	// Name identifies the layout ("narrow" or "wide").
	Name() string
	// Words is the number of 64-bit words the layout occupies.
	Words() int
	Encode(f Fields) interlocked.Uint128
	Decode(w interlocked.Uint128) Fields
	// DepthOf extracts depth from the low word alone, for relaxed reads.
	DepthOf(lo uint64) uint16
	// MaxNext is the largest reference the layout can hold.
	MaxNext() uint64
	// SequenceMask is the range of the sequence counter before it wraps.
	SequenceMask() uint64
}

// Layout names accepted by Lookup.
const (
	NameAuto   = "auto"
	NameNarrow = "narrow"
	NameWide   = "wide"
)

var (
	Narrow Codec = narrow{}
	Wide   Codec = wide{}
)

// ForTarget picks the layout for this build: Wide when pointers are 64 bits
// and the double-width CAS is a single instruction, Narrow otherwise.
func ForTarget() Codec {
	if strconv.IntSize == 64 && interlocked.WideLockFree {
		return Wide
	}
	return Narrow
}

// Lookup resolves a configured layout name.
func Lookup(name string) (Codec, error) {
	switch name {
	case "", NameAuto:
		return ForTarget(), nil
	case NameNarrow:
		return Narrow, nil
	case NameWide:
		return Wide, nil
	}
	return nil, errors.NewConfigurationError("codec.Lookup", "unknown header layout").
		WithContext("name", name)
}
