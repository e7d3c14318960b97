package codec

import "github.com/23skdu/slist/internal/interlocked"

// Narrow word:
//
//	bits  0-31  next (raw reference)
//	bits 32-47  depth
//	bits 48-63  sequence
const (
	narrowNextBits  = 32
	narrowDepthBits = 16
	narrowSeqBits   = 16

	narrowDepthShift = narrowNextBits
	narrowSeqShift   = narrowNextBits + narrowDepthBits

	narrowNextMask = 1<<narrowNextBits - 1
	narrowSeqMask  = 1<<narrowSeqBits - 1
)

type narrow struct{}

func (narrow) Name() string { return NameNarrow }
func (narrow) Words() int   { return 1 }

func (narrow) Encode(f Fields) interlocked.Uint128 {
	lo := f.Next&narrowNextMask |
		uint64(f.Depth)<<narrowDepthShift |
		(f.Sequence&narrowSeqMask)<<narrowSeqShift
	return interlocked.Uint128{Lo: lo}
}

func (n narrow) Decode(w interlocked.Uint128) Fields {
	return Fields{
		Next:     w.Lo & narrowNextMask,
		Depth:    n.DepthOf(w.Lo),
		Sequence: w.Lo >> narrowSeqShift,
	}
}

func (narrow) DepthOf(lo uint64) uint16 {
	return uint16(lo >> narrowDepthShift)
}

func (narrow) MaxNext() uint64 {
	return narrowNextMask &^ (Alignment - 1)
}

func (narrow) SequenceMask() uint64 { return narrowSeqMask }
