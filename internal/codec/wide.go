package codec

import "github.com/23skdu/slist/internal/interlocked"

// Wide words:
//
//	Lo bits  0-47  next >> AlignShift
//	Lo bits 48-63  depth
//	Hi bits  0-47  sequence
//	Hi bits 48-63  region; bit 63 marks an initialized header
const (
	wideNextBits = 48
	wideSeqBits  = 48

	wideDepthShift = wideNextBits

	wideNextMask = 1<<wideNextBits - 1
	wideSeqMask  = 1<<wideSeqBits - 1

	wideInitBit = 1 << 63
)

type wide struct{}

func (wide) Name() string { return NameWide }
func (wide) Words() int   { return 2 }

func (wide) Encode(f Fields) interlocked.Uint128 {
	return interlocked.Uint128{
		Lo: (f.Next>>AlignShift)&wideNextMask | uint64(f.Depth)<<wideDepthShift,
		Hi: f.Sequence&wideSeqMask | wideInitBit,
	}
}

func (w wide) Decode(v interlocked.Uint128) Fields {
	return Fields{
		Next:     (v.Lo & wideNextMask) << AlignShift,
		Depth:    w.DepthOf(v.Lo),
		Sequence: v.Hi & wideSeqMask,
	}
}

func (wide) DepthOf(lo uint64) uint16 {
	return uint16(lo >> wideDepthShift)
}

func (wide) MaxNext() uint64 {
	return wideNextMask << AlignShift
}

func (wide) SequenceMask() uint64 { return wideSeqMask }

// WideInitialized reports whether v was produced by the Wide encoder.
func WideInitialized(v interlocked.Uint128) bool {
	return v.Hi&wideInitBit != 0
}
