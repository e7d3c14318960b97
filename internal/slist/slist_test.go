package slist

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/slist/internal/codec"
)

// testSlab is a fixed set of entries whose links live in atomics.
type testSlab struct {
	links []atomic.Uint64
}

func newTestSlab(n int) *testSlab {
	return &testSlab{links: make([]atomic.Uint64, n)}
}

func (s *testSlab) ref(i int) Ref {
	return Ref((i + 1) << codec.AlignShift)
}

func (s *testSlab) index(r Ref) int {
	return int(r>>codec.AlignShift) - 1
}

func (s *testSlab) Next(r Ref) Ref {
	return Ref(s.links[s.index(r)].Load())
}

func (s *testSlab) SetNext(r, next Ref) {
	s.links[s.index(r)].Store(uint64(next))
}

var codecs = []codec.Codec{codec.Narrow, codec.Wide}

func forEachCodec(t *testing.T, fn func(t *testing.T, c codec.Codec)) {
	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			fn(t, c)
		})
	}
}

func TestWorkedExample(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		s := newTestSlab(3)
		a, b, cc := s.ref(0), s.ref(1), s.ref(2)

		h := New(s, WithCodec(c))
		assert.Equal(t, Null, h.Push(a))
		assert.Equal(t, a, h.Push(b))
		assert.Equal(t, b, h.Push(cc))
		assert.Equal(t, uint16(3), h.QueryDepth())

		assert.Equal(t, cc, h.Pop())
		assert.Equal(t, uint16(2), h.QueryDepth())

		chain := h.Flush()
		assert.Equal(t, []Ref{b, a}, Collect(s, chain))
		assert.Equal(t, uint16(0), h.QueryDepth())

		assert.Equal(t, Null, h.Pop())
	})
}

func TestInitialize_Empty(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		var h Header
		h.Initialize(newTestSlab(1), WithCodec(c), WithSequence(41))

		snap := h.Snapshot()
		assert.Equal(t, codec.Fields{Sequence: 41}, snap)
		assert.Equal(t, uint16(0), h.QueryDepth())
		assert.Equal(t, c, h.Codec())
	})
}

func TestInitialize_DefaultsToTargetCodec(t *testing.T) {
	h := New(newTestSlab(1), WithCodec(nil))
	assert.Equal(t, codec.ForTarget(), h.Codec())
}

func TestPushPop_LIFO(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		const n = 100
		s := newTestSlab(n)
		h := New(s, WithCodec(c))

		for i := 0; i < n; i++ {
			h.Push(s.ref(i))
		}
		require.Equal(t, uint16(n), h.QueryDepth())

		// Pop M < N: the rest are the oldest N-M pushes.
		const m = 60
		for i := n - 1; i >= n-m; i-- {
			require.Equal(t, s.ref(i), h.Pop())
		}
		assert.Equal(t, uint16(n-m), h.QueryDepth())

		remaining := Collect(s, h.Flush())
		require.Len(t, remaining, n-m)
		for i, r := range remaining {
			assert.Equal(t, s.ref(n-m-1-i), r)
		}
	})
}

func TestPop_EmptyIsStable(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		h := New(newTestSlab(1), WithCodec(c))
		before := h.Snapshot()
		for i := 0; i < 3; i++ {
			assert.Equal(t, Null, h.Pop())
			assert.Equal(t, uint16(0), h.QueryDepth())
		}
		// Empty pops commit nothing.
		assert.Equal(t, before, h.Snapshot())
	})
}

func TestFlush_EmptyAdvancesSequence(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		h := New(newTestSlab(1), WithCodec(c))
		assert.Equal(t, Null, h.Flush())
		assert.Equal(t, Null, h.Flush())
		assert.Equal(t, uint64(2), h.Snapshot().Sequence)
		assert.Equal(t, uint16(0), h.QueryDepth())
	})
}

func TestSequence_AdvancesOnEveryMutation(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		s := newTestSlab(4)
		h := New(s, WithCodec(c), WithSequence(10))

		h.Push(s.ref(0))
		assert.Equal(t, uint64(11), h.Snapshot().Sequence)

		first, last, n := Link(s, s.ref(1), s.ref(2))
		h.PushBatch(first, last, n)
		assert.Equal(t, uint64(12), h.Snapshot().Sequence)

		h.Pop()
		assert.Equal(t, uint64(13), h.Snapshot().Sequence)

		h.Flush()
		assert.Equal(t, uint64(14), h.Snapshot().Sequence)
	})
}

func TestSequence_Wraps(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		s := newTestSlab(1)
		h := New(s, WithCodec(c), WithSequence(c.SequenceMask()))

		h.Push(s.ref(0))
		snap := h.Snapshot()
		assert.Equal(t, uint64(0), snap.Sequence)
		assert.Equal(t, uint64(s.ref(0)), snap.Next)
		assert.Equal(t, uint16(1), snap.Depth)
	})
}

func TestPushBatch(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		s := newTestSlab(5)
		h := New(s, WithCodec(c))

		h.Push(s.ref(0))
		h.Push(s.ref(1))

		first, last, n := Link(s, s.ref(2), s.ref(3), s.ref(4))
		prev := h.PushBatch(first, last, n)
		assert.Equal(t, s.ref(1), prev)
		assert.Equal(t, uint16(5), h.QueryDepth())

		// The batch keeps its order and sits on top of the old chain.
		want := []Ref{s.ref(2), s.ref(3), s.ref(4), s.ref(1), s.ref(0)}
		for _, r := range want {
			assert.Equal(t, r, h.Pop())
		}
		assert.Equal(t, Null, h.Pop())
	})
}

func TestPushBatch_SingleEntry(t *testing.T) {
	s := newTestSlab(1)
	h := New(s)

	first, last, n := Link(s, s.ref(0))
	require.Equal(t, first, last)
	assert.Equal(t, Null, h.PushBatch(first, last, n))
	assert.Equal(t, uint16(1), h.QueryDepth())
	assert.Equal(t, s.ref(0), h.Pop())
}

func TestPushBatch_EmptyIsNoop(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		s := newTestSlab(1)
		h := New(s, WithCodec(c))
		h.Push(s.ref(0))
		before := h.Snapshot()

		first, last, n := Link(s)
		assert.Equal(t, 0, n)
		assert.Equal(t, s.ref(0), h.PushBatch(first, last, n))
		assert.Equal(t, before, h.Snapshot())
	})
}

func TestWalk_StopsEarlyAndToleratesRecycling(t *testing.T) {
	s := newTestSlab(4)
	h := New(s)
	for i := 0; i < 4; i++ {
		h.Push(s.ref(i))
	}
	head := h.Flush()

	var seen []Ref
	Walk(s, head, func(r Ref) bool {
		seen = append(seen, r)
		// Re-link the visited entry elsewhere; Walk already read its link.
		s.SetNext(r, Null)
		return len(seen) < 3
	})
	assert.Equal(t, []Ref{s.ref(3), s.ref(2), s.ref(1)}, seen)
	assert.Nil(t, Collect(s, Null))
}

// TestConcurrent_PushPop runs T pushers and T poppers over one header and
// checks that every entry is observed exactly once.
func TestConcurrent_PushPop(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		const workers = 8
		const perWorker = 2000
		const total = workers * perWorker

		s := newTestSlab(total)
		h := New(s, WithCodec(c))
		seen := make([]atomic.Int32, total)
		var popped atomic.Int64

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(2)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					h.Push(s.ref(w*perWorker + i))
				}
			}(w)
			go func() {
				defer wg.Done()
				for popped.Load() < total {
					if r := h.Pop(); r != Null {
						seen[s.index(r)].Add(1)
						popped.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, uint16(0), h.QueryDepth())
		assert.Equal(t, Null, h.Pop())
		for i := range seen {
			if n := seen[i].Load(); n != 1 {
				t.Fatalf("entry %d observed %d times", i, n)
			}
		}
	})
}

// TestConcurrent_BatchAndFlush mixes PushBatch producers with consumers
// that alternate between Pop and Flush.
func TestConcurrent_BatchAndFlush(t *testing.T) {
	forEachCodec(t, func(t *testing.T, c codec.Codec) {
		const workers = 4
		const perWorker = 1024
		const batch = 4
		const total = workers * perWorker

		s := newTestSlab(total)
		h := New(s, WithCodec(c))
		seen := make([]atomic.Int32, total)
		var observed atomic.Int64

		observe := func(r Ref) bool {
			seen[s.index(r)].Add(1)
			observed.Add(1)
			return true
		}

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(2)
			go func(w int) {
				defer wg.Done()
				refs := make([]Ref, batch)
				for i := 0; i < perWorker; i += batch {
					for j := range refs {
						refs[j] = s.ref(w*perWorker + i + j)
					}
					first, last, n := Link(s, refs...)
					h.PushBatch(first, last, n)
				}
			}(w)
			go func(w int) {
				defer wg.Done()
				for i := 0; observed.Load() < total; i++ {
					if i%16 == 0 {
						Walk(s, h.Flush(), observe)
						continue
					}
					if r := h.Pop(); r != Null {
						observe(r)
					}
				}
			}(w)
		}
		wg.Wait()

		assert.Equal(t, uint16(0), h.QueryDepth())
		for i := range seen {
			if n := seen[i].Load(); n != 1 {
				t.Fatalf("entry %d observed %d times", i, n)
			}
		}
	})
}

func BenchmarkHeader_PushPop(b *testing.B) {
	for _, c := range codecs {
		b.Run(c.Name(), func(b *testing.B) {
			s := newTestSlab(1)
			h := New(s, WithCodec(c))
			ref := s.ref(0)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				h.Push(ref)
				if h.Pop() != ref {
					b.Fatalf("Pop failed")
				}
			}
		})
	}
}

func BenchmarkHeader_PushPopParallel(b *testing.B) {
	for _, c := range codecs {
		b.Run(c.Name(), func(b *testing.B) {
			s := newTestSlab(1 << 16)
			h := New(s, WithCodec(c))
			var next atomic.Int64
			b.RunParallel(func(pb *testing.PB) {
				ref := s.ref(int(next.Add(1)-1) % len(s.links))
				for pb.Next() {
					h.Push(ref)
					if r := h.Pop(); r != Null {
						ref = r
					}
				}
			})
		})
	}
}
