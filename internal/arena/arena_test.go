package arena

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/slist/internal/codec"
	slerrors "github.com/23skdu/slist/internal/errors"
	"github.com/23skdu/slist/internal/logging"
	"github.com/23skdu/slist/internal/metrics"
	"github.com/23skdu/slist/internal/slist"
)

func newTestArena[T any](t *testing.T, slabEntries, maxSlabs int) *Arena[T] {
	t.Helper()
	a, err := New[T](Config{SlabEntries: slabEntries, MaxSlabs: maxSlabs}, logging.DiscardLogger())
	require.NoError(t, err)
	return a
}

func TestArena_Alloc_Basic(t *testing.T) {
	a := newTestArena[string](t, 4, 2)

	ref1, e1, err := a.Alloc()
	require.NoError(t, err)
	assert.NotEqual(t, slist.Null, ref1)
	assert.Zero(t, uint64(ref1)%codec.Alignment)
	e1.Value = "first"

	ref2, _, err := a.Alloc()
	require.NoError(t, err)
	assert.NotEqual(t, ref1, ref2)

	// Same entry comes back through Get.
	assert.Same(t, e1, a.Get(ref1))
	assert.Equal(t, "first", a.Get(ref1).Value)
	assert.Equal(t, uint64(2), a.Allocated())
}

func TestArena_Alloc_Growth(t *testing.T) {
	slabsBefore := testutil.ToFloat64(metrics.ArenaSlabsTotal)
	a := newTestArena[int](t, 2, 3)
	assert.Equal(t, slabsBefore+1, testutil.ToFloat64(metrics.ArenaSlabsTotal))

	refs := make([]slist.Ref, 0, 6)
	for i := 0; i < 6; i++ {
		ref, e, err := a.Alloc()
		require.NoError(t, err)
		e.Value = i * 10
		refs = append(refs, ref)
	}
	assert.Equal(t, slabsBefore+3, testutil.ToFloat64(metrics.ArenaSlabsTotal))

	// Entries in earlier slabs survive growth.
	for i, ref := range refs {
		assert.Equal(t, i*10, a.Get(ref).Value)
	}
	assert.Equal(t, a.MaxRef(), refs[len(refs)-1])
}

func TestArena_OOM(t *testing.T) {
	a := newTestArena[int](t, 1, 2)
	_, _, err := a.Alloc()
	require.NoError(t, err)
	_, _, err = a.Alloc()
	require.NoError(t, err)

	exhaustedBefore := testutil.ToFloat64(metrics.ArenaExhaustedTotal)
	ref, e, err := a.Alloc()
	assert.ErrorIs(t, err, ErrOOM)
	assert.Equal(t, slist.Null, ref)
	assert.Nil(t, e)
	assert.Equal(t, exhaustedBefore+1, testutil.ToFloat64(metrics.ArenaExhaustedTotal))
}

func TestArena_SlabEntriesRoundedUp(t *testing.T) {
	a := newTestArena[int](t, 1000, 1)
	assert.Equal(t, 1024, a.SlabEntries())
	assert.Equal(t, uint64(1024), a.Capacity())
	assert.Equal(t, slist.Ref(1024<<codec.AlignShift), a.MaxRef())
}

func TestArena_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero slab entries", Config{SlabEntries: 0, MaxSlabs: 1}},
		{"huge slab entries", Config{SlabEntries: MaxSlabEntries + 1, MaxSlabs: 1}},
		{"zero slabs", Config{SlabEntries: 8, MaxSlabs: 0}},
		{"too many slabs", Config{SlabEntries: 8, MaxSlabs: MaxSlabs + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New[int](tt.cfg, logging.DiscardLogger())
			require.Error(t, err)
			assert.Nil(t, a)
			assert.True(t, slerrors.IsType(err, slerrors.ErrorTypeConfiguration))
		})
	}
}

func TestArena_GetRejectsForeignRefs(t *testing.T) {
	a := newTestArena[int](t, 4, 1)
	ref, _, err := a.Alloc()
	require.NoError(t, err)

	assert.Nil(t, a.Get(slist.Null))
	assert.Nil(t, a.Get(ref+1), "misaligned")
	assert.Nil(t, a.Get(ref+codec.Alignment), "not yet allocated")
	assert.Nil(t, a.Get(slist.Ref(1<<40)), "beyond capacity")
}

func TestArena_Links(t *testing.T) {
	a := newTestArena[int](t, 8, 1)
	refs := make([]slist.Ref, 3)
	for i := range refs {
		ref, _, err := a.Alloc()
		require.NoError(t, err)
		refs[i] = ref
	}

	first, last, n := slist.Link(a, refs...)
	assert.Equal(t, refs[0], first)
	assert.Equal(t, refs[2], last)
	assert.Equal(t, 3, n)
	assert.Equal(t, refs[1], a.Next(refs[0]))
	assert.Equal(t, slist.Null, a.Next(refs[2]))
	assert.Equal(t, refs, slist.Collect(a, first))
}

func TestArena_WithHeader(t *testing.T) {
	a := newTestArena[string](t, 16, 4)
	h := slist.New(a)

	for _, v := range []string{"A", "B", "C"} {
		ref, e, err := a.Alloc()
		require.NoError(t, err)
		e.Value = v
		h.Push(ref)
	}
	assert.Equal(t, "C", a.Get(h.Pop()).Value)

	var got []string
	slist.Walk(a, h.Flush(), func(ref slist.Ref) bool {
		got = append(got, a.Get(ref).Value)
		return true
	})
	assert.Equal(t, []string{"B", "A"}, got)
}

func TestArena_ConcurrentAlloc(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 500

	a := newTestArena[int](t, 64, 128)
	refs := make(chan slist.Ref, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				ref, e, err := a.Alloc()
				if err != nil {
					t.Errorf("Alloc failed: %v", err)
					return
				}
				e.Value = g
				refs <- ref
			}
		}(g)
	}
	wg.Wait()
	close(refs)

	unique := make(map[slist.Ref]struct{})
	for ref := range refs {
		unique[ref] = struct{}{}
	}
	assert.Len(t, unique, goroutines*perGoroutine)
	assert.Equal(t, uint64(goroutines*perGoroutine), a.Allocated())
}

func BenchmarkArena_Alloc(b *testing.B) {
	cfg := Config{SlabEntries: 4096, MaxSlabs: 256}
	a, err := New[int](cfg, logging.DiscardLogger())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := a.Alloc(); err == ErrOOM {
			b.StopTimer()
			a, _ = New[int](cfg, logging.DiscardLogger())
			b.StartTimer()
		}
	}
}
