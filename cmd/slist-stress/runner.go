package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/23skdu/slist/internal/arena"
	"github.com/23skdu/slist/internal/codec"
	"github.com/23skdu/slist/internal/concurrency"
	slerrors "github.com/23skdu/slist/internal/errors"
	"github.com/23skdu/slist/internal/limiter"
	"github.com/23skdu/slist/internal/metrics"
	"github.com/23skdu/slist/internal/slist"
)

const depthSampleEvery = 1024

// Result summarises one run.
type Result struct {
	Mode  string
	Codec string

	Pushes     int64 // Push and PushBatch calls
	Pushed     int64 // entries or values pushed
	Popped     int64
	Flushes    int64
	Flushed    int64 // entries observed through Flush
	Missing    int64 // conservation: entries never observed
	Duplicates int64 // conservation: extra observations
	Elapsed    time.Duration
}

// OK reports whether every pushed entry came back exactly once.
func (r Result) OK() bool {
	return r.Missing == 0 && r.Duplicates == 0 && r.Pushed == r.Popped+r.Flushed
}

// Runner drives one stress mode against a fresh list.
type Runner struct {
	cfg    Config
	logger zerolog.Logger
}

func NewRunner(cfg Config, logger zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Run executes the configured mode. A failed verification is reported
// through Result.OK, not the error.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	c, err := codec.Lookup(r.cfg.Codec)
	if err != nil {
		return Result{}, err
	}

	r.logger.Info().
		Str("mode", r.cfg.Mode).
		Str("codec", c.Name()).
		Int("workers", r.cfg.Workers).
		Int("batch_size", r.cfg.BatchSize).
		Msg("stress run starting")

	start := time.Now()
	var res Result
	switch r.cfg.Mode {
	case ModeConservation:
		res, err = r.conservation(ctx, c)
	case ModeChurn:
		res, err = r.churn(ctx, c)
	default:
		return Result{}, ErrInvalidMode
	}
	res.Mode, res.Codec = r.cfg.Mode, c.Name()
	res.Elapsed = time.Since(start)

	metrics.StressRunDurationSeconds.WithLabelValues(r.cfg.Mode).Observe(res.Elapsed.Seconds())
	metrics.StressOperationsTotal.WithLabelValues(r.cfg.Mode, "push").Add(float64(res.Pushes))
	metrics.StressOperationsTotal.WithLabelValues(r.cfg.Mode, "pop").Add(float64(res.Popped))
	metrics.StressOperationsTotal.WithLabelValues(r.cfg.Mode, "flush").Add(float64(res.Flushes))
	result := "ok"
	if err != nil || !res.OK() {
		result = "failed"
	}
	metrics.StressRunsTotal.WithLabelValues(r.cfg.Mode, result).Inc()
	return res, err
}

// conservation pushes a known set of entries from producers while consumers
// pop, flushes whatever is left, and counts how often each entry was seen.
func (r *Runner) conservation(ctx context.Context, c codec.Codec) (Result, error) {
	a, err := arena.New[int](BuildArenaConfig(&r.cfg), r.logger)
	if err != nil {
		return Result{}, err
	}
	if uint64(a.MaxRef()) > c.MaxNext() {
		return Result{}, slerrors.NewCapacityError("stress.conservation", "arena refs exceed header layout").
			WithContext("codec", c.Name())
	}
	h := slist.New(a, slist.WithCodec(c))

	workers, perWorker, batch := r.cfg.Workers, r.cfg.EntriesPerWorker, r.cfg.BatchSize
	seen := make([]atomic.Int32, workers*perWorker)
	observe := func(ref slist.Ref) bool {
		seen[a.Get(ref).Value].Add(1)
		return true
	}

	var pushes, pushed, popped atomic.Int64
	var producersLeft atomic.Int64
	producersLeft.Store(int64(workers))

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			defer producersLeft.Add(-1)
			pace := limiter.NewRateLimiter(BuildLimiterConfig(&r.cfg))
			refs := make([]slist.Ref, 0, batch)
			for i := 0; i < perWorker; i += len(refs) {
				refs = refs[:0]
				for j := i; j < perWorker && len(refs) < batch; j++ {
					ref, e, err := a.Alloc()
					if err != nil {
						return err
					}
					e.Value = w*perWorker + j
					refs = append(refs, ref)
				}
				if err := pace.Wait(gctx, len(refs)); err != nil {
					return err
				}
				if len(refs) == 1 {
					h.Push(refs[0])
				} else {
					first, last, n := slist.Link(a, refs...)
					h.PushBatch(first, last, n)
				}
				pushes.Add(1)
				pushed.Add(int64(len(refs)))
			}
			return nil
		})
		g.Go(func() error {
			for i := 0; producersLeft.Load() > 0; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if ref := h.Pop(); ref != slist.Null {
					observe(ref)
					popped.Add(1)
				}
				if i%depthSampleEvery == 0 {
					metrics.StressDepth.Set(float64(h.QueryDepth()))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("conservation run: %w", err)
	}

	var flushed int64
	slist.Walk(a, h.Flush(), func(ref slist.Ref) bool {
		flushed++
		return observe(ref)
	})
	metrics.StressDepth.Set(float64(h.QueryDepth()))

	res := Result{
		Pushes:  pushes.Load(),
		Pushed:  pushed.Load(),
		Popped:  popped.Load(),
		Flushes: 1,
		Flushed: flushed,
	}
	for i := range seen {
		switch n := seen[i].Load(); {
		case n == 0:
			res.Missing++
		case n > 1:
			res.Duplicates += int64(n - 1)
		}
	}
	return res, nil
}

// churn cycles values through a LockFreeStack until the run duration ends.
// Each round pushes a batch of values and pops the same number back.
func (r *Runner) churn(ctx context.Context, c codec.Codec) (Result, error) {
	stack, err := concurrency.NewLockFreeStack[int64](BuildArenaConfig(&r.cfg), c, r.logger)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Duration)
	defer cancel()

	var pushed, popped atomic.Int64
	var g errgroup.Group
	for w := 0; w < r.cfg.Workers; w++ {
		g.Go(func() error {
			pace := limiter.NewRateLimiter(BuildLimiterConfig(&r.cfg))
			for round := 0; ctx.Err() == nil; round++ {
				if err := pace.Wait(ctx, r.cfg.BatchSize); err != nil {
					if errors.Is(err, limiter.ErrRateLimited) || ctx.Err() != nil {
						return nil
					}
					return err
				}
				for i := 0; i < r.cfg.BatchSize; i++ {
					if err := stack.Push(int64(round)); err != nil {
						return err
					}
					pushed.Add(1)
				}
				for i := 0; i < r.cfg.BatchSize; i++ {
					if _, ok := stack.Pop(); ok {
						popped.Add(1)
					}
				}
				if round%depthSampleEvery == 0 {
					metrics.StressDepth.Set(float64(stack.Len()))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("churn run: %w", err)
	}

	left := stack.Drain()
	stats := stack.Pool().Stats()
	r.logger.Debug().
		Int64("hits", stats.Hits).
		Int64("misses", stats.Misses).
		Int("free", stats.Free).
		Msg("node pool after churn")

	p := pushed.Load()
	return Result{
		Pushes:  p,
		Pushed:  p,
		Popped:  popped.Load(),
		Flushes: 1,
		Flushed: int64(len(left)),
	}, nil
}
