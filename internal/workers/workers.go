package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// EnvOverride names the environment variable that overrides every count.
const EnvOverride = "ARTWORK_WORKERS"

// Count returns multiplier workers per available CPU, at least one and at
// most limit (0 for no cap). GOMAXPROCS is used rather than NumCPU so
// container CPU limits are respected. ARTWORK_WORKERS, when a positive
// integer, replaces the computed value but is still capped by limit.
func Count(multiplier float64, limit int) int {
	workers := 0
	if override, err := strconv.Atoi(os.Getenv(EnvOverride)); err == nil && override > 0 {
		workers = override
	} else {
		workers = max(1, int(float64(runtime.GOMAXPROCS(0))*multiplier))
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns one worker per CPU, for ffmpeg frame extraction and image encoding.
func ForCPU(limit int) int { return Count(1.0, limit) }

// ForIO returns two workers per CPU, for fetches and probes.
func ForIO(limit int) int { return Count(2.0, limit) }

// Run calls fn for every item with at most n calls in flight. The first
// error cancels the context passed to the remaining calls and is returned.
func Run[T any](ctx context.Context, n int, items []T, fn func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, n))
	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return fn(gctx, item) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
