/*
Package workers sizes and runs bounded worker pools.

Containers often cap CPUs well below what the host reports, so counts are
derived from GOMAXPROCS, which Go 1.19+ sets from the cgroup quota:

	workers.ForCPU(4)  // ffmpeg frame extraction
	workers.ForIO(16)  // fetches, sidecar probes

Operators can pin the count with ARTWORK_WORKERS; the per-call cap still
applies.

Run fans a slice out over a pool built on errgroup:

	err := workers.Run(ctx, workers.ForIO(16), files, func(ctx context.Context, f string) error {
		return process(ctx, f)
	})
*/
package workers
