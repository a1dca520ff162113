// Package memory keeps the Go heap inside container memory limits.
//
// GOMAXPROCS follows cgroup CPU limits automatically, GOMEMLIMIT does not.
// [ConfigureFromEnv] derives it from the Kubernetes Downward API:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
//
// Lower MEMORY_RATIO when many ffmpeg processes or large libvips buffers run
// next to the heap; neither counts against GOMEMLIMIT.
//
// [Monitor] samples heap usage. Prerender workers call [Monitor.Wait] before
// each file so a batch stalls instead of being OOM-killed, and the HTTP API
// reports [Monitor.Snapshot] alongside the renderer's pool sizes.
package memory
