// Package memory configures GOMEMLIMIT for containers and applies upload
// backpressure under memory pressure.
//
// # Configuration
//
// Call [ConfigureFromEnv] first in main:
//
//   - GOMEMLIMIT: Standard Go variable. Takes precedence when set.
//   - MEMORY_LIMIT: Container memory limit in bytes, usually passed through
//     the Kubernetes Downward API. When unset, the cgroup limit is read
//     (memory.max, then the v1 memory.limit_in_bytes).
//   - MEMORY_RATIO: Share of the container limit given to the Go heap (default
//     0.75). The rest is left for ffmpeg, gifsicle and libvips, none of
//     which allocate on the Go heap.
//
// A pod spec passes the limit like this:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// # Backpressure
//
// Every upload holds its whole original in memory. [Monitor] samples heap
// usage and, above the critical water mark, makes [Monitor.Wait] block new
// uploads until usage falls below the high water mark:
//
//	result := memory.ConfigureFromEnv()
//	monitor := memory.NewMonitor(result.MonitorConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	orchestrator.SetBackpressure(monitor)
package memory
