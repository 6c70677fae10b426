// Package workers sizes CPU-bound worker pools for containers.
//
// runtime.NumCPU reports the host's CPUs; GOMAXPROCS follows the container
// CPU limit (Go 1.19+). [ForCPU] uses the latter and is how the libvips
// concurrency level is chosen:
//
//	vips.Startup(&vips.Config{ConcurrencyLevel: workers.ForCPU(4)})
//
// Operators can pin the value with VIPS_CONCURRENCY.
package workers
