package config

import "runtime"

// Pool size and threshold resolution chain (highest priority first):
//   1. CLI flags (-workers, -parallel-threshold)
//   2. Environment variables (BLOBMERGE_WORKERS, ...)
//   3. Config file (workers, parallel_threshold)
//   4. Hardware estimation (this file)

// MaxWorkers caps the estimated pool size.
const MaxWorkers = 16

// AutoThreshold marks a parallel threshold left to hardware estimation.
// An explicit 0 is a real threshold: every chunked merge uses the pool.
const AutoThreshold = -1

// ApplyAdaptiveDefaults fills in the pool size when it was left at zero and
// the parallel threshold when it is AutoThreshold.
func ApplyAdaptiveDefaults(cfg AppConfig) AppConfig {
	if cfg.Workers == 0 {
		cfg.Workers = EstimatePoolSize()
	}
	if cfg.ParallelThreshold < 0 {
		cfg.ParallelThreshold = EstimateParallelThreshold()
	}
	return cfg
}

// EstimatePoolSize returns one worker per CPU, capped at MaxWorkers.
func EstimatePoolSize() int {
	return min(max(runtime.NumCPU(), 1), MaxWorkers)
}

// EstimateParallelThreshold returns the combined input size from which the
// pool is worth its dispatch overhead.
func EstimateParallelThreshold() int {
	numCPU := runtime.NumCPU()

	switch {
	case numCPU == 1:
		return 256 << 20 // Effectively serial
	case numCPU <= 4:
		return 32 << 20
	case numCPU <= 8:
		return 16 << 20
	default:
		return 8 << 20
	}
}
