// Package parallel splits kernel loops across goroutines.
//
// Kernels use it to spread independent work items (cases, filters) over
// workers. Host-side control flow stays single-threaded: every call returns
// only after all of its work items have finished.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution of kernel loops.
type Config struct {
	Enabled      bool // Whether loops may fan out to goroutines.
	NumWorkers   int  // Upper bound on goroutines per loop.
	MinChunkSize int  // Minimum work items per goroutine.
}

// DefaultConfig fans out over every CPU once a loop has enough work.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4,
	}
}

// Sequential returns a config that runs every loop on the calling goroutine.
func Sequential() Config {
	return Config{}
}

// For executes f(i) for i in [0, n). Each i must touch disjoint output.
func For(n int, f func(i int), cfg Config) {
	ForChunks(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// ForChunks partitions [0, n) into contiguous chunks and runs f on each.
func ForChunks(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	workers := cfg.NumWorkers
	if !cfg.Enabled || workers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		f(0, n)
		return
	}

	chunkSize := max((n+workers-1)/workers, cfg.MinChunkSize, 1)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}
