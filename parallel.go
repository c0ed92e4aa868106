package tablejoin

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ============================================================================
// Parallel Execution Configuration
// ============================================================================

// ParallelConfig controls parallelization behavior
type ParallelConfig struct {
	// MinRowsForParallel is the minimum rows to justify parallel overhead
	MinRowsForParallel int

	// MaxWorkers limits the number of worker goroutines (0 = GOMAXPROCS)
	MaxWorkers int

	// Enabled controls whether parallelism is used at all
	Enabled bool
}

// DefaultParallelConfig returns sensible defaults
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		MinRowsForParallel: 8192,
		MaxWorkers:         0,
		Enabled:            true,
	}
}

// SequentialConfig disables parallelism entirely.
func SequentialConfig() ParallelConfig {
	return ParallelConfig{Enabled: false}
}

// numWorkers returns the number of workers to use
func (cfg ParallelConfig) numWorkers() int {
	if cfg.MaxWorkers > 0 {
		return cfg.MaxWorkers
	}
	return runtime.GOMAXPROCS(0)
}

// shouldParallelize determines if an operation should be parallelized
func (cfg ParallelConfig) shouldParallelize(rows int) bool {
	return cfg.Enabled && cfg.MinRowsForParallel > 0 && rows >= cfg.MinRowsForParallel
}

// forEach runs fn(i) for i in [0, n). Work fans out over a bounded errgroup
// when rows is large enough, otherwise it runs inline. The first error wins.
func (cfg ParallelConfig) forEach(n, rows int, fn func(i int) error) error {
	if !cfg.shouldParallelize(rows) || n < 2 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(cfg.numWorkers())
	for i := 0; i < n; i++ {
		g.Go(func() (err error) {
			// a panic on a worker goroutine would otherwise kill the process
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic in worker %d: %v", i, r)
				}
			}()
			return fn(i)
		})
	}
	return g.Wait()
}
