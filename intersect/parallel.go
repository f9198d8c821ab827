package intersect

import (
	"runtime"
	"sync"
)

// Run fn for every index in [0, count) across a fork-join worker pool
// and block until all iterations complete. Iterations must write to
// disjoint destinations.
func parallelFor(count int, fn func(i int)) {
	if count == 0 {
		return
	}

	workers := runtime.NumCPU()
	if workers > count {
		workers = count
	}

	chunk := (count + workers - 1) / workers

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(start int) {
			defer wg.Done()
			end := start + chunk
			if end > count {
				end = count
			}
			for i := start; i < end; i++ {
				fn(i)
			}
		}(w * chunk)
	}
	wg.Wait()
}
