// Small bounded worker pool
package workpool

import (
	"sync"
)

// runs numWorkers copies of worker while produceWork feeds them. returns once
// produceWork has returned and every worker has exited.
func Concurrently(numWorkers int, worker func(), produceWork func()) {
	workersDone := sync.WaitGroup{}

	for i := 0; i < numWorkers; i++ {
		workersDone.Add(1)
		go func() {
			defer workersDone.Done()

			worker()
		}()
	}

	produceWork()

	workersDone.Wait()
}

// calls fn for each item, at most numWorkers at a time
func ForEach[T any](items []T, numWorkers int, fn func(T)) {
	if numWorkers < 1 {
		numWorkers = 1
	}

	work := make(chan T)

	Concurrently(numWorkers, func() {
		for item := range work {
			fn(item)
		}
	}, func() {
		for _, item := range items {
			work <- item
		}

		close(work)
	})
}
