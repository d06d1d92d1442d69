package workpool

import (
	"github.com/function61/gokit/assert"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestForEachVisitsEveryItem(t *testing.T) {
	seen := []int{}
	seenMu := sync.Mutex{}

	ForEach([]int{5, 3, 1, 4, 2}, 2, func(item int) {
		seenMu.Lock()
		defer seenMu.Unlock()

		seen = append(seen, item)
	})

	sort.Ints(seen)

	assert.EqualJson(t, seen, `[
  1,
  2,
  3,
  4,
  5
]`)
}

func TestForEachRespectsWorkerLimit(t *testing.T) {
	var running int32
	var maxRunning int32

	ForEach(make([]struct{}, 20), 3, func(struct{}) {
		current := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)

		for {
			max := atomic.LoadInt32(&maxRunning)
			if current <= max || atomic.CompareAndSwapInt32(&maxRunning, max, current) {
				break
			}
		}

		time.Sleep(time.Millisecond)
	})

	assert.Assert(t, maxRunning >= 1 && maxRunning <= 3)
}

func TestForEachEmpty(t *testing.T) {
	called := false

	ForEach([]string{}, 0, func(string) {
		called = true
	})

	assert.Assert(t, !called)
}
