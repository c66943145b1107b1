package reactor

import (
	"math"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestRPSCounterSlotIsCacheLinePadded(t *testing.T) {
	assert.GreaterOrEqual(t, unsafe.Sizeof(rpsSlot{}), uintptr(64))
}

func TestRPSCounterIncrementIsolatedPerWorker(t *testing.T) {
	c := NewRPSCounter(3)
	c.Increment(0)
	c.Increment(0)
	c.Increment(1)

	assert.Equal(t, uint64(2), c.slots[0].count.Load())
	assert.Equal(t, uint64(1), c.slots[1].count.Load())
	assert.Equal(t, uint64(0), c.slots[2].count.Load())
}

func TestRPSCounterTotalSumsAllSlots(t *testing.T) {
	c := NewRPSCounter(4)
	c.Increment(0)
	c.Increment(1)
	c.Increment(1)
	c.Increment(3)
	assert.Equal(t, uint64(4), c.Total())
}

func TestRPSCounterMonotonicUnderConcurrentIncrement(t *testing.T) {
	const workers = 8
	const perWorker = 1000
	c := NewRPSCounter(workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Increment(id)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*perWorker), c.Total())
}

func TestRPSCounterWrappingDelta(t *testing.T) {
	// Simulate the stats pusher's wrapping-subtraction delta computation
	// across a uint64 wraparound.
	var prev uint64 = math.MaxUint64 - 2
	var total uint64 = 1 // wrapped around past zero

	delta := total - prev // wrapping subtraction
	assert.Equal(t, uint64(4), delta)
}
