package performance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// BenchmarkWorkerPool benchmarks the worker pool performance.
func BenchmarkWorkerPool(b *testing.B) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		wg.Add(1)
		pool.Submit(func() {
			time.Sleep(time.Microsecond)
			wg.Done()
		})
		wg.Wait()
	}
}

// BenchmarkRateLimiter benchmarks the rate limiter.
func BenchmarkRateLimiter(b *testing.B) {
	limiter := NewRateLimiter(10000, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow()
	}
}

func TestWorkerPoolStopDrainsQueue(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()

	var counter int64
	for i := 0; i < 50; i++ {
		ok := pool.SubmitContext(context.Background(), func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&counter, 1)
		})
		assert.True(t, ok)
	}

	pool.Stop()

	assert.EqualValues(t, 50, atomic.LoadInt64(&counter))
	stats := pool.Stats()
	assert.False(t, stats.Running)
	assert.EqualValues(t, 50, stats.TasksDone)
	assert.False(t, pool.Submit(func() {}), "stopped pool rejects tasks")
}

func TestSubmitContextCancelled(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	block := make(chan struct{})
	defer close(block)

	// Occupy the only worker, then fill the queue.
	started := make(chan struct{})
	pool.Submit(func() {
		close(started)
		<-block
	})
	<-started
	for pool.Submit(func() {}) {
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, pool.SubmitContext(ctx, func() {}))
}

func TestRateLimiterFunctionality(t *testing.T) {
	limiter := NewRateLimiter(100, 10)

	allowed := 0
	for i := 0; i < 15; i++ {
		if limiter.Allow() {
			allowed++
		}
	}
	assert.GreaterOrEqual(t, allowed, 10)

	time.Sleep(100 * time.Millisecond)
	assert.True(t, limiter.Allow(), "expected refill")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, limiter.Wait(ctx))
}

func TestBatchProcessorFunctionality(t *testing.T) {
	var batches [][]int

	processor := NewBatchProcessor(5, func(items []int) error {
		batches = append(batches, items)
		return nil
	})

	for i := 0; i < 12; i++ {
		assert.NoError(t, processor.Add(i))
	}
	assert.NoError(t, processor.Flush())

	if assert.Len(t, batches, 3) {
		assert.Len(t, batches[0], 5)
		assert.Len(t, batches[1], 5)
		assert.Equal(t, []int{10, 11}, batches[2])
	}
}
