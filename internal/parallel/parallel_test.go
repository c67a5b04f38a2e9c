package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 2}

	hits := make([]int32, 257)
	For(len(hits), func(i int) {
		atomic.AddInt32(&hits[i], 1)
	}, cfg)

	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestFor_Sequential(t *testing.T) {
	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, Sequential())

	assert.Equal(t, int64(100), counter)
}

func TestForChunks_CoversRange(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}

	var covered int64
	ForChunks(10, func(start, end int) {
		assert.Less(t, start, end)
		atomic.AddInt64(&covered, int64(end-start))
	}, cfg)

	assert.Equal(t, int64(10), covered)
}

func TestForChunks_SmallLoopRunsInline(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 16}

	calls := 0
	ForChunks(20, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 20, end)
	}, cfg)

	assert.Equal(t, 1, calls)
}

func TestForChunks_Empty(t *testing.T) {
	ForChunks(0, func(_, _ int) {
		t.Fatal("called for empty range")
	}, DefaultConfig())
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	for i := 0; i < b.N; i++ {
		var sum int64
		For(10000, func(j int) {
			atomic.AddInt64(&sum, int64(j))
		}, cfg)
	}
}
