package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForEach(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	ForEach(n, cfg, func(_ int) {
		atomic.AddInt64(&counter, 1)
	})

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_ChunksCoverRangeOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}

	n := 257
	hits := make([]int32, n)
	For(n, cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	})

	for i, h := range hits {
		if h != 1 {
			t.Errorf("index %d visited %d times", i, h)
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	calls := 0
	For(100, Sequential(), func(lo, hi int) {
		calls++
		if lo != 0 || hi != 100 {
			t.Errorf("Expected [0, 100), got [%d, %d)", lo, hi)
		}
	})

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestFor_SmallRangeRunsInline(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 64}

	calls := 0
	For(100, cfg, func(_, _ int) {
		calls++
	})

	if calls != 1 {
		t.Errorf("Expected sequential fallback, got %d calls", calls)
	}
}

func TestFor_Empty(t *testing.T) {
	For(0, DefaultConfig(), func(_, _ int) {
		t.Error("f must not be called for n = 0")
	})
}
