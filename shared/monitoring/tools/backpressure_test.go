package tools

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNewQueueWatcherDefaults(t *testing.T) {
	w := NewQueueWatcher(func() (int, int) { return 0, 10 }, 0, 0)

	if w.highWater != 0.8 {
		t.Errorf("Expected default high-water 0.8, got %f", w.highWater)
	}
	if w.interval != defaultWatchInterval {
		t.Errorf("Expected default interval %v, got %v", defaultWatchInterval, w.interval)
	}
}

func TestNewQueueWatcherNilSamplePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Expected panic for nil sample function")
		}
	}()
	NewQueueWatcher(nil, 0.8, time.Second)
}

func TestObserveBelowHighWater(t *testing.T) {
	w := NewQueueWatcher(func() (int, int) { return 3, 10 }, 0.8, time.Second)

	w.observe()

	if got := w.WarnCount(); got != 0 {
		t.Errorf("Expected 0 warnings below high-water, got %d", got)
	}
	if got := w.Saturation(); got != 0.3 {
		t.Errorf("Expected saturation 0.3, got %f", got)
	}
	used, capacity := w.QueueStatus()
	if used != 3 || capacity != 10 {
		t.Errorf("Expected queue status (3, 10), got (%d, %d)", used, capacity)
	}
}

func TestObserveAboveHighWater(t *testing.T) {
	w := NewQueueWatcher(func() (int, int) { return 9, 10 }, 0.8, time.Second)

	w.observe()
	w.observe()

	if got := w.WarnCount(); got != 2 {
		t.Errorf("Expected 2 warnings above high-water, got %d", got)
	}
	if got := w.Saturation(); got != 0.9 {
		t.Errorf("Expected saturation 0.9, got %f", got)
	}
}

func TestObserveAtExactHighWater(t *testing.T) {
	// 고수위 정확히 도달도 경고 대상임
	w := NewQueueWatcher(func() (int, int) { return 8, 10 }, 0.8, time.Second)

	w.observe()

	if got := w.WarnCount(); got != 1 {
		t.Errorf("Expected warning at exact high-water, got %d", got)
	}
}

func TestObserveZeroCapacity(t *testing.T) {
	w := NewQueueWatcher(func() (int, int) { return 0, 0 }, 0.8, time.Second)

	w.observe()

	if got := w.WarnCount(); got != 0 {
		t.Errorf("Expected no warning for zero-capacity queue, got %d", got)
	}
	if got := w.Saturation(); got != 0 {
		t.Errorf("Expected saturation 0 for zero-capacity queue, got %f", got)
	}
}

func TestStartStopSampling(t *testing.T) {
	var used int64 = 10
	w := NewQueueWatcher(func() (int, int) {
		return int(atomic.LoadInt64(&used)), 10
	}, 0.8, 20*time.Millisecond)

	w.Start()

	// 1. 몇 사이클 돌면서 경고가 쌓이는지 확인
	time.Sleep(120 * time.Millisecond)
	first := w.WarnCount()
	if first == 0 {
		t.Fatal("Expected warnings while queue is saturated")
	}

	// 2. 중지 후에는 더 쌓이지 않아야 함
	w.Stop()
	time.Sleep(80 * time.Millisecond)
	if got := w.WarnCount(); got != first {
		t.Errorf("Expected warn count to stay at %d after Stop, got %d", first, got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	w := NewQueueWatcher(func() (int, int) { return 0, 10 }, 0.8, 20*time.Millisecond)

	w.Start()
	w.Start() // 두 번째 호출은 무시되어야 함
	defer w.Stop()

	if atomic.LoadInt32(&w.running) != 1 {
		t.Error("Expected watcher to be running after double Start")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w := NewQueueWatcher(func() (int, int) { return 0, 10 }, 0.8, 20*time.Millisecond)
	w.Start()

	w.Stop()
	w.Stop() // 두 번째 호출이 패닉 없이 지나가야 함
}

func TestSaturationTracksLatestSample(t *testing.T) {
	var used int64 = 2
	w := NewQueueWatcher(func() (int, int) {
		return int(atomic.LoadInt64(&used)), 10
	}, 0.8, time.Second)

	w.observe()
	if got := w.Saturation(); got != 0.2 {
		t.Errorf("Expected saturation 0.2, got %f", got)
	}

	atomic.StoreInt64(&used, 7)
	w.observe()
	if got := w.Saturation(); got != 0.7 {
		t.Errorf("Expected saturation 0.7 after new sample, got %f", got)
	}
}
