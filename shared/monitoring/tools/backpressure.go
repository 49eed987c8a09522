package tools

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// QueueWatcher는 워커 풀 큐의 점유율을 주기적으로 샘플링하는 감시자임
// 점유율이 고수위 비율을 넘어서면 경고 로그를 남기고 경고 횟수를 집계함
type QueueWatcher struct {
	// sample은 감시 대상 큐의 현재 사용량과 용량을 돌려줌
	sample func() (used, capacity int)

	// 감시 요구사항
	highWater float64       // 경고 기준 포화도 (0.0 ~ 1.0)
	interval  time.Duration // 샘플링 주기

	// 마지막 샘플 스냅샷
	lastUsed     int64
	lastCapacity int64
	warnCount    int64

	// 제어 관련
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once // Stop 멱등성 보장
	running  int32
}

const defaultWatchInterval = 5 * time.Second

// NewQueueWatcher 새로운 큐 감시자 생성
// highWater가 (0,1] 범위를 벗어나면 0.8로 보정함
func NewQueueWatcher(sample func() (used, capacity int), highWater float64, interval time.Duration) *QueueWatcher {
	if sample == nil {
		panic("큐 샘플 함수 없이 감시자를 만들 수 없음")
	}
	if highWater <= 0 || highWater > 1 {
		highWater = 0.8
	}
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &QueueWatcher{
		sample:    sample,
		highWater: highWater,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start 주기적 샘플링 시작
func (w *QueueWatcher) Start() {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		return
	}
	w.ticker = time.NewTicker(w.interval)

	go func() {
		for {
			select {
			case <-w.ticker.C:
				w.observe()
			case <-w.stopChan:
				return
			}
		}
	}()

	log.Printf("📡 QueueWatcher started (high-water %.0f%%, every %v)", w.highWater*100, w.interval)
}

// observe 큐를 한 번 샘플링하고 고수위 초과 시 경고
func (w *QueueWatcher) observe() {
	used, capacity := w.sample()
	atomic.StoreInt64(&w.lastUsed, int64(used))
	atomic.StoreInt64(&w.lastCapacity, int64(capacity))

	if capacity <= 0 {
		return
	}
	saturation := float64(used) / float64(capacity)
	if saturation >= w.highWater {
		n := atomic.AddInt64(&w.warnCount, 1)
		log.Printf("⚠️ QueueWatcher: queue saturation %.0f%% (%d/%d) above high-water %.0f%% (warning #%d)",
			saturation*100, used, capacity, w.highWater*100, n)
	}
}

// Stop 샘플링 중지 (멱등)
func (w *QueueWatcher) Stop() {
	w.stopOnce.Do(func() {
		if !atomic.CompareAndSwapInt32(&w.running, 1, 0) {
			return
		}
		close(w.stopChan)
		if w.ticker != nil {
			w.ticker.Stop()
		}
		log.Printf("🛑 QueueWatcher stopped")
	})
}

// Saturation 마지막 샘플 기준 포화도 반환
// 아직 샘플이 없거나 용량이 0이면 0을 반환함
func (w *QueueWatcher) Saturation() float64 {
	capacity := atomic.LoadInt64(&w.lastCapacity)
	if capacity <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&w.lastUsed)) / float64(capacity)
}

// WarnCount 고수위 초과 경고 누적 횟수
func (w *QueueWatcher) WarnCount() int64 {
	return atomic.LoadInt64(&w.warnCount)
}

// QueueStatus 마지막 샘플의 사용량/용량
func (w *QueueWatcher) QueueStatus() (used, capacity int) {
	return int(atomic.LoadInt64(&w.lastUsed)), int(atomic.LoadInt64(&w.lastCapacity))
}
