package ratemtr

import (
	"sync/atomic"
	"time"
)

// AtomicRateMeter 원자적 카운터 기반 초당 처리율 측정기
// 1초마다 윈도우 카운터를 스왑해서 "마지막 1초 처리율"을 계산한다
type AtomicRateMeter struct {
	windowCounter int64 // 현재 1초 윈도우 카운터
	totalCounter  int64 // 전체 누적 카운터
	currentRate   int64 // 마지막 윈도우의 처리량 (atomic)

	startTime time.Time

	ticker  *time.Ticker
	stopCh  chan struct{}
	running int32 // atomic flag
}

// NewRateMeter 새로운 측정기 생성 (1초 윈도우 고정)
func NewRateMeter() RateMeter {
	meter := &AtomicRateMeter{
		startTime: time.Now(),
		ticker:    time.NewTicker(1 * time.Second),
		stopCh:    make(chan struct{}),
	}

	atomic.StoreInt32(&meter.running, 1)
	go meter.tickerRoutine()

	return meter
}

// RecordEvent 이벤트 발생 기록
func (m *AtomicRateMeter) RecordEvent() {
	atomic.AddInt64(&m.windowCounter, 1)
	atomic.AddInt64(&m.totalCounter, 1)
}

// RecordEvents 여러 이벤트를 한 번에 기록
func (m *AtomicRateMeter) RecordEvents(count int) {
	if count <= 0 {
		return
	}
	atomic.AddInt64(&m.windowCounter, int64(count))
	atomic.AddInt64(&m.totalCounter, int64(count))
}

// CurrentPerSecond 마지막 1초 동안의 처리량
func (m *AtomicRateMeter) CurrentPerSecond() float64 {
	return float64(atomic.LoadInt64(&m.currentRate))
}

// AveragePerSecond 시작 이후 전체 평균 처리율
func (m *AtomicRateMeter) AveragePerSecond() float64 {
	total := atomic.LoadInt64(&m.totalCounter)
	if total == 0 {
		return 0.0
	}

	duration := time.Since(m.startTime).Seconds()
	if duration <= 0 {
		return 0.0
	}

	return float64(total) / duration
}

// TotalEvents 총 이벤트 수
func (m *AtomicRateMeter) TotalEvents() int64 {
	return atomic.LoadInt64(&m.totalCounter)
}

// Reset 통계 초기화
func (m *AtomicRateMeter) Reset() {
	atomic.StoreInt64(&m.windowCounter, 0)
	atomic.StoreInt64(&m.totalCounter, 0)
	atomic.StoreInt64(&m.currentRate, 0)
	m.startTime = time.Now()
}

// Close 리소스 정리 (멱등)
func (m *AtomicRateMeter) Close() {
	if atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		m.ticker.Stop()
		close(m.stopCh)
	}
}

func (m *AtomicRateMeter) tickerRoutine() {
	for {
		select {
		case <-m.ticker.C:
			count := atomic.SwapInt64(&m.windowCounter, 0)
			atomic.StoreInt64(&m.currentRate, count)

		case <-m.stopCh:
			return
		}
	}
}
