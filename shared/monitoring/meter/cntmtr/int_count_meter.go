// Package cntmtr: 누적 카운터 측정기
// 디스패처와 블록 매니저의 운영 카운터가 이걸로 집계됨
package cntmtr

import (
	"sync/atomic"
)

// IntCountMeterDesign 카운터 측정기 인터페이스
type IntCountMeterDesign interface {
	Increase()
	Increases(u uint)
	TotalSum() int64
}

// IntCountMeter 스레드 안전한 정수 카운터
type IntCountMeter struct {
	value int64
}

// NewIntCountMeter 0에서 시작하는 카운터 생성
func NewIntCountMeter() *IntCountMeter {
	return &IntCountMeter{}
}

// Increase 카운터를 1 증가
func (icm *IntCountMeter) Increase() {
	atomic.AddInt64(&icm.value, 1)
}

// Increases 카운터를 u만큼 증가 (배치 커밋용)
func (icm *IntCountMeter) Increases(u uint) {
	if u > 0 {
		atomic.AddInt64(&icm.value, int64(u))
	}
}

// TotalSum 현재 누적값
func (icm *IntCountMeter) TotalSum() int64 {
	return atomic.LoadInt64(&icm.value)
}

// Reset 카운터를 0으로 되돌림
func (icm *IntCountMeter) Reset() {
	atomic.StoreInt64(&icm.value, 0)
}
