package svcmntr

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/blocklite-dev/blocklite/shared/monitoring/meter/ratemtr"
	"github.com/blocklite-dev/blocklite/shared/monitoring/monitor"
)

// ServiceStats 채널 서비스 통계 정보
type ServiceStats struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestRate  float64   `json:"request_rate"`
	ReplyRate    float64   `json:"reply_rate"`
	RequestTotal int64     `json:"request_total"`
	ReplyTotal   int64     `json:"reply_total"`
}

// ServiceMonitor 큐 요청/응답 처리율 모니터링
type ServiceMonitor struct {
	RequestRate ratemtr.RateMeter // 수신 요청 측정기
	ReplyRate   ratemtr.RateMeter // 발행 응답 측정기

	reportInterval time.Duration
	reportCallback monitor.ReportCallback[ServiceStats]

	reportTicker *time.Ticker
	reportStopCh chan struct{}
	reporting    int32 // atomic flag
}

// NewServiceMonitor 새로운 서비스 모니터 생성
func NewServiceMonitor() *ServiceMonitor {
	return &ServiceMonitor{
		RequestRate:  ratemtr.NewRateMeter(),
		ReplyRate:    ratemtr.NewRateMeter(),
		reportStopCh: make(chan struct{}),
	}
}

// RecordRequest 요청 수신 기록
func (sm *ServiceMonitor) RecordRequest() {
	sm.RequestRate.RecordEvent()
}

// RecordReply 응답 발행 기록
func (sm *ServiceMonitor) RecordReply() {
	sm.ReplyRate.RecordEvent()
}

// StartReporting 주기적 리포팅 시작
func (sm *ServiceMonitor) StartReporting(interval time.Duration) {
	if atomic.CompareAndSwapInt32(&sm.reporting, 0, 1) {
		sm.reportInterval = interval
		sm.reportTicker = time.NewTicker(interval)
		go sm.reportingRoutine()
		log.Printf("[ServiceMonitor] Started reporting every %v", interval)
	}
}

func (sm *ServiceMonitor) reportingRoutine() {
	for {
		select {
		case <-sm.reportTicker.C:
			sm.doReport()
		case <-sm.reportStopCh:
			return
		}
	}
}

func (sm *ServiceMonitor) doReport() {
	stats := sm.GetServiceStats()

	log.Printf("[ServiceMonitor] Requests: %.2f/s (Total: %d), Replies: %.2f/s (Total: %d)",
		stats.RequestRate, stats.RequestTotal,
		stats.ReplyRate, stats.ReplyTotal)

	if sm.reportCallback != nil {
		sm.reportCallback(stats)
	}
}

// StopReporting 리포팅 중지 (멱등)
func (sm *ServiceMonitor) StopReporting() {
	if atomic.CompareAndSwapInt32(&sm.reporting, 1, 0) {
		if sm.reportTicker != nil {
			sm.reportTicker.Stop()
		}
		close(sm.reportStopCh)
		log.Printf("[ServiceMonitor] Stopped reporting")
	}
}

// SetCallback 리포팅 콜백 설정
func (sm *ServiceMonitor) SetCallback(callback monitor.ReportCallback[ServiceStats]) {
	sm.reportCallback = callback
}

// GetServiceStats 현재 통계 반환
func (sm *ServiceMonitor) GetServiceStats() ServiceStats {
	return ServiceStats{
		Timestamp:    time.Now(),
		RequestRate:  sm.RequestRate.CurrentPerSecond(),
		ReplyRate:    sm.ReplyRate.CurrentPerSecond(),
		RequestTotal: sm.RequestRate.TotalEvents(),
		ReplyTotal:   sm.ReplyRate.TotalEvents(),
	}
}

// Close 모든 리소스 정리
func (sm *ServiceMonitor) Close() {
	sm.StopReporting()
	sm.RequestRate.Close()
	sm.ReplyRate.Close()
}
