package monitor

import "time"

// * 모니터링은 리얼 타임 기반이므로 time.Duration을 사용한다
type Monitor interface {
	// StartReporting 주기적 리포팅 시작
	StartReporting(interval time.Duration)

	// StopReporting 리포팅 중지
	StopReporting()
}

// ReportCallback 주기 리포트 수신 콜백
type ReportCallback[Stats any] func(stats Stats)
