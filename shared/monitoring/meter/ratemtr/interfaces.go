package ratemtr

// RateMeter 초당 처리율 측정을 위한 인터페이스
type RateMeter interface {
	// RecordEvent 이벤트 발생 기록 (thread-safe)
	RecordEvent()

	// RecordEvents 여러 이벤트를 한 번에 기록 (배치 처리)
	RecordEvents(count int)

	// CurrentPerSecond 현재 처리율 반환 (마지막 1초 윈도우)
	CurrentPerSecond() float64

	// AveragePerSecond 전체 평균 처리율 반환
	AveragePerSecond() float64

	// TotalEvents 총 이벤트 수 반환
	TotalEvents() int64

	// Reset 통계 초기화
	Reset()

	// Close 리소스 정리
	Close()
}
