package mode

import "fmt"

type ProcessingMode int

const (
	TestingModeProcess ProcessingMode = iota
	ProductionModeProcess
)

func (m ProcessingMode) IsTest() bool {
	switch m {
	case TestingModeProcess:
		return true
	case ProductionModeProcess:
		return false
	}
	panic("mode: 정의되지 않은 ProcessingMode")
}

func (m ProcessingMode) String() string {
	if m == TestingModeProcess {
		return "testing"
	}
	return "production"
}

// Parse 설정 파일의 문자열 모드를 해석 ("testing" | "production")
func Parse(s string) (ProcessingMode, error) {
	switch s {
	case "testing", "test":
		return TestingModeProcess, nil
	case "production", "prod":
		return ProductionModeProcess, nil
	}
	return TestingModeProcess, fmt.Errorf("mode: unknown processing mode %q", s)
}
