// Package domain: 모의 제출 페이로드 생성 규칙
package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GeneratorConfig 피더 구성
type GeneratorConfig struct {
	TotalTransactions     int // 생성할 총 제출 수
	TransactionsPerSecond int // 초당 생성 속도
	AccountPool           int // from/to로 돌려 쓸 주소 풀 크기
}

// NewDefaultGeneratorConfig 프로브 기본값
func NewDefaultGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		TotalTransactions:     100,
		TransactionsPerSecond: 50,
		AccountPool:           16,
	}
}

// RandomAddress 무작위 EOA 주소 ("hx" + 20바이트 16진수)
func RandomAddress() string {
	b := make([]byte, 20)
	rand.Read(b)
	return "hx" + hex.EncodeToString(b)
}

// NewSubmitPayload nonce가 박힌 제출 본문 생성
// nonce와 timestamp가 본문을 유일하게 만들어서 해시 중복이 안 생김
func NewSubmitPayload(from, to string, nonce int64) map[string]any {
	return map[string]any{
		"version":   "0x3",
		"from":      from,
		"to":        to,
		"value":     fmt.Sprintf("0x%x", (nonce%100+1)*1_000_000_000),
		"nonce":     fmt.Sprintf("0x%x", nonce),
		"timestamp": fmt.Sprintf("%d", time.Now().UnixMicro()),
	}
}
