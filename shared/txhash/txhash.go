// Package txhash: 트랜잭션 요청의 정규 직렬화 바이트에서 해시 식별자를 유도한다.
// - 직렬화는 JSON 고정 (json.Marshal은 맵 키를 정렬하므로 같은 필드 값이면 항상 같은 바이트)
// - 해시는 SHA3-256, 소문자 hex 64자리 (0x 접두어 없음)
package txhash

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Sum 트랜잭션 매핑의 정규 JSON 바이트를 SHA3-256으로 해시
// 에러 경로 없음: JSON에서 디코딩된 맵은 항상 재직렬화 가능
func Sum(tx map[string]any) string {
	data, err := json.Marshal(tx)
	if err != nil {
		panic(fmt.Errorf("txhash: failed to marshal transaction: %w", err))
	}
	return SumBytes(data)
}

// SumBytes 임의 바이트의 SHA3-256 hex
func SumBytes(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Normalize 조회용 해시 정규화: 선택적 0x/0X 접두어 제거 + 소문자화
func Normalize(h string) string {
	if len(h) >= 2 && (h[:2] == "0x" || h[:2] == "0X") {
		h = h[2:]
	}
	return strings.ToLower(h)
}

// Prefixed 응답용 "0x" 접두어 해시
func Prefixed(h string) string {
	return "0x" + Normalize(h)
}
