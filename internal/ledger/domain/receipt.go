package domain

import (
	"encoding/json"
	"fmt"
)

// ResultStatusSuccess 합성 결과의 상태값. 실행 엔진이 없으므로 항상 성공
const ResultStatusSuccess = "0x1"

// TxResult 커밋된 트랜잭션 하나에 대한 합성 인보크 결과
type TxResult struct {
	TxHash      string `json:"tx_hash"` // 0x 접두 해시
	BlockHeight int64  `json:"block_height"`
	BlockHash   string `json:"block_hash"`
	TxIndex     int    `json:"tx_index"`
	Status      string `json:"status"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}

// NewTxResult 블록에 담긴 트랜잭션의 결과를 만듦
// from/to는 제출 본문에 있을 때만 그대로 옮김
func NewTxResult(prefixedTxHash string, blk *Block, txIndex int, payload map[string]any) *TxResult {
	r := &TxResult{
		TxHash:      prefixedTxHash,
		BlockHeight: blk.Height,
		BlockHash:   blk.BlockHash,
		TxIndex:     txIndex,
		Status:      ResultStatusSuccess,
	}
	if from, ok := payload["from"].(string); ok {
		r.From = from
	}
	if to, ok := payload["to"].(string); ok {
		r.To = to
	}
	return r
}

// ToMap 채널 쪽 인터페이스가 쓰는 맵 표현
func (r *TxResult) ToMap() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tx result %s: %w", r.TxHash, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to remarshal tx result %s: %w", r.TxHash, err)
	}
	return m, nil
}
