package dto

import "encoding/json"

// 채널 요청 큐에 실리는 메서드 이름 (와이어 호환: 변경 금지)
const (
	MethodCreateTx        = "create_icx_tx"
	MethodGetInvokeResult = "get_invoke_result"
	MethodGetTxInfo       = "get_tx_info"
	MethodGetBlock        = "get_block"
)

// RequestEnvelope 요청 토픽용 메시지 구조체
// 클라이언트 → 채널 서비스. correlation_id는 클라이언트가 발급하고
// 노드는 에코만 한다 (서버 측 생성 없음).
type RequestEnvelope struct {
	CorrelationID string          `json:"correlation_id"`
	Method        string          `json:"method"`
	ReplyTopic    string          `json:"reply_topic,omitempty"`
	Params        json.RawMessage `json:"params"`
}

// TxHashParams get_invoke_result / get_tx_info 공용 파라미터
type TxHashParams struct {
	TxHash string `json:"tx_hash"`
}

// GetBlockParams get_block 파라미터
// height == -1 && hash == "" 이면 "최신 블록" 요청
type GetBlockParams struct {
	BlockHeight     int64  `json:"block_height"`
	BlockHash       string `json:"block_hash"`
	BlockDataFilter string `json:"block_data_filter"`
	TxDataFilter    string `json:"tx_data_filter"`
}

// 응답은 메서드별 구조체로 고정한다. 실패 시에도 필드는 항상 실리며
// (tx_hash는 null, result/tx는 빈 객체, block_body는 빈 문자열),
// 필드명은 와이어 계약이다.

// CreateTxResponse create_icx_tx 응답
type CreateTxResponse struct {
	CorrelationID string  `json:"correlation_id"`
	Code          int     `json:"code"`
	TxHash        *string `json:"tx_hash"`
}

// InvokeResultResponse get_invoke_result 응답
type InvokeResultResponse struct {
	CorrelationID string         `json:"correlation_id"`
	Code          int            `json:"code"`
	Result        map[string]any `json:"result"`
}

// TxInfoResponse get_tx_info 응답
type TxInfoResponse struct {
	CorrelationID string         `json:"correlation_id"`
	Code          int            `json:"code"`
	Tx            map[string]any `json:"tx"`
}

// BlockResponse get_block 응답
// 성공 시 block_hash는 선택된 블록 자신의 해시, block_body는 블록의 정규 JSON 문자열
type BlockResponse struct {
	CorrelationID  string `json:"correlation_id"`
	Code           int    `json:"code"`
	BlockHash      string `json:"block_hash"`
	BlockBody      string `json:"block_body"`
	FilteredTxList []any  `json:"filtered_tx_list"`
}
