package domain

import "fmt"

// 채널 응답 코드. 클라이언트와 공유하는 와이어 계약이므로 값을 바꾸면 안 됨
const (
	Success                     = 0
	FailTxInvalidDuplicatedHash = -1
	FailTxNotInvoked            = -2
	FailTxInvalidHashNotMatch   = -3
	FailWrongBlockHash          = -4
	FailWrongBlockHeight        = -5
)

// CodeName 응답 코드의 로그용 이름
func CodeName(code int) string {
	switch code {
	case Success:
		return "success"
	case FailTxInvalidDuplicatedHash:
		return "fail_tx_invalid_duplicated_hash"
	case FailTxNotInvoked:
		return "fail_tx_not_invoked"
	case FailTxInvalidHashNotMatch:
		return "fail_tx_invalid_hash_not_match"
	case FailWrongBlockHash:
		return "fail_wrong_block_hash"
	case FailWrongBlockHeight:
		return "fail_wrong_block_height"
	default:
		return fmt.Sprintf("unknown(%d)", code)
	}
}
