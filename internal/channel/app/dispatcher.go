// Package app: 채널 요청 디스패처
// 큐에서 디코딩된 요청을 받아 검증/중복 제거 후 (상태 코드, 페이로드) 쌍으로 답함
// 에러를 밖으로 던지지 않음: 모든 실패는 상태 코드로 보고됨
package app

import (
	"encoding/json"
	"log"

	"github.com/blocklite-dev/blocklite/internal/channel/domain"
	"github.com/blocklite-dev/blocklite/shared/monitoring/meter/cntmtr"
	"github.com/blocklite-dev/blocklite/shared/txhash"
)

// DispatcherStats 운영 API가 내보내는 카운터 스냅샷
type DispatcherStats struct {
	Submissions int64 `json:"submissions"`
	Duplicates  int64 `json:"duplicates"`
	Queries     int64 `json:"queries"`
	Misses      int64 `json:"misses"`
	PendingTxs  int   `json:"pending_txs"`
}

// Dispatcher 네 가지 채널 연산의 구현체
// 대기열은 자기 소유, 커밋 데이터는 Chain을 통해 읽기만 함
type Dispatcher struct {
	queue *domain.TxQueue
	chain Chain

	submissions *cntmtr.IntCountMeter
	duplicates  *cntmtr.IntCountMeter
	queries     *cntmtr.IntCountMeter
	misses      *cntmtr.IntCountMeter
}

// NewDispatcher 주입받은 대기열과 체인으로 디스패처 생성
func NewDispatcher(queue *domain.TxQueue, chain Chain) *Dispatcher {
	if queue == nil || chain == nil {
		panic("Dispatcher에 대기열과 체인이 둘 다 필요함")
	}
	return &Dispatcher{
		queue:       queue,
		chain:       chain,
		submissions: cntmtr.NewIntCountMeter(),
		duplicates:  cntmtr.NewIntCountMeter(),
		queries:     cntmtr.NewIntCountMeter(),
		misses:      cntmtr.NewIntCountMeter(),
	}
}

// SubmitTransaction (create_icx_tx) 트랜잭션 제출
// 해시 계산 → 중복 검사(대기열 스캔 먼저, 그다음 커밋 확인)와 추가가
// TxQueue.Admit 안에서 한 원자 단위로 처리됨
// 중복이면 (FailTxInvalidDuplicatedHash, ""), 수락이면 (Success, "0x"+hash)
func (d *Dispatcher) SubmitTransaction(tx map[string]any) (int, string) {
	d.submissions.Increase()
	hash := txhash.Sum(tx)

	admitted, err := d.queue.Admit(
		domain.PendingTransaction{Hash: hash, Payload: tx},
		d.chain.HasCommitted,
	)
	if err != nil {
		// 메모리 수락은 이미 끝난 상태. 백로그만 뒤처졌으므로 응답은 그대로 나감
		log.Printf("⚠️ Tx backlog persistence lagging: %v", err)
	}
	if !admitted {
		d.duplicates.Increase()
		return domain.FailTxInvalidDuplicatedHash, ""
	}
	return domain.Success, txhash.Prefixed(hash)
}

// GetInvokeResult (get_invoke_result) 커밋된 실행 결과 조회
// 대기 중인 트랜잭션은 결과가 없으므로 대기열은 보지 않음
func (d *Dispatcher) GetInvokeResult(hash string) (int, map[string]any) {
	d.queries.Increase()
	result, found := d.chain.GetTxResult(txhash.Normalize(hash))
	if !found {
		d.misses.Increase()
		return domain.FailTxNotInvoked, map[string]any{}
	}
	return domain.Success, result
}

// GetTxInfo (get_tx_info) 커밋된 트랜잭션 본문 조회
func (d *Dispatcher) GetTxInfo(hash string) (int, map[string]any) {
	d.queries.Increase()
	tx, found := d.chain.GetTransaction(txhash.Normalize(hash))
	if !found {
		d.misses.Increase()
		return domain.FailTxInvalidHashNotMatch, map[string]any{}
	}
	return domain.Success, tx
}

// GetBlock (get_block) 블록 조회
// 선택 순서 고정: hash==""이고 height==-1이면 최신, hash가 있으면 해시 우선,
// 아니면 높이로. 실패 코드는 해시/최신 선택이면 FailWrongBlockHash,
// 높이 선택이면 FailWrongBlockHeight이고 입력 해시를 그대로 돌려줌
// 필터 두 개는 와이어 호환으로 받기만 하고 적용하지 않음 (목록은 항상 빈 배열)
func (d *Dispatcher) GetBlock(height int64, hash, blockFilter, txFilter string) (int, string, string, []any) {
	d.queries.Increase()

	var (
		blk      map[string]any
		found    bool
		failCode int
	)
	switch {
	case hash == "" && height == -1:
		blk, found = d.chain.GetLastBlock()
		failCode = domain.FailWrongBlockHash
	case hash != "":
		blk, found = d.chain.GetBlockByHash(txhash.Normalize(hash))
		failCode = domain.FailWrongBlockHash
	default:
		blk, found = d.chain.GetBlockByHeight(height)
		failCode = domain.FailWrongBlockHeight
	}

	if !found {
		d.misses.Increase()
		return failCode, hash, "", []any{}
	}

	resolved, _ := blk["block_hash"].(string)
	body, err := json.Marshal(blk)
	if err != nil {
		log.Printf("❌ Block %s serialization failed: %v", resolved, err)
		d.misses.Increase()
		return failCode, hash, "", []any{}
	}
	return domain.Success, resolved, string(body), []any{}
}

// Stats 카운터 스냅샷
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Submissions: d.submissions.TotalSum(),
		Duplicates:  d.duplicates.TotalSum(),
		Queries:     d.queries.TotalSum(),
		Misses:      d.misses.TotalSum(),
		PendingTxs:  d.queue.Len(),
	}
}

// PendingSnapshot 대기열 현재 내용 (운영 API용)
func (d *Dispatcher) PendingSnapshot() []domain.PendingTransaction {
	return d.queue.Snapshot()
}
