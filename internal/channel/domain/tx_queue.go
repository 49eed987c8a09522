// Package domain: 채널 서비스의 도메인 모델
// - PendingTransaction: 수락됐지만 아직 블록에 담기지 않은 트랜잭션
// - TxQueue: 단일 뮤텍스 + JSONL 백로그로 재시작에도 살아남는 대기열
package domain

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// PendingTransaction 수락된 미커밋 트랜잭션
// Hash는 0x 없는 소문자 16진수, Payload는 제출 본문 그대로임
type PendingTransaction struct {
	Hash    string         `json:"hash"`
	Payload map[string]any `json:"payload"`
}

// TxQueue 대기 트랜잭션 큐
// 모든 변경은 mu 아래에서 일어남: 중복 검사+추가(Admit)와
// 커밋+제거(DrainWith)가 각각 원자적이어야 해시가
// "대기 중"과 "커밋됨"에 동시에 보이는 순간이 없음
type TxQueue struct {
	mu      sync.Mutex
	entries []PendingTransaction

	backlogPath string // 빈 문자열이면 영속화 없음
}

// NewTxQueue 빈 큐 생성. backlogPath가 비어 있으면 메모리 전용
func NewTxQueue(backlogPath string) *TxQueue {
	return &TxQueue{backlogPath: backlogPath}
}

// LoadTxQueue 백로그 JSONL을 재생해서 큐를 복원함
// committed가 이미 아는 해시(재시작 사이에 커밋된 것)와 파일 내 중복은 버림
func LoadTxQueue(backlogPath string, committed func(hash string) bool) (*TxQueue, error) {
	loaded, err := loadBacklogJSONL(backlogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tx backlog: %w", err)
	}

	seen := make(map[string]struct{}, len(loaded))
	kept := make([]PendingTransaction, 0, len(loaded))
	for _, ptx := range loaded {
		if _, dup := seen[ptx.Hash]; dup {
			continue
		}
		if committed != nil && committed(ptx.Hash) {
			continue
		}
		seen[ptx.Hash] = struct{}{}
		kept = append(kept, ptx)
	}

	q := &TxQueue{entries: kept, backlogPath: backlogPath}
	if dropped := len(loaded) - len(kept); dropped > 0 {
		// 버린 항목이 파일에 남아 있으면 다음 재시작 때 또 걸러야 하므로 지금 다시 씀
		if err := rewriteBacklogJSONL(backlogPath, kept); err != nil {
			return nil, fmt.Errorf("failed to compact tx backlog: %w", err)
		}
		log.Printf("✅ TxQueue backlog replayed: %d kept, %d dropped (committed or duplicate)", len(kept), dropped)
	} else if len(kept) > 0 {
		log.Printf("✅ TxQueue backlog replayed: %d pending transactions restored", len(kept))
	}
	return q, nil
}

// Admit 중복 검사와 추가를 한 번의 락 구간에서 처리함
// 검사 순서는 대기열 스캔 → 커밋 확인. 수락되면 true
// 백로그 기록 실패 시에도 메모리 수락은 유지되고 에러만 돌려줌
func (q *TxQueue) Admit(ptx PendingTransaction, committed func(hash string) bool) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// 1. 대기열 스캔 먼저
	for _, e := range q.entries {
		if e.Hash == ptx.Hash {
			return false, nil
		}
	}
	// 2. 그 다음 커밋 저장소 확인
	if committed != nil && committed(ptx.Hash) {
		return false, nil
	}
	// 3. 같은 락 안에서 추가
	q.entries = append(q.entries, ptx)

	if q.backlogPath != "" {
		if err := appendBacklogJSONL(q.backlogPath, ptx); err != nil {
			return true, fmt.Errorf("failed to persist admitted transaction %s: %w", ptx.Hash, err)
		}
	}
	return true, nil
}

// DrainWith 현재 항목 전부를 commit에 넘기고, 성공했을 때만 제거함
// commit 호출이 큐 락 아래에서 일어나므로 커밋 중인 해시가
// 대기열에서도 보이는 중간 상태는 외부에 노출되지 않음
func (q *TxQueue) DrainWith(commit func(batch []PendingTransaction) error) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := append([]PendingTransaction(nil), q.entries...)
	if err := commit(batch); err != nil {
		return 0, fmt.Errorf("failed to commit drained transactions: %w", err)
	}
	q.entries = q.entries[:0]

	if q.backlogPath != "" {
		if err := rewriteBacklogJSONL(q.backlogPath, nil); err != nil {
			// 커밋은 끝났고 다음 기동 시 committed 검사가 걸러주므로 치명적이지 않음
			return len(batch), fmt.Errorf("failed to truncate tx backlog: %w", err)
		}
	}
	return len(batch), nil
}

// Contains 해당 해시가 대기 중인지 확인
func (q *TxQueue) Contains(hash string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.Hash == hash {
			return true
		}
	}
	return false
}

// Len 대기 중인 트랜잭션 수
func (q *TxQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot 현재 항목의 복사본 (상태 API/테스트용)
func (q *TxQueue) Snapshot() []PendingTransaction {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]PendingTransaction(nil), q.entries...)
}

// ---- JSONL helpers ----

func loadBacklogJSONL(path string) ([]PendingTransaction, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReaderSize(f, 1<<20)
	dec := json.NewDecoder(r)
	var items []PendingTransaction
	for {
		var v PendingTransaction
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func appendBacklogJSONL(path string, item PendingTransaction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(&item)
}

// rewriteBacklogJSONL 파일을 현재 항목들로 새로 씀. 빈 목록이면 빈 파일로 잘라냄
func rewriteBacklogJSONL(path string, items []PendingTransaction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(w)
	for _, v := range items {
		if err := enc.Encode(&v); err != nil {
			return err
		}
	}
	return w.Flush()
}
