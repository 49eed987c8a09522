// Package domain: 원장 도메인 모델
// 블록 JSON 필드명과 해시 유도 규칙은 와이어 계약이므로 바꾸면 안 됨
package domain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// BlockVersion 블록 포맷 버전 문자열
const BlockVersion = "blocklite-0.1"

// Block 확정 블록
type Block struct {
	Version       string           `json:"version"`
	PrevBlockHash string           `json:"prev_block_hash"`
	MerkleRoot    string           `json:"merkle_tree_root_hash"`
	Timestamp     int64            `json:"time_stamp"` // 마이크로초
	Transactions  []map[string]any `json:"confirmed_transaction_list"`
	BlockHash     string           `json:"block_hash"`
	Height        int64            `json:"height"`
	PeerID        string           `json:"peer_id"`
	Signature     string           `json:"signature"` // 합의 없음, 항상 빈 문자열
}

// NewBlock 다음 높이의 블록을 만들고 머클 루트와 블록 해시까지 채움
// txHashes는 txs와 같은 순서의 트랜잭션 해시 목록임
func NewBlock(height int64, prevHash string, txs []map[string]any, txHashes []string, peerID string, timestampMicro int64) *Block {
	b := &Block{
		Version:       BlockVersion,
		PrevBlockHash: prevHash,
		MerkleRoot:    MerkleRootOf(txHashes),
		Timestamp:     timestampMicro,
		Transactions:  txs,
		Height:        height,
		PeerID:        peerID,
		Signature:     "",
	}
	b.BlockHash = b.ComputeHash()
	return b
}

// ComputeHash 헤더 튜플을 RLP로 직렬화한 뒤 SHA3-256
// (prev, merkle, timestamp, height, peer)만 들어가므로
// 같은 내용은 언제나 같은 해시가 나옴
func (b *Block) ComputeHash() string {
	prev, _ := hex.DecodeString(b.PrevBlockHash)
	merkle, _ := hex.DecodeString(b.MerkleRoot)

	var buf bytes.Buffer
	_ = rlp.Encode(&buf, []interface{}{prev, merkle, uint64(b.Timestamp), uint64(b.Height), b.PeerID})

	sum := sha3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// MerkleRootOf 트랜잭션 해시 바이트를 이어붙인 것의 SHA3-256
// 빈 목록이면 빈 입력의 해시가 나옴
func MerkleRootOf(txHashes []string) string {
	h := sha3.New256()
	for _, txHash := range txHashes {
		raw, _ := hex.DecodeString(txHash)
		h.Write(raw)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalJSON 블록의 정규 JSON 문자열 (get_block 응답 본문)
func (b *Block) CanonicalJSON() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to marshal block %d: %w", b.Height, err)
	}
	return string(data), nil
}

// ToMap 채널 쪽 인터페이스가 쓰는 맵 표현
func (b *Block) ToMap() (map[string]any, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal block %d: %w", b.Height, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to remarshal block %d: %w", b.Height, err)
	}
	return m, nil
}

// NowTimestampMicro 블록 타임스탬프용 현재 시각 (마이크로초)
func NowTimestampMicro() int64 {
	return time.Now().UnixMicro()
}
