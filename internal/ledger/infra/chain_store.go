// Package infra: 원장 영속 계층 (Badger 체인 스토어 + mmap 높이 인덱스)
package infra

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/blocklite-dev/blocklite/internal/ledger/domain"
)

// Key prefixes for committed chain data
const (
	blockPrefix  = "b:" // + block hash (hex) → block JSON
	txLocPrefix  = "t:" // + tx hash (hex) → 8B BE height + 4B BE tx index
	resultPrefix = "r:" // + tx hash (hex) → tx result JSON

	metaHeightKey   = "m:height"   // 8B BE latest height
	metaLastHashKey = "m:lasthash" // latest block hash (hex)
)

// ChainStore BadgerDB committed store
// 블록 본문, 트랜잭션 위치 색인, 합성 결과, 최신 높이 메타를 담음
type ChainStore struct {
	db *badger.DB
}

// OpenChainStore opens (or creates) the store under dir
func OpenChainStore(dir string) (*ChainStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chain store dir: %w", err)
	}
	opts := badger.DefaultOptions(dir)
	opts.SyncWrites = true // 데이터 내구성 보장
	opts.CompactL0OnClose = true
	opts.Logger = nil // 로그 비활성화

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open chain store: %w", err)
	}
	return &ChainStore{db: db}, nil
}

// Close closes the underlying BadgerDB
func (s *ChainStore) Close() error {
	return s.db.Close()
}

func blockKey(blockHash string) []byte { return []byte(blockPrefix + blockHash) }
func txLocKey(txHash string) []byte    { return []byte(txLocPrefix + txHash) }
func resultKey(txHash string) []byte   { return []byte(resultPrefix + txHash) }

func encodeTxLoc(height int64, txIndex int) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[0:8], uint64(height))
	binary.BigEndian.PutUint32(buf[8:12], uint32(txIndex))
	return buf
}

func decodeTxLoc(v []byte) (int64, int, error) {
	if len(v) != 12 {
		return 0, 0, fmt.Errorf("invalid tx location length: %d", len(v))
	}
	return int64(binary.BigEndian.Uint64(v[0:8])), int(binary.BigEndian.Uint32(v[8:12])), nil
}

// CommitBlock writes a block, its tx locations, and its results in one transaction
// 한 블록 = 한 번의 db.Update, 중간 상태는 절대 보이지 않음
func (s *ChainStore) CommitBlock(blk *domain.Block, txHashes []string, results []*domain.TxResult) error {
	blockJSON, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("failed to marshal block %d: %w", blk.Height, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(blk.BlockHash), blockJSON); err != nil {
			return err
		}
		for i, txHash := range txHashes {
			if err := txn.Set(txLocKey(txHash), encodeTxLoc(blk.Height, i)); err != nil {
				return err
			}
			resultJSON, err := json.Marshal(results[i])
			if err != nil {
				return fmt.Errorf("failed to marshal result for %s: %w", txHash, err)
			}
			if err := txn.Set(resultKey(txHash), resultJSON); err != nil {
				return err
			}
		}

		heightBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(heightBuf, uint64(blk.Height))
		if err := txn.Set([]byte(metaHeightKey), heightBuf); err != nil {
			return err
		}
		return txn.Set([]byte(metaLastHashKey), []byte(blk.BlockHash))
	})
}

// HasTransaction reports whether txHash is part of a committed block
func (s *ChainStore) HasTransaction(txHash string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(txLocKey(txHash))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check committed transaction %s: %w", txHash, err)
	}
	return true, nil
}

// GetBlock loads a block by its hash
func (s *ChainStore) GetBlock(blockHash string) (*domain.Block, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(blockHash))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read block %s: %w", blockHash, err)
	}

	var blk domain.Block
	if err := json.Unmarshal(raw, &blk); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal block %s: %w", blockHash, err)
	}
	return &blk, true, nil
}

// GetTxLocation resolves a committed tx hash to (block height, tx index)
func (s *ChainStore) GetTxLocation(txHash string) (int64, int, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(txLocKey(txHash))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to read tx location %s: %w", txHash, err)
	}

	height, txIndex, err := decodeTxLoc(raw)
	if err != nil {
		return 0, 0, false, err
	}
	return height, txIndex, true, nil
}

// GetResult loads the synthetic invoke result for a committed tx hash
func (s *ChainStore) GetResult(txHash string) (map[string]any, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(resultKey(txHash))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read result %s: %w", txHash, err)
	}

	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal result %s: %w", txHash, err)
	}
	return result, true, nil
}

// LatestHeight returns the height of the newest committed block
// 제네시스조차 없으면 found=false
func (s *ChainStore) LatestHeight() (int64, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaHeightKey))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read latest height: %w", err)
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("invalid latest height length: %d", len(raw))
	}
	return int64(binary.BigEndian.Uint64(raw)), true, nil
}

// LastBlockHash returns the hash of the newest committed block
func (s *ChainStore) LastBlockHash() (string, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaLastHashKey))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read last block hash: %w", err)
	}
	return string(raw), true, nil
}

// IsEmpty reports whether the store has no committed block yet
func (s *ChainStore) IsEmpty() (bool, error) {
	_, found, err := s.LatestHeight()
	if err != nil {
		return false, err
	}
	return !found, nil
}
