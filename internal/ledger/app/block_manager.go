// Package app: 원장 블록 매니저
// 커밋 저장소와 높이 인덱스를 묶고, 타이머로 대기열을 블록으로 내림
package app

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	chdomain "github.com/blocklite-dev/blocklite/internal/channel/domain"
	"github.com/blocklite-dev/blocklite/internal/ledger/domain"
	"github.com/blocklite-dev/blocklite/internal/ledger/infra"
	"github.com/blocklite-dev/blocklite/shared/computation"
	"github.com/blocklite-dev/blocklite/shared/monitoring/meter/cntmtr"
	"github.com/blocklite-dev/blocklite/shared/txhash"
)

// PendingSource 블록 생산이 내려받는 대기 트랜잭션 공급원
// Dependency Inversion: 채널 쪽 TxQueue가 이걸 만족함
type PendingSource interface {
	Len() int
	DrainWith(commit func(batch []chdomain.PendingTransaction) error) (int, error)
}

// Config 블록 매니저 구성
type Config struct {
	StoreDir         string
	IndexPath        string
	Genesis          domain.GenesisConfig
	ProduceInterval  time.Duration
	AllowEmptyBlocks bool
}

// BlockManagerStats 운영 API가 내보내는 스냅샷
type BlockManagerStats struct {
	Height         int64 `json:"height"`
	ProducedBlocks int64 `json:"produced_blocks"`
	CommittedTxs   int64 `json:"committed_txs"`
	PendingTxs     int   `json:"pending_txs"`
}

// BlockManager 커밋 상태의 주인
// 채널 디스패처가 쓰는 조회 능력 전부와 블록 생산 루프를 가짐
type BlockManager struct {
	store *infra.ChainStore
	index *infra.HeightIndex
	queue PendingSource

	peerID           string
	produceInterval  time.Duration
	allowEmptyBlocks bool

	producerTicker *time.Ticker
	producerStopCh chan struct{}
	producing      int32
	closeOnce      sync.Once

	producedBlocks *cntmtr.IntCountMeter
	committedTxs   *cntmtr.IntCountMeter
}

// NewTestingBlockManager 테스트 환경용: 디렉토리를 비우고 시작하고,
// 빠른 주기로 빈 블록도 생산함
func NewTestingBlockManager(dataDir string, queue PendingSource) (*BlockManager, error) {
	if err := computation.SetCleanedDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to clean testing data dir: %w", err)
	}
	return newBlockManager(Config{
		StoreDir:         filepath.Join(dataDir, "chain"),
		IndexPath:        filepath.Join(dataDir, "height.idx"),
		Genesis:          domain.DefaultGenesisConfig(),
		ProduceInterval:  100 * time.Millisecond,
		AllowEmptyBlocks: true,
	}, queue)
}

// NewProductionBlockManager 실제 데이터 디렉토리로 엶. 기존 체인은 그대로 이어감
func NewProductionBlockManager(cfg Config, queue PendingSource) (*BlockManager, error) {
	if cfg.ProduceInterval <= 0 {
		cfg.ProduceInterval = time.Second
	}
	if cfg.Genesis.PeerID == "" {
		cfg.Genesis = domain.DefaultGenesisConfig()
	}
	return newBlockManager(cfg, queue)
}

func newBlockManager(cfg Config, queue PendingSource) (*BlockManager, error) {
	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis config: %w", err)
	}

	store, err := infra.OpenChainStore(cfg.StoreDir)
	if err != nil {
		return nil, err
	}
	index, err := infra.OpenHeightIndex(cfg.IndexPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	m := &BlockManager{
		store:            store,
		index:            index,
		queue:            queue,
		peerID:           cfg.Genesis.PeerID,
		produceInterval:  cfg.ProduceInterval,
		allowEmptyBlocks: cfg.AllowEmptyBlocks,
		producedBlocks:   cntmtr.NewIntCountMeter(),
		committedTxs:     cntmtr.NewIntCountMeter(),
	}

	empty, err := store.IsEmpty()
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	if empty {
		if err := m.writeGenesis(cfg.Genesis); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("failed to write genesis block: %w", err)
		}
	} else {
		if err := m.recoverIndex(); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("failed to recover height index: %w", err)
		}
	}
	return m, nil
}

// writeGenesis 제네시스 구성을 단일 트랜잭션 블록(높이 0)으로 커밋
func (m *BlockManager) writeGenesis(g domain.GenesisConfig) error {
	gtx, err := g.GenesisTransaction()
	if err != nil {
		return err
	}
	gHash := txhash.Sum(gtx)

	blk := domain.NewBlock(0, "", []map[string]any{gtx}, []string{gHash}, m.peerID, domain.NowTimestampMicro())
	result := domain.NewTxResult(txhash.Prefixed(gHash), blk, 0, gtx)

	if err := m.store.CommitBlock(blk, []string{gHash}, []*domain.TxResult{result}); err != nil {
		return err
	}
	if err := m.index.Append(0, blk.BlockHash); err != nil {
		return err
	}
	log.Printf("📦 Genesis block written: hash=%s accounts=%d", blk.BlockHash, len(g.Accounts))
	return nil
}

// recoverIndex 스토어 기준으로 인덱스를 맞춤
// 앞서 있으면 클램프, 뒤처져 있으면 prev 해시를 따라 올라가며 재색인
func (m *BlockManager) recoverIndex() error {
	latest, found, err := m.store.LatestHeight()
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	m.index.Repair(latest)

	if m.index.Size() >= uint64(latest+1) {
		return nil
	}

	// 최신 블록부터 인덱스가 아는 높이까지 체인을 거슬러 모음
	lastHash, _, err := m.store.LastBlockHash()
	if err != nil {
		return err
	}
	var missing []string
	cur := lastHash
	for h := latest; h >= int64(m.index.Size()); h-- {
		blk, ok, err := m.store.GetBlock(cur)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("chain broken while re-indexing: block %s missing at height %d", cur, h)
		}
		missing = append(missing, cur)
		cur = blk.PrevBlockHash
	}

	// 낮은 높이부터 다시 채움
	for i := len(missing) - 1; i >= 0; i-- {
		h := latest - int64(i)
		if err := m.index.Append(h, missing[i]); err != nil {
			return err
		}
	}
	log.Printf("⚠️ Height index rebuilt: %d entries re-indexed up to height %d", len(missing), latest)
	return nil
}

// ===== Chain 조회 능력 (채널 디스패처가 사용) =====

// HasCommitted 해시가 커밋된 블록에 들었는지 확인
// 읽기 에러는 미커밋으로 취급하고 크게 남김 (입장 실패보다 중복 위험이 낮음)
func (m *BlockManager) HasCommitted(hash string) bool {
	has, err := m.store.HasTransaction(hash)
	if err != nil {
		log.Printf("❌ Committed check failed for %s: %v", hash, err)
		return false
	}
	return has
}

// GetTransaction 커밋된 트랜잭션 본문 조회
func (m *BlockManager) GetTransaction(hash string) (map[string]any, bool) {
	height, txIndex, found, err := m.store.GetTxLocation(hash)
	if err != nil {
		log.Printf("❌ Tx location lookup failed for %s: %v", hash, err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	blockHash, ok := m.index.HashAt(height)
	if !ok {
		log.Printf("❌ Height index missing entry for committed height %d", height)
		return nil, false
	}
	blk, ok, err := m.store.GetBlock(blockHash)
	if err != nil || !ok {
		log.Printf("❌ Block lookup failed for height %d: %v", height, err)
		return nil, false
	}
	if txIndex < 0 || txIndex >= len(blk.Transactions) {
		log.Printf("❌ Tx index %d out of range in block %d", txIndex, height)
		return nil, false
	}
	return blk.Transactions[txIndex], true
}

// GetTxResult 합성 인보크 결과 조회
func (m *BlockManager) GetTxResult(hash string) (map[string]any, bool) {
	result, found, err := m.store.GetResult(hash)
	if err != nil {
		log.Printf("❌ Result lookup failed for %s: %v", hash, err)
		return nil, false
	}
	return result, found
}

// GetLastBlock 최신 블록 조회
func (m *BlockManager) GetLastBlock() (map[string]any, bool) {
	lastHash, found, err := m.store.LastBlockHash()
	if err != nil {
		log.Printf("❌ Last block hash lookup failed: %v", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return m.GetBlockByHash(lastHash)
}

// GetBlockByHash 해시로 블록 조회
func (m *BlockManager) GetBlockByHash(hash string) (map[string]any, bool) {
	blk, found, err := m.store.GetBlock(hash)
	if err != nil {
		log.Printf("❌ Block lookup failed for %s: %v", hash, err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	blockMap, err := blk.ToMap()
	if err != nil {
		log.Printf("❌ Block %s unmappable: %v", hash, err)
		return nil, false
	}
	return blockMap, true
}

// GetBlockByHeight 높이로 블록 조회
func (m *BlockManager) GetBlockByHeight(height int64) (map[string]any, bool) {
	blockHash, ok := m.index.HashAt(height)
	if !ok {
		return nil, false
	}
	return m.GetBlockByHash(blockHash)
}

// BindQueue 대기열 공급원을 나중에 붙임
// 백로그 복원이 원장의 커밋 검사를 필요로 해서 원장을 먼저 열 때 씀
// StartProducing 전, 단일 고루틴에서만 호출해야 함
func (m *BlockManager) BindQueue(queue PendingSource) {
	m.queue = queue
}

// Height 현재 체인 높이
func (m *BlockManager) Height() int64 {
	latest, found, err := m.store.LatestHeight()
	if err != nil || !found {
		return -1
	}
	return latest
}

// Stats 운영 API용 스냅샷
func (m *BlockManager) Stats() BlockManagerStats {
	pending := 0
	if m.queue != nil {
		pending = m.queue.Len()
	}
	return BlockManagerStats{
		Height:         m.Height(),
		ProducedBlocks: m.producedBlocks.TotalSum(),
		CommittedTxs:   m.committedTxs.TotalSum(),
		PendingTxs:     pending,
	}
}

// ===== 블록 생산 =====

// StartProducing 생산 루프 시작
func (m *BlockManager) StartProducing() {
	if m.queue == nil {
		log.Printf("⚠️ BlockManager has no pending source - producer not started")
		return
	}
	if !atomic.CompareAndSwapInt32(&m.producing, 0, 1) {
		return
	}
	m.producerTicker = time.NewTicker(m.produceInterval)
	m.producerStopCh = make(chan struct{})

	go func() {
		for {
			select {
			case <-m.producerTicker.C:
				if _, err := m.ProduceNow(); err != nil {
					log.Printf("❌ Block production failed: %v", err)
				}
			case <-m.producerStopCh:
				return
			}
		}
	}()

	log.Printf("🚀 Block producer started (every %v, empty blocks: %v)", m.produceInterval, m.allowEmptyBlocks)
}

// ProduceNow 대기열을 즉시 한 블록으로 내림
// 빈 대기열은 allowEmptyBlocks가 아니면 조용히 건너뜀
func (m *BlockManager) ProduceNow() (int, error) {
	if m.queue == nil {
		return 0, fmt.Errorf("no pending source bound")
	}
	if m.queue.Len() == 0 && !m.allowEmptyBlocks {
		return 0, nil
	}
	return m.queue.DrainWith(m.commitBatch)
}

// commitBatch 드레인된 배치를 다음 높이의 블록으로 커밋함
// TxQueue 락 아래에서 호출되므로 여기서 끝나야 해시 분할 불변식이 지켜짐
func (m *BlockManager) commitBatch(batch []chdomain.PendingTransaction) error {
	latest, found, err := m.store.LatestHeight()
	if err != nil {
		return err
	}
	var height int64
	var prevHash string
	if found {
		height = latest + 1
		prevHash, _, err = m.store.LastBlockHash()
		if err != nil {
			return err
		}
	}

	txs := make([]map[string]any, len(batch))
	hashes := make([]string, len(batch))
	for i, ptx := range batch {
		txs[i] = ptx.Payload
		hashes[i] = ptx.Hash
	}

	blk := domain.NewBlock(height, prevHash, txs, hashes, m.peerID, domain.NowTimestampMicro())
	results := make([]*domain.TxResult, len(batch))
	for i := range batch {
		results[i] = domain.NewTxResult(txhash.Prefixed(hashes[i]), blk, i, txs[i])
	}

	if err := m.store.CommitBlock(blk, hashes, results); err != nil {
		return err
	}
	if err := m.index.Append(height, blk.BlockHash); err != nil {
		// 블록 자체는 커밋됨. 인덱스는 다음 기동 때 recoverIndex가 다시 맞춤
		log.Printf("⚠️ Height index append failed at %d (will re-index on reopen): %v", height, err)
	}

	m.producedBlocks.Increase()
	m.committedTxs.Increases(uint(len(batch)))
	log.Printf("📦 Block %d produced: hash=%s txs=%d", height, blk.BlockHash, len(batch))
	return nil
}

// StopProducing 생산 루프 중지 (멱등)
func (m *BlockManager) StopProducing() {
	if !atomic.CompareAndSwapInt32(&m.producing, 1, 0) {
		return
	}
	close(m.producerStopCh)
	m.producerTicker.Stop()
	log.Printf("🛑 Block producer stopped")
}

// Close 생산 중지 후 인덱스와 스토어를 닫음 (멱등)
func (m *BlockManager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.StopProducing()
		if idxErr := m.index.Close(); idxErr != nil {
			err = idxErr
		}
		if storeErr := m.store.Close(); storeErr != nil && err == nil {
			err = storeErr
		}
		log.Printf("🛑 BlockManager closed")
	})
	return err
}
