package infra_test

import (
	"testing"

	"github.com/blocklite-dev/blocklite/internal/ledger/domain"
	"github.com/blocklite-dev/blocklite/internal/ledger/infra"
	"github.com/blocklite-dev/blocklite/shared/txhash"
)

func openTestStore(t *testing.T) *infra.ChainStore {
	t.Helper()
	store, err := infra.OpenChainStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open chain store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func committedBlock(height int64, prevHash string) (*domain.Block, []string, []*domain.TxResult) {
	txs := []map[string]any{
		{"from": "hxaaaa", "to": "hxbbbb", "value": "0x1"},
		{"from": "hxcccc", "to": "hxdddd", "value": "0x2"},
	}
	hashes := []string{txhash.Sum(txs[0]), txhash.Sum(txs[1])}
	blk := domain.NewBlock(height, prevHash, txs, hashes, "peer-0", 1700000000000000+height)

	results := make([]*domain.TxResult, len(txs))
	for i := range txs {
		results[i] = domain.NewTxResult(txhash.Prefixed(hashes[i]), blk, i, txs[i])
	}
	return blk, hashes, results
}

func TestChainStoreStartsEmpty(t *testing.T) {
	store := openTestStore(t)

	empty, err := store.IsEmpty()
	if err != nil {
		t.Fatalf("is empty failed: %v", err)
	}
	if !empty {
		t.Error("expected fresh store to be empty")
	}

	if _, found, _ := store.LatestHeight(); found {
		t.Error("expected no latest height in empty store")
	}
	if _, found, _ := store.GetBlock("beef"); found {
		t.Error("expected block lookup to miss in empty store")
	}
	has, err := store.HasTransaction("abcd")
	if err != nil {
		t.Fatalf("has transaction failed: %v", err)
	}
	if has {
		t.Error("expected no committed transaction in empty store")
	}
}

func TestChainStoreCommitAndReadBack(t *testing.T) {
	store := openTestStore(t)
	blk, hashes, results := committedBlock(0, "")

	if err := store.CommitBlock(blk, hashes, results); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// 1. 블록 본문
	got, found, err := store.GetBlock(blk.BlockHash)
	if err != nil || !found {
		t.Fatalf("block lookup failed: found=%v err=%v", found, err)
	}
	if got.Height != 0 || got.BlockHash != blk.BlockHash {
		t.Errorf("unexpected block: %+v", got)
	}
	if len(got.Transactions) != 2 {
		t.Errorf("expected 2 transactions in block, got %d", len(got.Transactions))
	}

	// 2. 트랜잭션 위치 색인
	for i, h := range hashes {
		has, err := store.HasTransaction(h)
		if err != nil || !has {
			t.Fatalf("expected committed tx %s: has=%v err=%v", h, has, err)
		}
		height, txIndex, found, err := store.GetTxLocation(h)
		if err != nil || !found {
			t.Fatalf("tx location lookup failed: %v", err)
		}
		if height != 0 || txIndex != i {
			t.Errorf("tx %d: expected location (0,%d), got (%d,%d)", i, i, height, txIndex)
		}
	}

	// 3. 합성 결과
	result, found, err := store.GetResult(hashes[0])
	if err != nil || !found {
		t.Fatalf("result lookup failed: found=%v err=%v", found, err)
	}
	if result["status"] != domain.ResultStatusSuccess {
		t.Errorf("expected status %q, got %v", domain.ResultStatusSuccess, result["status"])
	}
	if result["block_hash"] != blk.BlockHash {
		t.Errorf("expected result bound to block %s, got %v", blk.BlockHash, result["block_hash"])
	}

	// 4. 메타
	height, found, err := store.LatestHeight()
	if err != nil || !found || height != 0 {
		t.Errorf("expected latest height 0, got %d (found=%v err=%v)", height, found, err)
	}
	lastHash, found, err := store.LastBlockHash()
	if err != nil || !found || lastHash != blk.BlockHash {
		t.Errorf("expected last hash %s, got %s", blk.BlockHash, lastHash)
	}
}

func TestChainStoreAdvancesMetaPerBlock(t *testing.T) {
	store := openTestStore(t)

	blk0, hashes0, results0 := committedBlock(0, "")
	if err := store.CommitBlock(blk0, hashes0, results0); err != nil {
		t.Fatalf("commit 0 failed: %v", err)
	}

	txs := []map[string]any{{"from": "hxeeee", "value": "0x3"}}
	h1 := []string{txhash.Sum(txs[0])}
	blk1 := domain.NewBlock(1, blk0.BlockHash, txs, h1, "peer-0", 1700000000000010)
	r1 := []*domain.TxResult{domain.NewTxResult(txhash.Prefixed(h1[0]), blk1, 0, txs[0])}
	if err := store.CommitBlock(blk1, h1, r1); err != nil {
		t.Fatalf("commit 1 failed: %v", err)
	}

	height, _, _ := store.LatestHeight()
	if height != 1 {
		t.Errorf("expected latest height 1, got %d", height)
	}
	lastHash, _, _ := store.LastBlockHash()
	if lastHash != blk1.BlockHash {
		t.Errorf("expected last hash to follow newest block")
	}

	// 이전 블록도 해시로 계속 조회 가능해야 함
	if _, found, _ := store.GetBlock(blk0.BlockHash); !found {
		t.Error("expected older block to stay readable")
	}
}

func TestChainStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := infra.OpenChainStore(dir)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	blk, hashes, results := committedBlock(0, "")
	if err := store.CommitBlock(blk, hashes, results); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := infra.OpenChainStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if _, found, _ := reopened.GetBlock(blk.BlockHash); !found {
		t.Error("expected committed block to survive reopen")
	}
	has, _ := reopened.HasTransaction(hashes[0])
	if !has {
		t.Error("expected committed tx index to survive reopen")
	}
}
