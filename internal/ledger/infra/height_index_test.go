package infra_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blocklite-dev/blocklite/internal/ledger/infra"
)

// fakeHash는 64자리 16진수 해시를 만들어줌
func fakeHash(seed int) string {
	return fmt.Sprintf("%064x", seed)
}

func TestHeightIndexAppendAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.idx")
	idx, err := infra.OpenHeightIndex(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer idx.Close()

	// 1. 순차 추가
	for h := int64(0); h < 3; h++ {
		if err := idx.Append(h, fakeHash(int(h)+1)); err != nil {
			t.Fatalf("append height %d failed: %v", h, err)
		}
	}
	if idx.Size() != 3 {
		t.Fatalf("expected size 3, got %d", idx.Size())
	}

	// 2. 조회
	for h := int64(0); h < 3; h++ {
		hash, ok := idx.HashAt(h)
		if !ok {
			t.Fatalf("expected hash at height %d", h)
		}
		if hash != fakeHash(int(h)+1) {
			t.Errorf("height %d: expected %s, got %s", h, fakeHash(int(h)+1), hash)
		}
	}
}

func TestHeightIndexRejectsOutOfOrderAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.idx")
	idx, err := infra.OpenHeightIndex(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer idx.Close()

	// 빈 인덱스에 높이 1부터 넣으면 안 됨
	if err := idx.Append(1, fakeHash(1)); err == nil {
		t.Error("expected out-of-order append to fail on empty index")
	}

	if err := idx.Append(0, fakeHash(1)); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	// 같은 높이 재기록도 거부
	if err := idx.Append(0, fakeHash(2)); err == nil {
		t.Error("expected duplicate height append to fail")
	}
}

func TestHeightIndexRejectsInvalidHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.idx")
	idx, err := infra.OpenHeightIndex(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer idx.Close()

	if err := idx.Append(0, "not-hex"); err == nil {
		t.Error("expected non-hex hash to be rejected")
	}
	if err := idx.Append(0, strings.Repeat("ab", 16)); err == nil {
		t.Error("expected short hash to be rejected")
	}
}

func TestHeightIndexLookupOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.idx")
	idx, err := infra.OpenHeightIndex(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer idx.Close()

	idx.Append(0, fakeHash(1))

	if _, ok := idx.HashAt(-1); ok {
		t.Error("expected negative height to miss")
	}
	if _, ok := idx.HashAt(1); ok {
		t.Error("expected height beyond size to miss")
	}
}

func TestHeightIndexGrowsBeyondInitialCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.idx")
	idx, err := infra.OpenHeightIndexWithCapacity(path, 2)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer idx.Close()

	// 초기 용량 2를 넘겨서 확장 경로를 태움
	for h := int64(0); h < 9; h++ {
		if err := idx.Append(h, fakeHash(int(h)+1)); err != nil {
			t.Fatalf("append height %d failed: %v", h, err)
		}
	}
	for h := int64(0); h < 9; h++ {
		hash, ok := idx.HashAt(h)
		if !ok || hash != fakeHash(int(h)+1) {
			t.Fatalf("height %d unreadable after growth: ok=%v hash=%s", h, ok, hash)
		}
	}
}

func TestHeightIndexSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.idx")

	idx, err := infra.OpenHeightIndex(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	idx.Append(0, fakeHash(7))
	idx.Append(1, fakeHash(8))
	if err := idx.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := infra.OpenHeightIndex(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if reopened.Size() != 2 {
		t.Fatalf("expected size 2 after reopen, got %d", reopened.Size())
	}
	hash, ok := reopened.HashAt(1)
	if !ok || hash != fakeHash(8) {
		t.Errorf("expected persisted hash at height 1, got ok=%v hash=%s", ok, hash)
	}
}

func TestHeightIndexRepairClampsAheadOfStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.idx")
	idx, err := infra.OpenHeightIndex(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer idx.Close()

	for h := int64(0); h < 3; h++ {
		idx.Append(h, fakeHash(int(h)+1))
	}

	// 스토어는 높이 1까지만 알고 있다고 가정 → 인덱스가 앞서 있음
	idx.Repair(1)
	if idx.Size() != 2 {
		t.Fatalf("expected size clamped to 2, got %d", idx.Size())
	}
	if _, ok := idx.HashAt(2); ok {
		t.Error("expected clamped entry to be unreadable")
	}

	// 뒤처진 인덱스는 그대로 둠
	idx.Repair(10)
	if idx.Size() != 2 {
		t.Errorf("expected size unchanged for behind index, got %d", idx.Size())
	}

	// 클램프 뒤 이어서 추가가 가능해야 함 (재색인 경로)
	if err := idx.Append(2, fakeHash(9)); err != nil {
		t.Fatalf("append after repair failed: %v", err)
	}
}
