package infra

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
)

// ===== 파일 포맷 상수 =====

const (
	idxMagic              = "BLKIDXV1" // 8 bytes
	idxHeaderSize         = 64
	idxEntrySize          = 32 // SHA3-256 블록 해시
	idxVersion     uint32 = 1
	idxDefaultCap  uint64 = 1 << 16
)

// 헤더 레이아웃 (binary.LittleEndian):
// [0:8]   MAGIC ("BLKIDXV1")
// [8:12]  VERSION (u32)
// [12:16] ENTRY_SIZE (u32) == 32
// [16:24] SIZE (u64)      : 기록된 엔트리 수 == 최신 높이 + 1
// [24:32] CAPACITY (u64)  : 현재 파일 수용 엔트리 수
// [32:64] RESERVED

// HeightIndex 높이→블록해시 mmap 고정폭 테이블
// 높이 h의 해시는 h번째 엔트리에 있음. 추가는 반드시 순차적임
type HeightIndex struct {
	mu   sync.RWMutex
	file *os.File
	m    mmap.MMap
	path string
}

// OpenHeightIndex 인덱스 파일을 열거나 새로 만듦
func OpenHeightIndex(path string) (*HeightIndex, error) {
	return OpenHeightIndexWithCapacity(path, idxDefaultCap)
}

// OpenHeightIndexWithCapacity 초기 용량을 지정해서 엶 (기존 파일이면 무시됨)
func OpenHeightIndexWithCapacity(path string, initialCapacity uint64) (*HeightIndex, error) {
	if initialCapacity == 0 {
		initialCapacity = idxDefaultCap
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create height index dir: %w", err)
	}

	newFile := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		newFile = true
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open height index: %w", err)
	}

	if newFile {
		if err := f.Truncate(int64(idxHeaderSize + initialCapacity*idxEntrySize)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to size height index: %w", err)
		}
	}

	mm, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to mmap height index: %w", err)
	}

	idx := &HeightIndex{file: f, m: mm, path: path}
	if newFile {
		if err := idx.writeFreshHeader(initialCapacity); err != nil {
			_ = idx.Close()
			return nil, err
		}
	} else {
		if err := idx.checkHeader(); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}
	return idx, nil
}

// Close flush 후 unmap, 파일 닫기
func (x *HeightIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var err1, err2, err3 error
	if x.m != nil {
		err1 = x.m.Flush()
		err2 = x.m.Unmap()
		x.m = nil
	}
	if x.file != nil {
		err3 = x.file.Close()
		x.file = nil
	}
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return err3
}

// ===== 헤더 I/O =====

func (x *HeightIndex) writeFreshHeader(capacity uint64) error {
	h := x.m[:idxHeaderSize]
	for i := range h {
		h[i] = 0
	}
	copy(h[0:8], []byte(idxMagic))
	binary.LittleEndian.PutUint32(h[8:12], idxVersion)
	binary.LittleEndian.PutUint32(h[12:16], idxEntrySize)
	binary.LittleEndian.PutUint64(h[16:24], 0)
	binary.LittleEndian.PutUint64(h[24:32], capacity)
	return x.m.Flush()
}

func (x *HeightIndex) checkHeader() error {
	h := x.m[:idxHeaderSize]
	if string(h[0:8]) != idxMagic {
		return fmt.Errorf("invalid height index magic")
	}
	if binary.LittleEndian.Uint32(h[8:12]) != idxVersion {
		return fmt.Errorf("invalid height index version")
	}
	if binary.LittleEndian.Uint32(h[12:16]) != idxEntrySize {
		return fmt.Errorf("invalid height index entry size")
	}
	if binary.LittleEndian.Uint64(h[24:32]) == 0 {
		return fmt.Errorf("zero height index capacity")
	}
	return nil
}

func (x *HeightIndex) headerSizeVal() uint64 {
	return binary.LittleEndian.Uint64(x.m[16:24])
}

func (x *HeightIndex) headerCapacityVal() uint64 {
	return binary.LittleEndian.Uint64(x.m[24:32])
}

func (x *HeightIndex) headerSetSize(newSize uint64) error {
	binary.LittleEndian.PutUint64(x.m[16:24], newSize)
	return x.m.Flush()
}

func (x *HeightIndex) headerSetCapacity(newCap uint64) error {
	binary.LittleEndian.PutUint64(x.m[24:32], newCap)
	return x.m.Flush()
}

func offForHeight(height int64) int64 {
	return int64(idxHeaderSize) + height*idxEntrySize
}

// ensureCapacity 필요 엔트리를 수용하도록 파일 확장 + remap (2배씩)
func (x *HeightIndex) ensureCapacity(need uint64) error {
	curCap := x.headerCapacityVal()
	if need <= curCap {
		return nil
	}
	newCap := curCap * 2
	if newCap < need {
		newCap = need
	}
	newSizeBytes := int64(idxHeaderSize + newCap*idxEntrySize)

	// Unmap → Truncate → Remap → header 갱신
	if err := x.m.Unmap(); err != nil {
		return err
	}
	if err := x.file.Truncate(newSizeBytes); err != nil {
		return err
	}
	mm, err := mmap.Map(x.file, mmap.RDWR, 0)
	if err != nil {
		return err
	}
	x.m = mm
	return x.headerSetCapacity(newCap)
}

// ===== 퍼블릭 API =====

// Append 높이 height의 블록 해시를 기록. 높이는 반드시 현재 크기와 같아야 함
func (x *HeightIndex) Append(height int64, blockHash string) error {
	raw, err := hex.DecodeString(blockHash)
	if err != nil || len(raw) != idxEntrySize {
		return fmt.Errorf("invalid block hash for height index: %q", blockHash)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	size := x.headerSizeVal()
	if uint64(height) != size {
		return fmt.Errorf("height index append out of order: height=%d size=%d", height, size)
	}
	if err := x.ensureCapacity(size + 1); err != nil {
		return fmt.Errorf("failed to grow height index: %w", err)
	}

	// 본문 먼저, 그 다음 SIZE 증가 (가시성 커밋)
	base := offForHeight(height)
	copy(x.m[base:base+idxEntrySize], raw)
	if err := x.m.Flush(); err != nil {
		return fmt.Errorf("failed to flush height index entry: %w", err)
	}
	return x.headerSetSize(size + 1)
}

// HashAt 높이 height의 블록 해시 조회
func (x *HeightIndex) HashAt(height int64) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if height < 0 || uint64(height) >= x.headerSizeVal() {
		return "", false
	}
	base := offForHeight(height)
	return hex.EncodeToString(x.m[base : base+idxEntrySize]), true
}

// Size 기록된 엔트리 수 (최신 높이 + 1)
func (x *HeightIndex) Size() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.headerSizeVal()
}

// Repair 스토어가 확인해준 최신 높이에 맞춰 크기를 내림
// 찢어진 쓰기로 SIZE가 앞서 있으면 그 구간은 버리고 재색인에 맡김
// 뒤처진 경우는 건드리지 않음 (호출자가 체인을 거슬러 올라가며 채움)
func (x *HeightIndex) Repair(latestHeight int64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	expected := uint64(latestHeight + 1)
	if latestHeight < 0 {
		expected = 0
	}
	size := x.headerSizeVal()
	if size > expected {
		log.Printf("⚠️ Height index ahead of store (size=%d, expected=%d) - clamping", size, expected)
		_ = x.headerSetSize(expected)
	}
}
