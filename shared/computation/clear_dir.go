package computation

import (
	"fmt"
	"os"
	"path/filepath"
)

// SetCleanedDir 디렉토리를 비운 상태로 보장한다 (없으면 생성)
// 테스팅 모드 저장소 초기화에 사용
func SetCleanedDir(path string) error {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(path, 0o755)
		}
		return err
	}
	for _, entry := range dirEntries {
		entryPath := filepath.Join(path, entry.Name())
		if err := os.RemoveAll(entryPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entryPath, err)
		}
	}
	return nil
}
