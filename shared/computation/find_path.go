package computation

import (
	"os"
	"path/filepath"
)

// 고립환경 테스팅 시의 루트패스 전달
// 사용 시엔 FindTestingStorageRootPath+{테스트명}+{각 저장소}로 쓰면 됨
func FindTestingStorageRootPath() string {
	return filepath.Join(FindProjectRootPath(), "testing_environment")
}

func FindProductionStorageRootPath() string {
	return filepath.Join(FindProjectRootPath(), "production_storage")
}

// 프로젝트 루트 경로 리턴 (go.mod 위치 기준)
func FindProjectRootPath() string {
	cwd, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd { // 루트까지 왔는데 못 찾으면 중단
			break
		}
		cwd = parent
	}
	return ""
}

// ResolveUnderRoot 상대 경로를 프로젝트 루트 기준 절대 경로로 변환
// 이미 절대 경로면 그대로 반환
func ResolveUnderRoot(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	root := FindProjectRootPath()
	if root == "" {
		return path
	}
	return filepath.Join(root, path)
}
