// Package nodecfg: 노드 구성 로딩
// 기본값 → YAML 파일 병합 → 환경변수 오버라이드 순서로 확정함
package nodecfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blocklite-dev/blocklite/internal/ledger/domain"
	"github.com/blocklite-dev/blocklite/shared/computation"
	"github.com/blocklite-dev/blocklite/shared/kafka"
	"github.com/blocklite-dev/blocklite/shared/mode"
)

// Config 병합이 끝난 노드 런타임 구성
type Config struct {
	Mode             mode.ProcessingMode
	Brokers          []string
	RequestTopic     string
	ReplyTopic       string
	GroupID          string
	Workers          int
	DataDir          string
	ProduceInterval  time.Duration
	AllowEmptyBlocks bool
	HTTPAddr         string
	Genesis          domain.GenesisConfig
}

// FileRoot YAML 최상위 모양
type FileRoot struct {
	Node FileConfig `yaml:"node"`
}

// FileConfig YAML node 섹션
// bool은 "안 쓴 것"과 "false"를 구분해야 해서 포인터로 받음
// produceInterval은 "1s" 같은 문자열로 받아 Merge에서 해석함
type FileConfig struct {
	Mode             string                `yaml:"mode"`
	Brokers          []string              `yaml:"brokers"`
	RequestTopic     string                `yaml:"requestTopic"`
	ReplyTopic       string                `yaml:"replyTopic"`
	GroupID          string                `yaml:"groupId"`
	Workers          int                   `yaml:"workers"`
	DataDir          string                `yaml:"dataDir"`
	ProduceInterval  string                `yaml:"produceInterval"`
	AllowEmptyBlocks *bool                 `yaml:"allowEmptyBlocks"`
	HTTPAddr         string                `yaml:"httpAddr"`
	Genesis          *domain.GenesisConfig `yaml:"genesis"`
}

// Default 기본 구성
func Default() Config {
	return Config{
		Mode:             mode.TestingModeProcess,
		Brokers:          kafka.DefaultBrokers(),
		RequestTopic:     kafka.RequestTopic,
		ReplyTopic:       kafka.DefaultReplyTopic,
		GroupID:          kafka.ChannelGroupID,
		Workers:          4,
		DataDir:          "node_data",
		ProduceInterval:  time.Second,
		AllowEmptyBlocks: false,
		HTTPAddr:         ":8080",
		Genesis:          domain.DefaultGenesisConfig(),
	}
}

// LoadFromPath 구성 확정
// configPath가 비어 있으면 관례 경로 두 곳을 차례로 찾음
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/blocklite.yaml",
			"blocklite.yaml",
		)
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(computation.ResolveUnderRoot(candidate))
		if err != nil {
			continue
		}

		var parsed FileRoot
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}

		merged := cfg
		Merge(&merged, parsed.Node)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

// Merge 파일 값이 명시된 필드만 덮어씀
func Merge(dst *Config, src FileConfig) {
	if src.Mode != "" {
		if m, err := mode.Parse(src.Mode); err == nil {
			dst.Mode = m
		}
	}
	if len(src.Brokers) > 0 {
		dst.Brokers = src.Brokers
	}
	if src.RequestTopic != "" {
		dst.RequestTopic = src.RequestTopic
	}
	if src.ReplyTopic != "" {
		dst.ReplyTopic = src.ReplyTopic
	}
	if src.GroupID != "" {
		dst.GroupID = src.GroupID
	}
	if src.Workers != 0 {
		dst.Workers = src.Workers
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.ProduceInterval != "" {
		if d, err := time.ParseDuration(src.ProduceInterval); err == nil {
			dst.ProduceInterval = d
		}
	}
	if src.AllowEmptyBlocks != nil {
		dst.AllowEmptyBlocks = *src.AllowEmptyBlocks
	}
	if src.HTTPAddr != "" {
		dst.HTTPAddr = src.HTTPAddr
	}
	if src.Genesis != nil {
		dst.Genesis = *src.Genesis
	}
}

// ApplyEnvOverrides 환경변수가 파일보다 우선함
func ApplyEnvOverrides(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv("BLOCKLITE_KAFKA_BROKER")); raw != "" {
		parts := strings.Split(raw, ",")
		brokers := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				brokers = append(brokers, trimmed)
			}
		}
		if len(brokers) > 0 {
			cfg.Brokers = brokers
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BLOCKLITE_MODE")); raw != "" {
		if m, err := mode.Parse(raw); err == nil {
			cfg.Mode = m
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BLOCKLITE_HTTP_ADDR")); raw != "" {
		cfg.HTTPAddr = raw
	}

	if raw := strings.TrimSpace(os.Getenv("BLOCKLITE_ALLOW_EMPTY_BLOCKS")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.AllowEmptyBlocks = v
		}
	}
}

// Validate 기동 전 구성 검증
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("config: at least one kafka broker required")
	}
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("config: empty broker address")
		}
	}
	if c.RequestTopic == "" || c.ReplyTopic == "" {
		return fmt.Errorf("config: request and reply topics required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("config: consumer group id required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.ProduceInterval <= 0 {
		return fmt.Errorf("config: produce interval must be positive, got %v", c.ProduceInterval)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("config: http listen address required")
	}
	if err := c.Genesis.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// 데이터 디렉토리 아래 고정 배치. DataDir가 상대 경로면 모듈 루트 기준

// ResolvedDataDir 데이터 디렉토리 절대 경로
func (c Config) ResolvedDataDir() string {
	return computation.ResolveUnderRoot(c.DataDir)
}

// ChainDir 체인 스토어 (Badger) 경로
func (c Config) ChainDir() string {
	return filepath.Join(computation.ResolveUnderRoot(c.DataDir), "chain")
}

// HeightIndexPath 높이 인덱스 (mmap) 파일 경로
func (c Config) HeightIndexPath() string {
	return filepath.Join(computation.ResolveUnderRoot(c.DataDir), "height.idx")
}

// BacklogPath 대기열 백로그 (JSONL) 파일 경로
func (c Config) BacklogPath() string {
	return filepath.Join(computation.ResolveUnderRoot(c.DataDir), "pending.jsonl")
}
