package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GenesisAccount 제네시스에서 잔액을 미리 받는 계정
// Balance는 10진수 문자열 (최소 단위 기준)
type GenesisAccount struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
	Balance string `json:"balance" yaml:"balance"`
}

// GenesisConfig 제네시스 블록 구성
type GenesisConfig struct {
	PeerID   string           `yaml:"peer_id"`
	Accounts []GenesisAccount `yaml:"accounts"`
}

// DefaultGenesisConfig 로컬 테스트용 기본 구성
func DefaultGenesisConfig() GenesisConfig {
	return GenesisConfig{
		PeerID: "blocklite-peer-0",
		Accounts: []GenesisAccount{
			{Name: "god", Address: "hx5a05b58a25a1e5ea0f1d5715e1f655dffc1fb30a", Balance: "800460000000000000000000000"},
			{Name: "treasury", Address: "hx1000000000000000000000000000000000000000", Balance: "0"},
		},
	}
}

// Validate 구성 검증. 잔액은 10진수로 파싱 가능해야 함
func (g GenesisConfig) Validate() error {
	if g.PeerID == "" {
		return fmt.Errorf("genesis peer_id must not be empty")
	}
	for _, a := range g.Accounts {
		if a.Address == "" {
			return fmt.Errorf("genesis account %q has no address", a.Name)
		}
		if _, err := decimal.NewFromString(a.Balance); err != nil {
			return fmt.Errorf("failed to parse balance for genesis account %q: %w", a.Name, err)
		}
	}
	return nil
}

// TotalSupply 모든 계정 잔액의 합
func (g GenesisConfig) TotalSupply() (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range g.Accounts {
		d, err := decimal.NewFromString(a.Balance)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse balance for genesis account %q: %w", a.Name, err)
		}
		total = total.Add(d)
	}
	return total, nil
}

// GenesisTransaction 제네시스 블록의 단일 트랜잭션 본문
// 다른 트랜잭션과 똑같이 정규 JSON의 SHA3-256으로 해시됨
func (g GenesisConfig) GenesisTransaction() (map[string]any, error) {
	total, err := g.TotalSupply()
	if err != nil {
		return nil, err
	}
	accounts := make([]any, 0, len(g.Accounts))
	for _, a := range g.Accounts {
		accounts = append(accounts, map[string]any{
			"name":    a.Name,
			"address": a.Address,
			"balance": a.Balance,
		})
	}
	return map[string]any{
		"accounts":     accounts,
		"message":      "blocklite genesis block",
		"total_supply": total.String(),
	}, nil
}
