// Package app: 모의 트랜잭션 피더
// 프로브가 요청 토픽에 태울 제출 본문을 정해진 속도로 채널에 흘림
package app

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blocklite-dev/blocklite/shared/txfeeder/domain"
)

// TxFeeder 속도 제한 제출 본문 생성기
type TxFeeder struct {
	config   *domain.GeneratorConfig
	accounts []string

	payloadCh chan map[string]any

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	generated int64
}

// NewTxFeeder 피더 생성. config가 nil이면 기본값 사용
func NewTxFeeder(config *domain.GeneratorConfig) *TxFeeder {
	if config == nil {
		config = domain.NewDefaultGeneratorConfig()
	}
	if config.TransactionsPerSecond <= 0 {
		config.TransactionsPerSecond = 50
	}
	if config.AccountPool <= 0 {
		config.AccountPool = 16
	}

	accounts := make([]string, config.AccountPool)
	for i := range accounts {
		accounts[i] = domain.RandomAddress()
	}
	return &TxFeeder{
		config:    config,
		accounts:  accounts,
		payloadCh: make(chan map[string]any, 1024),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start 생성 루프 기동
func (f *TxFeeder) Start(ctx context.Context) {
	go f.feed(ctx)
}

// Stop 생성 중지 (여러 번 호출해도 안전)
func (f *TxFeeder) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopCh)
	})
	<-f.doneCh
}

// Payloads 생성된 제출 본문 수신 채널 (생성이 끝나면 닫힘)
func (f *TxFeeder) Payloads() <-chan map[string]any {
	return f.payloadCh
}

// GeneratedCount 지금까지 생성한 수
func (f *TxFeeder) GeneratedCount() int64 {
	return atomic.LoadInt64(&f.generated)
}

// feed 메인 생성 루프
func (f *TxFeeder) feed(ctx context.Context) {
	defer close(f.doneCh)
	defer close(f.payloadCh)
	log.Printf("🚀 TxFeeder: %d payloads at %d tx/sec", f.config.TotalTransactions, f.config.TransactionsPerSecond)

	interval := time.Second / time.Duration(f.config.TransactionsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			n := atomic.LoadInt64(&f.generated)
			if n >= int64(f.config.TotalTransactions) {
				return
			}
			from := f.accounts[int(n)%len(f.accounts)]
			to := f.accounts[int(n+1)%len(f.accounts)]
			payload := domain.NewSubmitPayload(from, to, n)

			select {
			case f.payloadCh <- payload:
				atomic.AddInt64(&f.generated, 1)
			case <-ctx.Done():
				return
			case <-f.stopCh:
				return
			}
		}
	}
}
