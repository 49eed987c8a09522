package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	color "github.com/TwinProduction/go-color"

	chapi "github.com/blocklite-dev/blocklite/internal/channel/api"
	chapp "github.com/blocklite-dev/blocklite/internal/channel/app"
	chdomain "github.com/blocklite-dev/blocklite/internal/channel/domain"
	chinfra "github.com/blocklite-dev/blocklite/internal/channel/infra"
	ledgerapi "github.com/blocklite-dev/blocklite/internal/ledger/api"
	ledgerapp "github.com/blocklite-dev/blocklite/internal/ledger/app"
	"github.com/blocklite-dev/blocklite/internal/nodecfg"
	"github.com/blocklite-dev/blocklite/server"
	"github.com/blocklite-dev/blocklite/shared/dto"
	"github.com/blocklite-dev/blocklite/shared/kafka"
)

func main() {
	configPath := flag.String("config", "", "노드 설정 YAML 경로 (기본: configs/blocklite.yaml)")
	flag.Parse()

	log.Println(color.Ize(color.Green, "🚀 blocklite node starting"))

	// 설정 확정: 기본값 → YAML → 환경변수
	cfg := nodecfg.LoadFromPath(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid node config: %v", err)
	}
	log.Printf("📡 mode=%s brokers=%v dataDir=%s", cfg.Mode, cfg.Brokers, cfg.DataDir)

	// 채널 토픽 준비 (브로커 대기 포함, 실패 시 패닉)
	kafka.PrepareChannelTopics(cfg.Brokers, cfg.RequestTopic, cfg.ReplyTopic)

	// 원장을 먼저 열어야 백로그 복원이 커밋 검사를 쓸 수 있음
	var (
		manager *ledgerapp.BlockManager
		err     error
	)
	if cfg.Mode.IsTest() {
		manager, err = ledgerapp.NewTestingBlockManager(cfg.ResolvedDataDir(), nil)
	} else {
		manager, err = ledgerapp.NewProductionBlockManager(ledgerapp.Config{
			StoreDir:         cfg.ChainDir(),
			IndexPath:        cfg.HeightIndexPath(),
			Genesis:          cfg.Genesis,
			ProduceInterval:  cfg.ProduceInterval,
			AllowEmptyBlocks: cfg.AllowEmptyBlocks,
		}, nil)
	}
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}

	queue, err := chdomain.LoadTxQueue(cfg.BacklogPath(), manager.HasCommitted)
	if err != nil {
		log.Fatalf("Failed to restore tx backlog: %v", err)
	}
	manager.BindQueue(queue)

	dispatcher := chapp.NewDispatcher(queue, manager)

	// 카프카 요청 소비 + 응답 발행
	consumer := kafka.NewKafkaConsumer[dto.RequestEnvelope](cfg.Brokers, cfg.RequestTopic, cfg.GroupID)
	replier := kafka.NewKafkaReplyProducer(cfg.Brokers)

	svc := chinfra.NewChannelService(dispatcher, consumer, replier, chinfra.ServiceConfig{
		DefaultReplyTopic: cfg.ReplyTopic,
		Workers:           cfg.Workers,
	}, func() {
		// 요청 큐 연결이 끊기면 원장도 같이 내림 (재연결 없음)
		if err := manager.Close(); err != nil {
			log.Printf("❌ Ledger close after connection loss failed: %v", err)
		}
	})

	manager.StartProducing()
	svc.Start()

	// 운영 API 서버
	srv := server.NewServer(cfg.HTTPAddr)
	srv.SetupBasicRoutes()
	if err := srv.RegisterModule(chapi.NewChannelAPIHandler(dispatcher, svc)); err != nil {
		log.Fatalf("Failed to register channel module: %v", err)
	}
	if err := srv.RegisterModule(ledgerapi.NewLedgerAPIHandler(manager)); err != nil {
		log.Fatalf("Failed to register ledger module: %v", err)
	}

	go func() {
		log.Printf("🚀 Node API listening on %s", cfg.HTTPAddr)
		log.Printf("🔌 API Health: http://localhost%s/api/health", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	// 우아한 종료를 위한 신호 처리
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down node...")

	svc.Stop()
	if err := manager.Close(); err != nil {
		log.Printf("⚠️ Ledger close: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Node exited gracefully")
}
