package main

// 살아 있는 노드의 요청 토픽에 모의 제출을 흘리고 응답을 세는 프로브
// 노드가 먼저 떠 있어야 함: go run ./testcmd -count 20 -tps 20

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	chdomain "github.com/blocklite-dev/blocklite/internal/channel/domain"
	"github.com/blocklite-dev/blocklite/shared/dto"
	"github.com/blocklite-dev/blocklite/shared/kafka"
	txfapp "github.com/blocklite-dev/blocklite/shared/txfeeder/app"
	txfdomain "github.com/blocklite-dev/blocklite/shared/txfeeder/domain"
)

func main() {
	brokersFlag := flag.String("brokers", "", "카프카 브로커 (쉼표 구분, 기본: BLOCKLITE_KAFKA_BROKER 또는 localhost:9092)")
	count := flag.Int("count", 20, "보낼 제출 수")
	tps := flag.Int("tps", 20, "초당 전송 속도")
	flag.Parse()

	brokers := kafka.DefaultBrokers()
	if *brokersFlag != "" {
		brokers = strings.Split(*brokersFlag, ",")
	}

	// 프로브 전용 응답 토픽을 매 실행마다 새로 만듦
	replyTopic := fmt.Sprintf("blocklite-probe-replies-%d", time.Now().UnixNano())
	kafka.PrepareChannelTopics(brokers, kafka.RequestTopic, replyTopic)

	producer := kafka.NewKafkaProducer[dto.RequestEnvelope](brokers, kafka.RequestTopic)
	defer producer.Close()

	consumer := kafka.NewKafkaConsumer[dto.CreateTxResponse](brokers, replyTopic, fmt.Sprintf("probe-%d", time.Now().UnixNano()))
	defer consumer.Close()

	// 그룹 조인을 먼저 끝내 초기 응답 유실을 줄임
	warmupCtx, warmupCancel := context.WithTimeout(context.Background(), 3*time.Second)
	_, _, _ = consumer.ReadMessage(warmupCtx)
	warmupCancel()

	feeder := txfapp.NewTxFeeder(&txfdomain.GeneratorConfig{
		TotalTransactions:     *count,
		TransactionsPerSecond: *tps,
		AccountPool:           8,
	})
	feeder.Start(context.Background())

	sent := 0
	for payload := range feeder.Payloads() {
		params, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("❌ Failed to marshal payload: %v", err)
		}
		env := dto.RequestEnvelope{
			CorrelationID: fmt.Sprintf("probe-%d", sent),
			Method:        dto.MethodCreateTx,
			ReplyTopic:    replyTopic,
			Params:        params,
		}
		if err := producer.PublishMessage(context.Background(), []byte(env.CorrelationID), env); err != nil {
			log.Fatalf("❌ Failed to publish request: %v", err)
		}
		sent++
	}
	log.Printf("📡 %d submit requests published to %q", sent, kafka.RequestTopic)

	// 응답 수집 (최대 30초)
	codes := make(map[int]int)
	received := 0
	deadline := time.Now().Add(30 * time.Second)
	for received < sent && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, resp, err := consumer.ReadMessage(ctx)
		cancel()
		if err != nil {
			continue
		}
		codes[resp.Code]++
		received++
	}

	if received < sent {
		log.Printf("⚠️ Only %d/%d replies received before deadline", received, sent)
	}
	for code, n := range codes {
		log.Printf("   %s: %d", chdomain.CodeName(code), n)
	}
	log.Printf("✅ Probe done: sent=%d received=%d success=%d", sent, received, codes[chdomain.Success])
}
