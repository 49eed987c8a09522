package kafka

import (
	"log"
	"os"
	"strings"
	"sync"
)

// 채널 서비스가 쓰는 카프카 토픽 상수
const (
	DefaultKafkaPort  = "localhost:9092"
	RequestTopic      = "blocklite-channel-requests" // 채널 요청 토픽
	DefaultReplyTopic = "blocklite-channel-replies"  // 응답 토픽 기본값
	ChannelGroupID    = "blocklite-channel"          // 채널 컨슈머 그룹
)

var (
	defaultBrokers     []string
	defaultBrokersOnce sync.Once
)

// DefaultBrokers 기본 브로커 목록 반환
// BLOCKLITE_KAFKA_BROKER 환경변수가 있으면 그 값을 우선함 (쉼표 구분)
func DefaultBrokers() []string {
	defaultBrokersOnce.Do(func() {
		if env := strings.TrimSpace(os.Getenv("BLOCKLITE_KAFKA_BROKER")); env != "" {
			for _, b := range strings.Split(env, ",") {
				if b = strings.TrimSpace(b); b != "" {
					defaultBrokers = append(defaultBrokers, b)
				}
			}
		}
		if len(defaultBrokers) == 0 {
			defaultBrokers = []string{DefaultKafkaPort}
		}
		log.Printf("[Kafka] Using brokers: %v", defaultBrokers)
	})
	return defaultBrokers
}
