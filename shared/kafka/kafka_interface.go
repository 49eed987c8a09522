package kafka

import (
	"context"
)

// Producer Kafka 메시지 발행을 위한 제너릭 인터페이스
type Producer[T any] interface {
	PublishMessage(ctx context.Context, key []byte, value T) error
	Close() error
}

// Consumer Kafka 메시지 수신을 위한 제너릭 인터페이스
type Consumer[T any] interface {
	ReadMessage(ctx context.Context) ([]byte, T, error) // key, value, error
	Close() error
}

// Replier 응답 발행을 위한 인터페이스
// 요청마다 응답 토픽이 달라질 수 있어 토픽을 메시지 단위로 받음
type Replier interface {
	PublishTo(ctx context.Context, topic string, key []byte, value any) error
	Close() error
}
