package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkaLib "github.com/segmentio/kafka-go"
)

// KafkaConsumer Consumer 제너릭 구현체
type KafkaConsumer[T any] struct {
	reader *kafkaLib.Reader
}

// NewKafkaConsumer 제너릭 Consumer 생성 (성능 최적화)
func NewKafkaConsumer[T any](brokers []string, topic string, groupID string) *KafkaConsumer[T] {
	return &KafkaConsumer[T]{
		reader: kafkaLib.NewReader(kafkaLib.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,                      // 최소 바이트 (즉시 처리)
			MaxBytes:       10e6,                   // 10MB 까지 한번에 읽기
			CommitInterval: 100 * time.Millisecond, // 커밋 간격 단축
			StartOffset:    kafkaLib.LastOffset,    // 최신 메시지부터 읽기
		}),
	}
}

// ReadMessage 메시지 수신
func (c *KafkaConsumer[T]) ReadMessage(ctx context.Context) ([]byte, T, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		var zero T
		return nil, zero, err
	}

	// JSON 역직렬화
	var value T
	if err := json.Unmarshal(msg.Value, &value); err != nil {
		var zero T
		return nil, zero, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return msg.Key, value, nil
}

// Close Consumer 종료
func (c *KafkaConsumer[T]) Close() error {
	return c.reader.Close()
}

// KafkaProducer Producer 제너릭 구현체
type KafkaProducer[T any] struct {
	writer *kafkaLib.Writer
}

// NewKafkaProducer 제너릭 Producer 생성 (고성능 비동기 모드)
// Close가 대기 중인 비동기 전송을 모두 플러시함
func NewKafkaProducer[T any](brokers []string, topic string) *KafkaProducer[T] {
	return &KafkaProducer[T]{
		writer: &kafkaLib.Writer{
			Addr:         kafkaLib.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkaLib.Hash{}, // Hash balancer (더 균등한 분배)
			RequiredAcks: kafkaLib.RequireOne,
			Async:        true,                  // 비동기 전송 (로컬 환경 안전)
			BatchSize:    100,                   // 요청 스트림용 소형 배치
			BatchTimeout: 10 * time.Millisecond, // 매우 짧은 타임아웃 (지연 최소화)
			Compression:  kafkaLib.Snappy,       // 압축 활성화
			ReadTimeout:  2 * time.Second,       // 읽기 타임아웃 단축
			WriteTimeout: 2 * time.Second,       // 쓰기 타임아웃 단축
		},
	}
}

// PublishMessage 메시지 발행
func (p *KafkaProducer[T]) PublishMessage(ctx context.Context, key []byte, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafkaLib.Message{
		Key:   key,
		Value: data,
	})
}

// Close Producer 종료
func (p *KafkaProducer[T]) Close() error {
	return p.writer.Close()
}

// KafkaReplyProducer Replier 구현체
// 응답 유실을 바로 감지해야 하므로 동기 전송을 사용함
type KafkaReplyProducer struct {
	writer *kafkaLib.Writer
}

// NewKafkaReplyProducer 응답 Producer 생성
// 토픽은 메시지마다 지정하므로 writer에 고정하지 않음
func NewKafkaReplyProducer(brokers []string) *KafkaReplyProducer {
	return &KafkaReplyProducer{
		writer: &kafkaLib.Writer{
			Addr:         kafkaLib.TCP(brokers...),
			Balancer:     &kafkaLib.Hash{},
			RequiredAcks: kafkaLib.RequireOne,
			Async:        false, // 동기 전송 (응답은 에러를 즉시 돌려받아야 함)
			BatchTimeout: 10 * time.Millisecond,
			Compression:  kafkaLib.Snappy,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		},
	}
}

// PublishTo 지정 토픽으로 응답 발행
func (p *KafkaReplyProducer) PublishTo(ctx context.Context, topic string, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafkaLib.Message{
		Topic: topic,
		Key:   key,
		Value: data,
	})
}

// Close Replier 종료
func (p *KafkaReplyProducer) Close() error {
	return p.writer.Close()
}
