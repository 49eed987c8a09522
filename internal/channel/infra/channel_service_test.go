package infra_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blocklite-dev/blocklite/internal/channel/app"
	chdomain "github.com/blocklite-dev/blocklite/internal/channel/domain"
	"github.com/blocklite-dev/blocklite/internal/channel/infra"
	"github.com/blocklite-dev/blocklite/shared/dto"
)

// fakeChain 서비스 테스트용 최소 체인
type fakeChain struct {
	mu     sync.Mutex
	blocks map[int64]map[string]any
	latest map[string]any
	closed bool
}

func newServiceFakeChain() *fakeChain {
	return &fakeChain{blocks: make(map[int64]map[string]any)}
}

func (c *fakeChain) addBlock(height int64, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blk := map[string]any{"block_hash": hash, "height": float64(height)}
	c.blocks[height] = blk
	c.latest = blk
}

func (c *fakeChain) HasCommitted(string) bool { return false }

func (c *fakeChain) GetTransaction(string) (map[string]any, bool) { return nil, false }

func (c *fakeChain) GetTxResult(string) (map[string]any, bool) { return nil, false }

func (c *fakeChain) GetLastBlock() (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.latest != nil
}

func (c *fakeChain) GetBlockByHash(string) (map[string]any, bool) { return nil, false }

func (c *fakeChain) GetBlockByHeight(height int64) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blk, ok := c.blocks[height]
	return blk, ok
}

func (c *fakeChain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChain) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// closeForTest 연결 유실 훅으로 쓸 클로저
func (c *fakeChain) closeForTest() func() {
	return func() { _ = c.Close() }
}

// fakeConsumer 봉투를 채널로 밀어 넣는 요청 소스
type fakeConsumer struct {
	msgs   chan dto.RequestEnvelope
	errs   chan error
	closed int32
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{
		msgs: make(chan dto.RequestEnvelope, 64),
		errs: make(chan error, 4),
	}
}

func (c *fakeConsumer) ReadMessage(ctx context.Context) ([]byte, dto.RequestEnvelope, error) {
	select {
	case env := <-c.msgs:
		return []byte(env.CorrelationID), env, nil
	case err := <-c.errs:
		return nil, dto.RequestEnvelope{}, err
	case <-ctx.Done():
		return nil, dto.RequestEnvelope{}, ctx.Err()
	}
}

func (c *fakeConsumer) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return nil
}

// fakeReplier 발행된 응답을 쌓아두는 싱크
type publishedReply struct {
	topic string
	value any
}

type fakeReplier struct {
	mu      sync.Mutex
	replies []publishedReply
	closed  bool
}

func (r *fakeReplier) PublishTo(_ context.Context, topic string, _ []byte, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, publishedReply{topic: topic, value: value})
	return nil
}

func (r *fakeReplier) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReplier) snapshot() []publishedReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]publishedReply(nil), r.replies...)
}

func newServiceUnderTest(t *testing.T) (*infra.ChannelService, *fakeConsumer, *fakeReplier, *fakeChain) {
	t.Helper()
	chain := newServiceFakeChain()
	dispatcher := app.NewDispatcher(chdomain.NewTxQueue(""), chain)
	consumer := newFakeConsumer()
	replier := &fakeReplier{}

	svc := infra.NewChannelService(dispatcher, consumer, replier, infra.ServiceConfig{
		DefaultReplyTopic: "test-replies",
		Workers:           2,
		ReadTimeout:       20 * time.Millisecond,
	}, chain.closeForTest())
	t.Cleanup(svc.Stop)
	return svc, consumer, replier, chain
}

func mustParams(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	return data
}

func waitForReplies(t *testing.T, r *fakeReplier, want int) []publishedReply {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		got := r.snapshot()
		if len(got) >= want {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d replies, have %d", want, len(got))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChannelServiceAnswersSubmit(t *testing.T) {
	svc, consumer, replier, _ := newServiceUnderTest(t)
	svc.Start()

	consumer.msgs <- dto.RequestEnvelope{
		CorrelationID: "corr-1",
		Method:        dto.MethodCreateTx,
		ReplyTopic:    "caller-inbox",
		Params:        mustParams(t, map[string]any{"from": "hxaa", "to": "hxbb", "value": "0x1"}),
	}

	replies := waitForReplies(t, replier, 1)
	if replies[0].topic != "caller-inbox" {
		t.Fatalf("reply went to %q, want the envelope's reply_topic", replies[0].topic)
	}
	resp, ok := replies[0].value.(dto.CreateTxResponse)
	if !ok {
		t.Fatalf("reply type %T, want CreateTxResponse", replies[0].value)
	}
	if resp.CorrelationID != "corr-1" {
		t.Fatalf("correlation_id = %q, want echo of caller's", resp.CorrelationID)
	}
	if resp.Code != chdomain.Success || resp.TxHash == nil || len(*resp.TxHash) != 66 {
		t.Fatalf("submit reply off: code=%d hash=%v", resp.Code, resp.TxHash)
	}
}

func TestChannelServiceDuplicateSubmissionCodes(t *testing.T) {
	svc, consumer, replier, _ := newServiceUnderTest(t)
	svc.Start()

	params := mustParams(t, map[string]any{"from": "hxaa", "nonce": "0x7"})
	for i := 0; i < 2; i++ {
		consumer.msgs <- dto.RequestEnvelope{
			CorrelationID: fmt.Sprintf("corr-%d", i),
			Method:        dto.MethodCreateTx,
			Params:        params,
		}
	}

	replies := waitForReplies(t, replier, 2)
	codes := map[int]int{}
	for _, pr := range replies {
		resp := pr.value.(dto.CreateTxResponse)
		codes[resp.Code]++
	}
	if codes[chdomain.Success] != 1 || codes[chdomain.FailTxInvalidDuplicatedHash] != 1 {
		t.Fatalf("duplicate submission codes = %v, want exactly one success and one rejection", codes)
	}
}

func TestChannelServiceGetBlockRoundTrip(t *testing.T) {
	svc, consumer, replier, chain := newServiceUnderTest(t)
	chain.addBlock(4, "44443333222211110000aaaabbbbccccddddeeeeffff00001111222233334444")
	svc.Start()

	consumer.msgs <- dto.RequestEnvelope{
		CorrelationID: "corr-blk",
		Method:        dto.MethodGetBlock,
		Params: mustParams(t, dto.GetBlockParams{
			BlockHeight: -1,
			BlockHash:   "",
		}),
	}

	replies := waitForReplies(t, replier, 1)
	resp := replies[0].value.(dto.BlockResponse)
	if resp.Code != chdomain.Success {
		t.Fatalf("code = %d, want success", resp.Code)
	}
	if resp.BlockHash == "" || resp.BlockBody == "" {
		t.Fatalf("success reply missing hash or body: %+v", resp)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(resp.BlockBody), &body); err != nil {
		t.Fatalf("block_body is not JSON: %v", err)
	}
	if body["height"].(float64) != 4 {
		t.Fatalf("body height = %v, want 4", body["height"])
	}
	if len(resp.FilteredTxList) != 0 {
		t.Fatalf("filtered_tx_list = %v, want empty", resp.FilteredTxList)
	}
	if replies[0].topic != "test-replies" {
		t.Fatalf("reply topic = %q, want configured fallback", replies[0].topic)
	}
}

func TestChannelServiceGetBlockDefaultsToLatest(t *testing.T) {
	svc, consumer, replier, chain := newServiceUnderTest(t)
	chain.addBlock(0, "0000111122223333444455556666777788889999aaaabbbbccccddddeeeeffff")
	chain.addBlock(4, "44443333222211110000aaaabbbbccccddddeeeeffff00001111222233334444")
	svc.Start()

	// block_height 키 자체가 없는 요청: 0(제네시스)이 아니라 최신 블록이어야 함
	consumer.msgs <- dto.RequestEnvelope{
		CorrelationID: "corr-default",
		Method:        dto.MethodGetBlock,
		Params:        json.RawMessage(`{}`),
	}

	replies := waitForReplies(t, replier, 1)
	resp := replies[0].value.(dto.BlockResponse)
	if resp.Code != chdomain.Success {
		t.Fatalf("code = %d, want success", resp.Code)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(resp.BlockBody), &body); err != nil {
		t.Fatalf("block_body is not JSON: %v", err)
	}
	if body["height"].(float64) != 4 {
		t.Fatalf("body height = %v, want the latest block", body["height"])
	}
}

func TestChannelServiceDropsUnknownMethod(t *testing.T) {
	svc, consumer, replier, _ := newServiceUnderTest(t)
	svc.Start()

	// 1. 모르는 메서드는 응답 없이 버려짐
	consumer.msgs <- dto.RequestEnvelope{
		CorrelationID: "corr-bogus",
		Method:        "not_a_method",
		Params:        mustParams(t, map[string]any{}),
	}
	// 2. 뒤따르는 정상 요청은 그대로 처리돼야 함
	consumer.msgs <- dto.RequestEnvelope{
		CorrelationID: "corr-ok",
		Method:        dto.MethodGetTxInfo,
		Params:        mustParams(t, dto.TxHashParams{TxHash: "0xdeadbeef"}),
	}

	replies := waitForReplies(t, replier, 1)
	time.Sleep(100 * time.Millisecond)
	replies = replier.snapshot()
	if len(replies) != 1 {
		t.Fatalf("got %d replies, want only the valid request answered", len(replies))
	}
	resp := replies[0].value.(dto.TxInfoResponse)
	if resp.CorrelationID != "corr-ok" || resp.Code != chdomain.FailTxInvalidHashNotMatch {
		t.Fatalf("surviving reply off: %+v", resp)
	}
}

func TestChannelServiceDropsMalformedEnvelope(t *testing.T) {
	svc, consumer, replier, chain := newServiceUnderTest(t)
	svc.Start()

	// 실제 JSON 디코딩 에러를 만들어서 컨슈머가 돌려주는 모양대로 감쌈
	var sink dto.RequestEnvelope
	decodeErr := json.Unmarshal([]byte("{not-json"), &sink)
	consumer.errs <- fmt.Errorf("failed to unmarshal message: %w", decodeErr)

	consumer.msgs <- dto.RequestEnvelope{
		CorrelationID: "corr-after",
		Method:        dto.MethodGetTxInfo,
		Params:        mustParams(t, dto.TxHashParams{TxHash: "0xdeadbeef"}),
	}

	// 깨진 봉투는 연결 유실이 아니므로 서비스가 계속 살아서 다음 요청에 답함
	replies := waitForReplies(t, replier, 1)
	resp := replies[0].value.(dto.TxInfoResponse)
	if resp.CorrelationID != "corr-after" {
		t.Fatalf("reply correlation = %q, want the follow-up request", resp.CorrelationID)
	}
	if chain.isClosed() {
		t.Fatal("malformed envelope must not trigger the connection-lost hook")
	}
}

func TestChannelServiceConnectionLossShutsLedger(t *testing.T) {
	svc, consumer, _, chain := newServiceUnderTest(t)
	svc.Start()

	consumer.errs <- errors.New("broker went away")

	// 연결 유실 → 원장 종료 훅 호출 → 서비스 정지
	deadline := time.Now().Add(3 * time.Second)
	for !chain.isClosed() {
		if time.Now().After(deadline) {
			t.Fatal("connection loss never reached the ledger shutdown hook")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// 정지 이후 컨슈머도 닫혀야 함
	deadline = time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&consumer.closed) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("service did not stop after connection loss")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// 이후 Stop 재호출은 안전해야 함
	svc.Stop()
}

func TestChannelServiceStopIsIdempotent(t *testing.T) {
	svc, _, replier, _ := newServiceUnderTest(t)
	svc.Start()

	svc.Stop()
	svc.Stop()

	replier.mu.Lock()
	closed := replier.closed
	replier.mu.Unlock()
	if !closed {
		t.Fatal("reply producer left open after Stop")
	}
}

func TestChannelServiceDrainsQueuedWorkOnStop(t *testing.T) {
	svc, consumer, replier, _ := newServiceUnderTest(t)
	svc.Start()

	const queued = 8
	for i := 0; i < queued; i++ {
		consumer.msgs <- dto.RequestEnvelope{
			CorrelationID: fmt.Sprintf("corr-%d", i),
			Method:        dto.MethodGetInvokeResult,
			Params:        mustParams(t, dto.TxHashParams{TxHash: fmt.Sprintf("0x%064d", i)}),
		}
	}
	waitForReplies(t, replier, queued)

	svc.Stop()
	if got := len(replier.snapshot()); got != queued {
		t.Fatalf("after stop: %d replies, want %d", got, queued)
	}
}
