// Package infra: 채널 서비스 수명주기 래퍼
// 디스패처를 요청 큐에 태스크 핸들러로 묶고, 연결 유실 시
// 원장 종료 훅을 정확히 한 번 호출한 뒤 서비스를 내림 (재연결 없음)
package infra

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blocklite-dev/blocklite/internal/channel/app"
	"github.com/blocklite-dev/blocklite/shared/dto"
	"github.com/blocklite-dev/blocklite/shared/kafka"
	"github.com/blocklite-dev/blocklite/shared/monitoring/monitor/svcmntr"
	"github.com/blocklite-dev/blocklite/shared/monitoring/tools"
	"github.com/blocklite-dev/blocklite/shared/workflow/workerpool"
)

const (
	defaultWorkers        = 4
	defaultQueueDepth     = 256
	defaultReadTimeout    = 100 * time.Millisecond
	defaultReportInterval = 10 * time.Second
	queueHighWater        = 0.8
)

// ServiceConfig 채널 서비스 구성
type ServiceConfig struct {
	DefaultReplyTopic string        // 봉투에 reply_topic이 없을 때 쓰는 기본 토픽
	Workers           int           // 동시 요청 처리 워커 수
	QueueDepth        int           // 태스크 채널 버퍼 (가득 차면 리더가 블록됨)
	ReadTimeout       time.Duration // 폴링 한 번의 타임아웃
	ReportInterval    time.Duration // 모니터 리포팅 주기
}

// ChannelService 디스패처와 큐 전송 계층을 묶는 래퍼
type ChannelService struct {
	dispatcher *app.Dispatcher
	consumer   kafka.Consumer[dto.RequestEnvelope]
	replier    kafka.Replier

	monitor *svcmntr.ServiceMonitor
	watcher *tools.QueueWatcher

	defaultReplyTopic string
	readTimeout       time.Duration
	reportInterval    time.Duration
	workers           int

	jobCh chan workerpool.Task
	pool  *workerpool.Pool

	onConnLost   func()
	connLostOnce sync.Once

	running    int32
	stopOnce   sync.Once
	stopCh     chan struct{}
	readerDone chan struct{}
}

// NewChannelService 서비스 생성
// onConnLost는 전송 계층 연결이 끊겼을 때 한 번 호출됨 (보통 원장 Close에 연결)
func NewChannelService(
	dispatcher *app.Dispatcher,
	consumer kafka.Consumer[dto.RequestEnvelope],
	replier kafka.Replier,
	cfg ServiceConfig,
	onConnLost func(),
) *ChannelService {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = defaultReportInterval
	}
	if cfg.DefaultReplyTopic == "" {
		cfg.DefaultReplyTopic = kafka.DefaultReplyTopic
	}

	jobCh := make(chan workerpool.Task, cfg.QueueDepth)
	s := &ChannelService{
		dispatcher:        dispatcher,
		consumer:          consumer,
		replier:           replier,
		monitor:           svcmntr.NewServiceMonitor(),
		defaultReplyTopic: cfg.DefaultReplyTopic,
		readTimeout:       cfg.ReadTimeout,
		reportInterval:    cfg.ReportInterval,
		workers:           cfg.Workers,
		jobCh:             jobCh,
		onConnLost:        onConnLost,
		stopCh:            make(chan struct{}),
		readerDone:        make(chan struct{}),
	}
	s.watcher = tools.NewQueueWatcher(func() (int, int) {
		return len(jobCh), cap(jobCh)
	}, queueHighWater, 0)
	return s
}

// Start 워커 풀과 리더 루프 기동 (한 번만 유효)
func (s *ChannelService) Start() {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}
	s.pool = workerpool.New(context.Background(), s.workers, s.jobCh)
	s.monitor.StartReporting(s.reportInterval)
	s.watcher.Start()

	go s.readerLoop()
	log.Printf("🚀 ChannelService started: %d workers, reply fallback %q", s.workers, s.defaultReplyTopic)
}

// readerLoop 요청 봉투를 읽어 워커 풀에 넘김
// 폴링 타임아웃은 평상시 상태, 그 외 읽기 에러는 연결 유실로 간주함
func (s *ChannelService) readerLoop() {
	defer close(s.readerDone)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.readTimeout)
		key, req, err := s.consumer.ReadMessage(ctx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				// 봉투 자체가 깨진 경우: 전송 계층 문제로 보고 버림
				log.Printf("⚠️ Malformed request envelope dropped: %v", err)
				continue
			}
			s.failConnection(err)
			return
		}

		s.monitor.RecordRequest()
		job := &requestJob{svc: s, key: key, req: req}
		select {
		case s.jobCh <- job:
		case <-s.stopCh:
			return
		}
	}
}

// failConnection 연결 유실 처리: 로그 → 원장 종료 훅 → 서비스 정지
// Stop이 리더 종료를 기다리므로 리더 고루틴 밖에서 돌림
func (s *ChannelService) failConnection(err error) {
	s.connLostOnce.Do(func() {
		log.Printf("❌ Request queue connection lost: %v - shutting down ledger", err)
		if s.onConnLost != nil {
			s.onConnLost()
		}
		go s.Stop()
	})
}

// buildReply 메서드 이름으로 디스패치해서 응답 봉투를 만듦
// 파라미터가 깨졌거나 모르는 메서드면 false (로그만 남기고 응답 없음)
func (s *ChannelService) buildReply(req dto.RequestEnvelope) (any, bool) {
	switch req.Method {
	case dto.MethodCreateTx:
		var tx map[string]any
		if err := json.Unmarshal(req.Params, &tx); err != nil {
			log.Printf("⚠️ %s with malformed params dropped (correlation_id=%s): %v", req.Method, req.CorrelationID, err)
			return nil, false
		}
		code, prefixed := s.dispatcher.SubmitTransaction(tx)
		resp := dto.CreateTxResponse{CorrelationID: req.CorrelationID, Code: code}
		if prefixed != "" {
			resp.TxHash = &prefixed
		}
		return resp, true

	case dto.MethodGetInvokeResult:
		var p dto.TxHashParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			log.Printf("⚠️ %s with malformed params dropped (correlation_id=%s): %v", req.Method, req.CorrelationID, err)
			return nil, false
		}
		code, result := s.dispatcher.GetInvokeResult(p.TxHash)
		return dto.InvokeResultResponse{CorrelationID: req.CorrelationID, Code: code, Result: result}, true

	case dto.MethodGetTxInfo:
		var p dto.TxHashParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			log.Printf("⚠️ %s with malformed params dropped (correlation_id=%s): %v", req.Method, req.CorrelationID, err)
			return nil, false
		}
		code, tx := s.dispatcher.GetTxInfo(p.TxHash)
		return dto.TxInfoResponse{CorrelationID: req.CorrelationID, Code: code, Tx: tx}, true

	case dto.MethodGetBlock:
		// block_height 필드가 아예 없으면 -1(최신 블록)로 취급함
		p := dto.GetBlockParams{BlockHeight: -1}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			log.Printf("⚠️ %s with malformed params dropped (correlation_id=%s): %v", req.Method, req.CorrelationID, err)
			return nil, false
		}
		code, blockHash, body, filtered := s.dispatcher.GetBlock(p.BlockHeight, p.BlockHash, p.BlockDataFilter, p.TxDataFilter)
		return dto.BlockResponse{
			CorrelationID:  req.CorrelationID,
			Code:           code,
			BlockHash:      blockHash,
			BlockBody:      body,
			FilteredTxList: filtered,
		}, true

	default:
		log.Printf("⚠️ Unknown method %q dropped (correlation_id=%s)", req.Method, req.CorrelationID)
		return nil, false
	}
}

// Stats 모니터 스냅샷 (운영 API용)
func (s *ChannelService) Stats() svcmntr.ServiceStats {
	return s.monitor.GetServiceStats()
}

// QueueStatus 태스크 채널 점유율 (운영 API용)
func (s *ChannelService) QueueStatus() (used, capacity int) {
	return s.watcher.QueueStatus()
}

// Stop 리더 정지 → 남은 태스크 소진 → 전송 계층 닫기 (멱등)
func (s *ChannelService) Stop() {
	s.stopOnce.Do(func() {
		if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
			return
		}
		log.Printf("🛑 ChannelService stopping")
		close(s.stopCh)
		<-s.readerDone

		close(s.jobCh)
		s.pool.Wait()

		s.watcher.Stop()
		s.monitor.Close()
		if err := s.replier.Close(); err != nil {
			log.Printf("⚠️ Reply producer close failed: %v", err)
		}
		if err := s.consumer.Close(); err != nil {
			log.Printf("⚠️ Request consumer close failed: %v", err)
		}
		log.Printf("🛑 ChannelService stopped")
	})
}

// requestJob 워커 풀 태스크: 요청 하나의 디스패치와 응답 발행
// 패닉은 태스크 안에서 막혀서 워커를 죽이지 않음
type requestJob struct {
	svc *ChannelService
	key []byte
	req dto.RequestEnvelope
}

func (j *requestJob) Run(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Request %s handler panicked: %v", j.req.CorrelationID, r)
		}
	}()

	reply, ok := j.svc.buildReply(j.req)
	if !ok {
		return nil
	}

	topic := j.req.ReplyTopic
	if topic == "" {
		topic = j.svc.defaultReplyTopic
	}
	if err := j.svc.replier.PublishTo(ctx, topic, j.key, reply); err != nil {
		log.Printf("❌ Reply publish failed (correlation_id=%s): %v", j.req.CorrelationID, err)
		return err
	}
	j.svc.monitor.RecordReply()
	return nil
}
