package workerpool

import (
	"context"
	"sync"
)

// Task 인터페이스: 각 작업은 Run()을 수행함
// 에러 처리/로깅은 작업 내부 책임 (풀은 실행만 담당)
type Task interface {
	Run(ctx context.Context) error
}

type Pool struct {
	TaskChan <-chan Task // 외부에서 task 생산
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// New 워커풀 생성: 외부 채널을 받아 고정 워커 수로 처리
func New(ctx context.Context, numWorkers int, taskChan <-chan Task) *Pool {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		TaskChan: taskChan,
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.TaskChan:
			if !ok {
				return
			}
			_ = task.Run(p.ctx)
		}
	}
}

// Wait 채널이 닫힌 뒤 남은 작업까지 소진하고 워커 종료를 기다림
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown 즉시 취소 + join (잔여 작업은 버림)
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
