// Package worker runs fire-and-forget tasks on a fixed set of goroutines.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"collegovibe/internal/config"
)

// Task is a unit of background work. ctx is cancelled on Shutdown.
type Task func(ctx context.Context)

type job struct {
	name string
	run  Task
}

// Pool drains a buffered queue with a fixed number of workers. Submissions
// never block: a full queue rejects the task.
type Pool struct {
	jobs    chan job
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  zerolog.Logger
	once    sync.Once
}

func NewPool(cfg config.WorkerConfig, logger zerolog.Logger) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:    make(chan job, buffer),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.process()
	}
	return p
}

// Submit queues t and reports whether it was accepted.
func (p *Pool) Submit(name string, t Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}

	select {
	case p.jobs <- job{name: name, run: t}:
		return true
	case <-p.ctx.Done():
		return false
	default:
		p.logger.Warn().Str("task", name).Msg("worker queue full, dropping task")
		return false
	}
}

func (p *Pool) process() {
	defer p.wg.Done()

	for {
		select {
		case j := <-p.jobs:
			p.run(j)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("task", j.name).Interface("panic", r).Msg("task panicked")
		}
	}()
	j.run(p.ctx)
}

// Shutdown stops the workers and waits for running tasks. Queued tasks that
// have not started are discarded.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.logger.Info().Msg("worker pool shutdown complete")
	})
}
