package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"collegovibe/internal/config"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := NewPool(config.WorkerConfig{Workers: 3, BufferSize: 10}, zerolog.Nop())
	defer p.Shutdown()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		assert.True(t, p.Submit("count", func(ctx context.Context) {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(10), ran.Load())
}

func TestPool_RejectsWhenFull(t *testing.T) {
	p := NewPool(config.WorkerConfig{Workers: 1, BufferSize: 1}, zerolog.Nop())
	defer p.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})
	assert.True(t, p.Submit("block", func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	assert.True(t, p.Submit("queued", func(ctx context.Context) {}))
	assert.False(t, p.Submit("overflow", func(ctx context.Context) {}))
	close(release)
}

func TestPool_SurvivesPanics(t *testing.T) {
	p := NewPool(config.WorkerConfig{Workers: 1, BufferSize: 4}, zerolog.Nop())
	defer p.Shutdown()

	p.Submit("boom", func(ctx context.Context) { panic("boom") })

	done := make(chan struct{})
	p.Submit("after", func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not recover from panic")
	}
}

func TestPool_ShutdownCancelsAndRejects(t *testing.T) {
	p := NewPool(config.WorkerConfig{Workers: 1, BufferSize: 4}, zerolog.Nop())

	cancelled := make(chan struct{})
	started := make(chan struct{})
	p.Submit("wait", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	<-started

	p.Shutdown()
	p.Shutdown()

	select {
	case <-cancelled:
	default:
		t.Fatal("running task was not cancelled")
	}
	assert.False(t, p.Submit("late", func(ctx context.Context) {}))
}
