package workerpool

import (
	"errors"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Statistics tracks submitted/completed/failed task counts.
type Statistics struct {
	mu sync.Mutex

	Submitted int64
	Completed int64
	Failed    int64
}

func (s *Statistics) Get() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Statistics{Submitted: s.Submitted, Completed: s.Completed, Failed: s.Failed}
}

// Pool runs fire-and-forget tasks on a bounded set of workers. Used for
// agent notifications so message creation never waits on the agent.
type Pool struct {
	pool   *ants.Pool
	stats  *Statistics
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a pool with the given worker count.
func New(size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 8
	}

	antsPool, err := ants.NewPool(size,
		ants.WithPanicHandler(func(err interface{}) {
			logger.Error("worker panic", zap.Any("error", err))
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Pool{
		pool:   antsPool,
		stats:  &Statistics{},
		logger: logger,
	}, nil
}

// Submit queues a task. Returns ErrPoolClosed after Shutdown.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.mu.Unlock()

	p.stats.mu.Lock()
	p.stats.Submitted++
	p.stats.mu.Unlock()

	err := p.pool.Submit(func() {
		task()
		p.stats.mu.Lock()
		p.stats.Completed++
		p.stats.mu.Unlock()
	})
	if err != nil {
		p.stats.mu.Lock()
		p.stats.Failed++
		p.stats.mu.Unlock()
	}
	return err
}

// Running returns the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Stats returns a snapshot of the task counters.
func (p *Pool) Stats() Statistics {
	return p.stats.Get()
}

// Shutdown stops accepting tasks and releases the workers.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.pool.Release()
}
