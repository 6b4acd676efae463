// Package queue admits generation jobs into a fixed pool of workers.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("queue: full")
	ErrShutdown  = errors.New("queue: shutdown")
)

// Observer is told about queue occupancy after every change.
type Observer interface {
	ObserveQueue(waiting, active int)
	ObserveRejected()
}

type Config struct {
	Workers  int
	MaxQueue int
	Observer Observer
}

type Manager struct {
	jobs     chan job
	wg       sync.WaitGroup
	inflight sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	capacity int32
	admitted atomic.Int32
	active   atomic.Int32
	observer Observer
}

type job struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
}

type jobIDKey struct{}

// JobID returns the ID of the job running with ctx, or "".
func JobID(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}

func NewManager(cfg Config) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxQueue < 0 {
		cfg.MaxQueue = 0
	}

	capacity := cfg.Workers + cfg.MaxQueue
	m := &Manager{
		jobs:     make(chan job, capacity),
		capacity: int32(capacity),
		observer: cfg.Observer,
	}

	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}

	return m
}

// Submit runs fn on a worker and waits for its result. At most Workers jobs
// run and MaxQueue wait; beyond that Submit fails fast with ErrQueueFull.
func (m *Manager) Submit(ctx context.Context, fn func(context.Context) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrShutdown
	}
	if m.admitted.Add(1) > m.capacity {
		m.admitted.Add(-1)
		m.mu.RUnlock()
		if m.observer != nil {
			m.observer.ObserveRejected()
		}
		return ErrQueueFull
	}

	j := job{
		ctx:    context.WithValue(ctx, jobIDKey{}, uuid.NewString()),
		fn:     fn,
		result: make(chan error, 1),
	}
	// Never blocks: admitted jobs never exceed the buffer.
	m.jobs <- j
	m.mu.RUnlock()
	m.observe()

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports jobs waiting and jobs running.
func (m *Manager) Stats() (waiting, active int) {
	a := int(m.active.Load())
	w := int(m.admitted.Load()) - a
	if w < 0 {
		w = 0
	}
	return w, a
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for j := range m.jobs {
		m.inflight.Add(1)
		m.active.Add(1)
		m.observe()

		if err := j.ctx.Err(); err != nil {
			j.result <- err
		} else {
			j.result <- j.fn(j.ctx)
		}

		m.active.Add(-1)
		m.admitted.Add(-1)
		m.inflight.Done()
		m.observe()
	}
}

func (m *Manager) observe() {
	if m.observer == nil {
		return
	}
	m.observer.ObserveQueue(m.Stats())
}
