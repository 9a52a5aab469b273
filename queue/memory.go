package queue

import (
	"context"
	"sync"
)

type memoryQueue struct {
	mu     sync.Mutex
	runs   []Run
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

// NewMemory returns an in-process Queue. Runs are lost when the process exits.
func NewMemory() Queue {
	return &memoryQueue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (m *memoryQueue) Push(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.runs = append(m.runs, run)
	m.signal()
	return nil
}

// signal wakes one waiting Pop. Must hold mu.
func (m *memoryQueue) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *memoryQueue) Pop(ctx context.Context) (Run, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return Run{}, ErrClosed
		}
		if len(m.runs) > 0 {
			run := m.runs[0]
			m.runs[0] = Run{}
			m.runs = m.runs[1:]
			if len(m.runs) > 0 {
				m.signal()
			}
			m.mu.Unlock()
			return run, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return Run{}, ctx.Err()
		case <-m.done:
			return Run{}, ErrClosed
		case <-m.ready:
		}
	}
}

func (m *memoryQueue) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs), nil
}

func (m *memoryQueue) Items(ctx context.Context) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]Run, len(m.runs))
	copy(items, m.runs)
	return items, nil
}

func (m *memoryQueue) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
