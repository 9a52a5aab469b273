// Package queue serializes playback runs through a FIFO queue drained by a single Worker.
package queue

import (
	"context"
	"time"

	"github.com/johnstarich/replayer/recording"
	"github.com/pkg/errors"
)

// ErrClosed is returned by Pop after a queue is closed
var ErrClosed = errors.New("Queue is closed")

// Run is one requested playback
type Run struct {
	ID         string
	TestName   string
	SuiteTitle string
	TestRunId  string
	Recording  recording.Recording
	EnqueuedAt time.Time
}

// Queue is a FIFO of runs. Implementations are safe for concurrent use.
type Queue interface {
	Push(ctx context.Context, run Run) error
	// Pop blocks until a run is available, ctx is done, or the queue is closed
	Pop(ctx context.Context) (Run, error)
	Len(ctx context.Context) (int, error)
	// Items returns the waiting runs, oldest first
	Items(ctx context.Context) ([]Run, error)
	Close() error
}

// Summary is the short description of a run shown in queue status
type Summary struct {
	ID        string
	TestName  string
	TestRunId string
}

// Summary returns a short description of the run
func (r Run) Summary() Summary {
	return Summary{ID: r.ID, TestName: r.TestName, TestRunId: r.TestRunId}
}
