package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/johnstarich/replayer/playback"
	"github.com/johnstarich/replayer/recording"
	"github.com/johnstarich/replayer/reporter"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePlayer struct {
	mu     sync.Mutex
	played []string
	// block, if set, holds each Play until it receives a value
	block chan struct{}
}

func (f *fakePlayer) Play(ctx context.Context, rec recording.Recording) playback.Result {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.played = append(f.played, rec.Title)
	f.mu.Unlock()
	status := playback.Passed
	if rec.Title == "title bad" {
		status = playback.Failed
	}
	return playback.Result{Status: status, DurationMs: 5, ScreenshotMissing: true}
}

func (f *fakePlayer) Played() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

type sinkFunc func(ctx context.Context, report reporter.Report) error

func (s sinkFunc) Send(ctx context.Context, report reporter.Report) error {
	return s(ctx, report)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWorkerProcessesInOrder(t *testing.T) {
	q := NewMemory()
	player := &fakePlayer{}
	var mu sync.Mutex
	var reports []reporter.Report
	collect := sinkFunc(func(ctx context.Context, report reporter.Report) error {
		mu.Lock()
		reports = append(reports, report)
		mu.Unlock()
		return nil
	})
	core, logs := observer.New(zapcore.ErrorLevel)
	failing := sinkFunc(func(ctx context.Context, report reporter.Report) error {
		return errors.New("ticketing system down")
	})
	panicking := sinkFunc(func(ctx context.Context, report reporter.Report) error {
		panic("oops")
	})
	worker := NewWorker(q, player, []reporter.Sink{failing, panicking, collect}, zap.New(core))

	ctx := context.Background()
	for _, id := range []string{"a", "bad", "c"} {
		run := testRun(id)
		if id == "c" {
			run.SuiteTitle = "suite"
		}
		require.NoError(t, q.Push(ctx, run))
	}

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) == 3
	})
	require.NoError(t, q.Close())
	require.NoError(t, <-done)

	assert.Equal(t, []string{"title a", "title bad", "title c"}, player.Played())
	assert.Equal(t, "test a", reports[0].TestName)
	assert.Equal(t, reporter.DefaultSuiteTitle, reports[0].SuiteTitle)
	assert.Equal(t, "run a", reports[0].TestRunId)
	assert.Equal(t, playback.Failed, reports[1].Status)
	assert.Equal(t, "suite", reports[2].SuiteTitle)
	assert.Equal(t, 6, logs.FilterMessage("Failed to report result").Len(), "Every sink failure should be logged")

	report, found := worker.Result("bad")
	require.True(t, found)
	assert.Equal(t, playback.Failed, report.Status)
	_, found = worker.Result("missing")
	assert.False(t, found)

	status, err := worker.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.IsProcessing)
	assert.Equal(t, int64(3), status.Processed)
	assert.Empty(t, status.CurrentRunning.ID)
}

func TestWorkerStatusWhileRunning(t *testing.T) {
	q := NewMemory()
	player := &fakePlayer{block: make(chan struct{})}
	worker := NewWorker(q, player, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Push(ctx, testRun("first")))
	require.NoError(t, q.Push(ctx, testRun("second")))

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	var status Status
	waitFor(t, func() bool {
		var err error
		status, err = worker.Status(ctx)
		require.NoError(t, err)
		return status.IsProcessing
	})
	assert.Equal(t, Summary{ID: "first", TestName: "test first", TestRunId: "run first"}, status.CurrentRunning)
	assert.Equal(t, 1, status.QueueLength)
	assert.Equal(t, []Summary{{ID: "second", TestName: "test second", TestRunId: "run second"}}, status.QueueItems)

	player.block <- struct{}{}
	player.block <- struct{}{}
	waitFor(t, func() bool { return len(player.Played()) == 2 })
	cancel()
	assert.NoError(t, <-done)
}
