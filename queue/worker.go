package queue

import (
	"context"
	"time"

	"github.com/johnstarich/replayer/playback"
	"github.com/johnstarich/replayer/recording"
	"github.com/johnstarich/replayer/reporter"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	resultTTL   = 24 * time.Hour
	sinkTimeout = 30 * time.Second
)

// Player plays one recording. *playback.Engine is a Player.
type Player interface {
	Play(ctx context.Context, rec recording.Recording) playback.Result
}

// Worker plays queued runs one at a time and hands each report to its sinks
type Worker struct {
	queue   Queue
	player  Player
	sinks   []reporter.Sink
	logger  *zap.Logger
	results *cache.Cache

	current    atomic.Pointer[Run]
	processing *atomic.Bool
	processed  *atomic.Int64
}

// NewWorker creates a Worker. Call Run to start processing.
func NewWorker(q Queue, player Player, sinks []reporter.Sink, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:      q,
		player:     player,
		sinks:      sinks,
		logger:     logger,
		results:    cache.New(resultTTL, resultTTL/4),
		processing: atomic.NewBool(false),
		processed:  atomic.NewInt64(0),
	}
}

// Run processes runs until ctx is canceled or the queue is closed
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Starting worker loop")
	for {
		run, err := w.queue.Pop(ctx)
		if err != nil {
			if err == ErrClosed || ctx.Err() != nil {
				return nil
			}
			w.logger.Error("Failed to read from queue", zap.Error(err))
			if sleepErr := sleep(ctx, time.Second); sleepErr != nil {
				return nil
			}
			continue
		}
		w.process(ctx, run)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) process(ctx context.Context, run Run) {
	logger := w.logger.With(zap.String("run", run.ID), zap.String("test", run.TestName), zap.String("testRunId", run.TestRunId))
	w.current.Store(&run)
	w.processing.Store(true)
	defer func() {
		w.current.Store(nil)
		w.processing.Store(false)
		w.processed.Inc()
		logger.Info("Finished test")
	}()

	logger.Info("Running test")
	result := w.player.Play(ctx, run.Recording)
	suite := run.SuiteTitle
	if suite == "" {
		suite = reporter.DefaultSuiteTitle
	}
	report := reporter.Report{
		Result:     result,
		TestName:   run.TestName,
		SuiteTitle: suite,
		TestRunId:  run.TestRunId,
	}
	w.results.SetDefault(run.ID, report)
	logger.Info("Test completed", zap.String("status", string(result.Status)), zap.Int64("durationMs", result.DurationMs))

	for _, sink := range w.sinks {
		if err := w.send(ctx, sink, report); err != nil {
			logger.Error("Failed to report result", zap.Error(err))
		}
	}
}

func (w *Worker) send(ctx context.Context, sink reporter.Sink, report reporter.Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("Sink panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	return sink.Send(ctx, report)
}

// Status is a snapshot of the queue and worker
type Status struct {
	QueueLength    int       `json:"queueLength"`
	QueueItems     []Summary `json:"queueItems"`
	CurrentRunning Summary   `json:"currentRunning"`
	IsProcessing   bool      `json:"isProcessing"`
	Processed      int64     `json:"processed"`
}

// Status returns the waiting runs and the run in progress, if any
func (w *Worker) Status(ctx context.Context) (Status, error) {
	items, err := w.queue.Items(ctx)
	if err != nil {
		return Status{}, errors.Wrap(err, "Failed to list queue")
	}
	status := Status{
		QueueLength:  len(items),
		QueueItems:   make([]Summary, 0, len(items)),
		IsProcessing: w.processing.Load(),
		Processed:    w.processed.Load(),
	}
	for _, item := range items {
		status.QueueItems = append(status.QueueItems, item.Summary())
	}
	if current := w.current.Load(); current != nil {
		status.CurrentRunning = current.Summary()
	}
	return status, nil
}

// Result returns the report for a finished run. Reports are kept for 24 hours.
func (w *Worker) Result(id string) (reporter.Report, bool) {
	report, found := w.results.Get(id)
	if !found {
		return reporter.Report{}, false
	}
	return report.(reporter.Report), true
}
