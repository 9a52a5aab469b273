// Package playback replays recordings against a live browser and reports one Result per run.
//
// Interactive steps resolve their element through prioritized selector groups, retrying the whole
// pipeline a bounded number of times. The first failing step stops playback and captures a screenshot.
package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/johnstarich/replayer/browser"
	"github.com/johnstarich/replayer/evidence"
	"github.com/johnstarich/replayer/recording"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Status is the outcome of a playback
type Status string

// Statuses
const (
	Passed Status = "passed"
	Failed Status = "failed"
)

// Result is the outcome of one playback. Field names are part of the reporting contract.
type Result struct {
	Status            Status
	ErrorMessage      string `json:",omitempty"`
	ErrorStack        string `json:",omitempty"`
	ScreenshotBase64  string `json:",omitempty"`
	ScreenshotMissing bool
	DurationMs        int64
	RunTime           time.Time
}

// Options configures an Engine
type Options struct {
	Browser browser.Config
	Logger  *zap.Logger
	// ArtifactDir receives screenshot step images
	ArtifactDir string
	Timing      Timing
}

// Engine plays recordings. Each Play call launches its own browser session, so an Engine is safe for concurrent use.
type Engine struct {
	launch    browser.Launcher
	config    browser.Config
	logger    *zap.Logger
	artifacts evidence.ArtifactWriter
	timing    Timing
}

// New creates an Engine which starts sessions with launch
func New(launch browser.Launcher, options Options) *Engine {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	config := options.Browser
	if config.Logger == nil {
		config.Logger = logger
	}
	return &Engine{
		launch:    launch,
		config:    config,
		logger:    logger,
		artifacts: evidence.ArtifactWriter{Dir: options.ArtifactDir},
		timing:    options.Timing.withDefaults(),
	}
}

// NewWithDriver creates an Engine which starts sessions with the registered browser driver
func NewWithDriver(driver string, options Options) *Engine {
	return New(func(ctx context.Context, config browser.Config) (browser.Session, error) {
		return browser.Launch(ctx, driver, config)
	}, options)
}

// runner holds the state of a single playback
type runner struct {
	state     *sessionContext
	timing    Timing
	logger    *zap.Logger
	artifacts evidence.ArtifactWriter
}

// Play runs every step of rec in order and always returns a Result. Playback stops at the first failing step.
// Canceling ctx aborts the run and tears down its browser session.
func (e *Engine) Play(ctx context.Context, rec recording.Recording) (result Result) {
	start := time.Now()
	result = Result{
		Status:            Passed,
		ScreenshotMissing: true,
		RunTime:           start.UTC(),
	}
	logger := e.logger.With(zap.String("title", rec.Title))
	logger.Info("Starting playback", zap.Int("steps", len(rec.Steps)))

	var session browser.Session
	var r *runner
	defer func() {
		if v := recover(); v != nil {
			err := errors.Errorf("Playback panicked: %v", v)
			e.fail(ctx, logger, &result, r, err)
		}
		if session != nil {
			e.teardown(logger, session)
		}
		result.DurationMs = time.Since(start).Milliseconds()
		if result.DurationMs < 0 {
			result.DurationMs = 0
		}
		logger.Info("Playback finished", zap.String("status", string(result.Status)), zap.Int64("durationMs", result.DurationMs))
	}()

	var err error
	session, err = e.launch(ctx, e.config)
	if err != nil {
		e.fail(ctx, logger, &result, nil, errors.Wrap(err, "Failed to start browser session"))
		return
	}
	page, err := session.NewPage(ctx)
	if err != nil {
		e.fail(ctx, logger, &result, nil, errors.Wrap(err, "Failed to open page"))
		return
	}
	r = &runner{
		state:     newSessionContext(session, page, logger),
		timing:    e.timing,
		logger:    logger,
		artifacts: e.artifacts,
	}

	for i, step := range rec.Steps {
		if err := r.dispatch(ctx, i, step); err != nil {
			e.fail(ctx, logger, &result, r, &StepError{Index: i + 1, Kind: step.Type, Err: err})
			return
		}
	}
	return
}

// fail records the first failure on result and captures a screenshot of the active page. Later failures are logged only.
func (e *Engine) fail(ctx context.Context, logger *zap.Logger, result *Result, r *runner, err error) {
	logger.Error("Playback failed", zap.Error(err))
	if result.Status == Failed && result.ErrorMessage != "" {
		return
	}
	result.Status = Failed
	result.ErrorMessage = err.Error()
	result.ErrorStack = fmt.Sprintf("%+v", err)

	var page browser.Page
	if r != nil {
		page = r.state.page
	}
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timing.Screenshot)
	defer cancel()
	shot := evidence.Capture(shotCtx, page)
	if shot.Missing {
		logger.Warn("Screenshot unavailable", zap.Error(shot.Reason))
		result.ScreenshotMissing = true
		return
	}
	result.ScreenshotBase64 = shot.Base64()
	result.ScreenshotMissing = false
}

func (e *Engine) teardown(logger *zap.Logger, session browser.Session) {
	defer func() {
		if v := recover(); v != nil {
			logger.Error("Browser teardown panicked", zap.Any("panic", v))
		}
	}()
	if err := session.Close(); err != nil {
		logger.Warn("Failed to close browser session", zap.Error(err))
	}
}
