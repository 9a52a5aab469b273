package playback

import (
	"context"
	"time"

	"github.com/johnstarich/replayer/recording"
)

const (
	defaultStepTimeout = 3 * time.Second
	defaultWaitStep    = 1 * time.Second
)

var stepTimeouts = map[recording.StepKind]time.Duration{
	recording.Navigate:        20 * time.Second,
	recording.Click:           8 * time.Second,
	recording.Change:          5 * time.Second,
	recording.Hover:           5 * time.Second,
	recording.WaitForSelector: 5 * time.Second,
}

// DefaultTimeout returns the timeout used for kind when a step doesn't set one
func DefaultTimeout(kind recording.StepKind) time.Duration {
	if timeout, ok := stepTimeouts[kind]; ok {
		return timeout
	}
	return defaultStepTimeout
}

// StepTimeout returns step's timeout override, or its kind's default
func StepTimeout(step recording.Step) time.Duration {
	if step.Timeout > 0 {
		return time.Duration(step.Timeout) * time.Millisecond
	}
	return DefaultTimeout(step.Type)
}

// Timing controls the engine's fixed delays and wait bounds. Zero fields use DefaultTiming's value.
type Timing struct {
	// RetryAttempts is the number of passes over an interactive step's selectors
	RetryAttempts int
	// RetryDelay is the pause after each failed pass
	RetryDelay time.Duration
	// AttachTimeout bounds the wait for each matched element to attach
	AttachTimeout time.Duration
	// ClickPause follows every successful click
	ClickPause time.Duration
	// KeySettle surrounds keyDown and keyUp
	KeySettle time.Duration

	NetworkIdle      time.Duration
	IndicatorTimeout time.Duration
	FrameTick        time.Duration
	Settle           time.Duration

	// AssertTimeout bounds element assertions
	AssertTimeout time.Duration
	// Poll is the interval between element state checks
	Poll time.Duration
	// Screenshot bounds failure evidence capture
	Screenshot time.Duration
}

// DefaultTiming returns the production delays
func DefaultTiming() Timing {
	return Timing{
		RetryAttempts:    10,
		RetryDelay:       1000 * time.Millisecond,
		AttachTimeout:    3 * time.Second,
		ClickPause:       300 * time.Millisecond,
		KeySettle:        250 * time.Millisecond,
		NetworkIdle:      5 * time.Second,
		IndicatorTimeout: 5 * time.Second,
		FrameTick:        1 * time.Second,
		Settle:           500 * time.Millisecond,
		AssertTimeout:    5 * time.Second,
		Poll:             100 * time.Millisecond,
		Screenshot:       10 * time.Second,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.RetryAttempts <= 0 {
		t.RetryAttempts = d.RetryAttempts
	}
	durations := []struct{ value, fallback *time.Duration }{
		{&t.RetryDelay, &d.RetryDelay},
		{&t.AttachTimeout, &d.AttachTimeout},
		{&t.ClickPause, &d.ClickPause},
		{&t.KeySettle, &d.KeySettle},
		{&t.NetworkIdle, &d.NetworkIdle},
		{&t.IndicatorTimeout, &d.IndicatorTimeout},
		{&t.FrameTick, &d.FrameTick},
		{&t.Settle, &d.Settle},
		{&t.AssertTimeout, &d.AssertTimeout},
		{&t.Poll, &d.Poll},
		{&t.Screenshot, &d.Screenshot},
	}
	for _, dur := range durations {
		if *dur.value <= 0 {
			*dur.value = *dur.fallback
		}
	}
	return t
}

// sleep pauses for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
