package playback

import (
	"fmt"
	"io"

	"github.com/johnstarich/replayer/recording"
	"github.com/pkg/errors"
)

var (
	// ErrLocatorExhausted matches failures where no selector resolved to an actionable element after every retry
	ErrLocatorExhausted = errors.New("no selector option worked after repeated attempts")
	// ErrUnsupportedScheme matches navigation to a privileged or internal URL scheme
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	// ErrNoPopup is returned by switchToPopup when no popup page is open
	ErrNoPopup = errors.New("no popup page is open")
	// ErrFrameIndex is a non-fatal frame selection failure. The step is skipped.
	ErrFrameIndex = errors.New("frame index out of range")

	errNoMatch              = errors.New("selector matched no elements")
	errNoActionable         = errors.New("no matched element is attached and visible")
	errNoSupportedSelectors = errors.New("no supported selectors")
)

// LocatorError reports an interactive step whose selectors never produced an actionable element
type LocatorError struct {
	Attempts int
	// Last is the final selector or action failure, if any
	Last error
}

func (e *LocatorError) Error() string {
	msg := fmt.Sprintf("no selector option worked after %d repeated attempts", e.Attempts)
	if e.Attempts == 0 {
		msg = "no selector option worked: no supported selectors"
	}
	if e.Last != nil {
		msg += ", last error: " + e.Last.Error()
	}
	return msg
}

// Is makes LocatorError match ErrLocatorExhausted
func (e *LocatorError) Is(target error) bool {
	return target == ErrLocatorExhausted
}

// AssertionError is an expected versus actual mismatch
type AssertionError struct {
	Kind     recording.AssertionKind
	Subject  string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion %s failed for %s. Expected: %q, Actual: %q", e.Kind, e.Subject, e.Expected, e.Actual)
}

// StepError wraps the first failing step's error with its 1-indexed position
type StepError struct {
	Index int
	Kind  recording.StepKind
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("Step %d (%s) failed: %s", e.Index, e.Kind, e.Err)
}

// Cause implements pkg/errors' causer
func (e *StepError) Cause() error {
	return e.Err
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Format prints the wrapped error's stack trace for %+v
func (e *StepError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%+v\n", e.Err)
			_, _ = io.WriteString(s, e.Error())
			return
		}
		fallthrough
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
