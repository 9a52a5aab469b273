package playback

import (
	"context"
	"time"

	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// query returns all elements matching locator in frame, or errNoMatch
func query(ctx context.Context, frame browser.Frame, locator browser.Locator) ([]browser.Element, error) {
	elements, err := frame.Query(ctx, locator)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to query %s", locator)
	}
	if len(elements) == 0 {
		return nil, errors.Wrap(errNoMatch, locator.String())
	}
	return elements, nil
}

// firstActionable returns the first element at or after index start which attaches within the attach timeout and is visible
func (r *runner) firstActionable(ctx context.Context, elements []browser.Element, start int) (browser.Element, int, error) {
	for i := start; i < len(elements); i++ {
		element := elements[i]
		if !r.waitAttached(ctx, element) {
			r.logger.Debug("Candidate never attached", zap.Int("candidate", i))
			continue
		}
		visible, err := element.Visible(ctx)
		if err != nil {
			r.logger.Debug("Failed to check candidate visibility", zap.Int("candidate", i), zap.Error(err))
			continue
		}
		if !visible {
			r.logger.Debug("Candidate is not visible", zap.Int("candidate", i))
			continue
		}
		return element, i, nil
	}
	return nil, len(elements), errNoActionable
}

func (r *runner) waitAttached(ctx context.Context, element browser.Element) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timing.AttachTimeout)
	defer cancel()
	for {
		if attached, err := element.Attached(ctx); err == nil && attached {
			return true
		}
		if sleep(ctx, r.timing.Poll) != nil {
			return false
		}
	}
}

// trySelectors makes one pass over every selector in groups, in priority order, and performs action on the first actionable candidate.
// A candidate whose action fails is skipped in favor of the next one.
func (r *runner) trySelectors(ctx context.Context, frame browser.Frame, groups [][]string, action Action) error {
	var lastErr error
	supported := false
	for _, group := range groups {
		for _, raw := range group {
			locator, ok := Normalize(raw)
			if !ok {
				r.logger.Debug("Skipping unsupported selector", zap.String("selector", raw))
				continue
			}
			supported = true
			elements, err := query(ctx, frame, locator)
			if err != nil {
				r.logger.Debug("Selector failed", zap.Stringer("locator", locator), zap.Error(err))
				lastErr = err
				continue
			}
			r.logger.Debug("Selector matched", zap.Stringer("locator", locator), zap.Int("count", len(elements)))

			for start := 0; start < len(elements); {
				element, index, err := r.firstActionable(ctx, elements, start)
				if err != nil {
					lastErr = errors.Wrap(err, locator.String())
					break
				}
				if err := r.execute(ctx, element, action); err != nil {
					r.logger.Debug("Action failed on candidate", zap.Stringer("locator", locator), zap.Int("candidate", index), zap.Error(err))
					lastErr = errors.Wrapf(err, "%s [element %d]", locator, index)
					start = index + 1
					continue
				}
				r.logger.Debug("Acted on selector", zap.Stringer("locator", locator), zap.Int("candidate", index), zap.Stringer("action", action))
				return nil
			}
		}
	}
	if !supported {
		return errNoSupportedSelectors
	}
	return lastErr
}

// locate returns the first actionable element across groups without acting on it or retrying
func (r *runner) locate(ctx context.Context, frame browser.Frame, groups [][]string) (browser.Element, error) {
	var lastErr error
	for _, group := range groups {
		for _, raw := range group {
			locator, ok := Normalize(raw)
			if !ok {
				continue
			}
			elements, err := query(ctx, frame, locator)
			if err != nil {
				lastErr = err
				continue
			}
			element, _, err := r.firstActionable(ctx, elements, 0)
			if err != nil {
				lastErr = errors.Wrap(err, locator.String())
				continue
			}
			return element, nil
		}
	}
	if lastErr == nil {
		lastErr = errNoSupportedSelectors
	}
	return nil, lastErr
}

// elementState is a condition on elements matched by any of an assertion's selectors
type elementState int

const (
	stateAttached elementState = iota
	stateVisible
	stateHidden
)

func (s elementState) String() string {
	switch s {
	case stateAttached:
		return "attached"
	case stateVisible:
		return "visible"
	default:
		return "hidden"
	}
}

// waitForState polls frame until an element matched by selectors reaches state or timeout passes.
// For stateHidden, success means no selector matches a visible element and the returned element is nil.
func (r *runner) waitForState(ctx context.Context, frame browser.Frame, selectors []string, state elementState, timeout time.Duration) (browser.Element, error) {
	var locators []browser.Locator
	for _, raw := range selectors {
		if locator, ok := Normalize(raw); ok {
			locators = append(locators, locator)
		}
	}
	if len(locators) == 0 {
		return nil, errNoSupportedSelectors
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		element, satisfied := r.checkState(ctx, frame, locators, state)
		if satisfied {
			return element, nil
		}
		if err := sleep(ctx, r.timing.Poll); err != nil {
			return nil, errors.Errorf("Timed out after %s waiting for %s to be %s", timeout, locators[0], state)
		}
	}
}

func (r *runner) checkState(ctx context.Context, frame browser.Frame, locators []browser.Locator, state elementState) (browser.Element, bool) {
	for _, locator := range locators {
		elements, err := frame.Query(ctx, locator)
		if err != nil {
			continue
		}
		for _, element := range elements {
			switch state {
			case stateAttached:
				if attached, err := element.Attached(ctx); err == nil && attached {
					return element, true
				}
			case stateVisible, stateHidden:
				if visible, err := element.Visible(ctx); err == nil && visible {
					return element, state == stateVisible
				}
			}
		}
	}
	return nil, state == stateHidden
}
