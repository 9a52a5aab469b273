package playback

import (
	"context"

	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// withRetry runs the selector pipeline for an interactive step up to RetryAttempts times, pausing RetryDelay after each failed attempt
func (r *runner) withRetry(ctx context.Context, frame browser.Frame, groups [][]string, action Action) error {
	var lastErr error
	attempts := 0
	for attempts < r.timing.RetryAttempts {
		attempts++
		err := r.trySelectors(ctx, frame, groups, action)
		if err == nil {
			if attempts > 1 {
				r.logger.Info("Selector resolved after retrying", zap.Int("attempts", attempts))
			}
			return nil
		}
		if errors.Is(err, errNoSupportedSelectors) {
			return errors.WithStack(&LocatorError{})
		}
		lastErr = err
		r.logger.Debug("Selector attempt failed", zap.Int("attempt", attempts), zap.Error(err))
		if sleepErr := sleep(ctx, r.timing.RetryDelay); sleepErr != nil {
			break
		}
	}
	return errors.WithStack(&LocatorError{Attempts: attempts, Last: lastErr})
}
