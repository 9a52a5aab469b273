package playback

import (
	"context"

	"github.com/johnstarich/replayer/browser"
	"github.com/johnstarich/replayer/errors"
	"go.uber.org/zap"
)

// loadingIndicator matches common spinner and loading overlays
const loadingIndicator = `.loading, .spinner, .loader, [class*="spinner"], [class*="loading"], [aria-busy="true"]`

const animationFrameScript = `new Promise(resolve => requestAnimationFrame(() => resolve()))`

// Degradation lists the stability checks that gave up. It never fails a step.
type Degradation struct {
	Checks errors.Errors
}

// Degraded returns true if any check gave up
func (d Degradation) Degraded() bool {
	return len(d.Checks) > 0
}

// waitStable waits, best-effort, for network idle, no visible loading indicator, one animation frame, then the settle delay
func (r *runner) waitStable(ctx context.Context, page browser.Page) Degradation {
	var d Degradation

	idleCtx, cancel := context.WithTimeout(ctx, r.timing.NetworkIdle)
	if err := page.WaitNetworkIdle(idleCtx); err != nil {
		d.Checks.Addf("Network did not become idle within %s: %s", r.timing.NetworkIdle, err)
	}
	cancel()

	if _, err := r.waitForState(ctx, page.MainFrame(), []string{loadingIndicator}, stateHidden, r.timing.IndicatorTimeout); err != nil {
		d.Checks.Addf("Loading indicator still visible: %s", err)
	}

	tickCtx, cancel := context.WithTimeout(ctx, r.timing.FrameTick)
	if err := page.MainFrame().Evaluate(tickCtx, animationFrameScript); err != nil {
		d.Checks.Addf("Animation frame did not fire: %s", err)
	}
	cancel()

	if err := sleep(ctx, r.timing.Settle); err != nil {
		d.Checks.Addf("Settle delay interrupted: %s", err)
	}

	if d.Degraded() {
		r.logger.Warn("Page may not be stable", zap.Strings("checks", d.Checks.Strings()))
	}
	return d
}
