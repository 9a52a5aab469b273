package playback

import (
	"context"
	"strings"
	"time"

	"github.com/johnstarich/go/regext"
	"github.com/johnstarich/replayer/browser"
	"github.com/johnstarich/replayer/recording"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 720
	scrollScript          = `window.scrollBy(0, 100)`
)

var privilegedScheme = regext.MustCompile(`
	(?i)
	^ \s*
	(
		chrome (?: -extension | -search )?
		| edge | about | devtools | view-source
		| file | javascript | data | blob
	)
	:
`)

// CheckNavigable returns an error matching ErrUnsupportedScheme if url uses a privileged or internal scheme
func CheckNavigable(url string) error {
	if match := privilegedScheme.FindStringSubmatch(url); match != nil {
		return errors.Wrapf(ErrUnsupportedScheme, "Refusing to navigate to %s (%s:)", url, strings.ToLower(match[1]))
	}
	return nil
}

type stepHandler func(ctx context.Context, index int, step recording.Step) error

func (r *runner) handler(kind recording.StepKind) (stepHandler, bool) {
	switch kind {
	case recording.Navigate:
		return r.navigate, true
	case recording.Click:
		return r.click(browser.LeftButton, 1), true
	case recording.DoubleClick:
		return r.click(browser.LeftButton, 2), true
	case recording.RightClick:
		return r.click(browser.RightButton, 1), true
	case recording.Change:
		return r.change, true
	case recording.Hover:
		return r.interact(ActionHover), true
	case recording.WaitForSelector:
		return r.interact(ActionWaitAttached), true
	case recording.Type:
		return r.typeText, true
	case recording.Press:
		return r.press, true
	case recording.KeyDown:
		return r.key(browser.Page.KeyDown), true
	case recording.KeyUp:
		return r.key(browser.Page.KeyUp), true
	case recording.DragAndDrop:
		return r.dragAndDrop, true
	case recording.SetViewport:
		return r.setViewport, true
	case recording.Scroll:
		return r.scroll, true
	case recording.WaitForTimeout:
		return r.waitForTimeout, true
	case recording.Screenshot:
		return r.screenshot, true
	case recording.Close:
		return r.closePage, true
	case recording.SwitchToPopup:
		return r.switchToPopup, true
	case recording.SwitchToMain:
		return r.switchToMain, true
	case recording.Assert:
		return r.assert, true
	default:
		return nil, false
	}
}

// dispatch selects the step's frame then runs its handler. Unknown step kinds and missing frames are logged and skipped.
// A panicking handler fails the step like any other error.
func (r *runner) dispatch(ctx context.Context, index int, step recording.Step) (err error) {
	logger := r.logger.With(zap.Int("step", index+1), zap.String("type", string(step.Type)))
	defer func() {
		if v := recover(); v != nil {
			err = errors.Errorf("Step panicked: %v", v)
		}
	}()
	if step.HasFrame() {
		if err := r.state.selectFrame(ctx, step.Frame); err != nil {
			logger.Warn("Skipping step, frame unavailable", zap.Error(err))
			return nil
		}
	}
	handle, ok := r.handler(step.Type)
	if !ok {
		logger.Warn("Skipping unknown step type")
		return nil
	}
	logger.Debug("Running step")
	return handle(ctx, index, step)
}

func (r *runner) navigate(ctx context.Context, _ int, step recording.Step) error {
	if step.URL == "" {
		return errors.New("Navigate step is missing a url")
	}
	if err := CheckNavigable(step.URL); err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(ctx, StepTimeout(step))
	err := r.state.page.Navigate(navCtx, step.URL)
	cancel()
	if err != nil {
		return errors.Wrapf(err, "Failed to navigate to %s", step.URL)
	}
	r.waitStable(ctx, r.state.page)
	return nil
}

func (r *runner) interactive(ctx context.Context, step recording.Step, action Action) error {
	action.Timeout = StepTimeout(step)
	return r.withRetry(ctx, r.state.frame, step.Selectors, action)
}

func (r *runner) click(button browser.MouseButton, count int) stepHandler {
	return func(ctx context.Context, _ int, step recording.Step) error {
		opts := browser.ClickOptions{Button: button, Count: count}
		if step.OffsetX != 0 || step.OffsetY != 0 {
			opts.Offset = &browser.Point{X: step.OffsetX, Y: step.OffsetY}
		}
		if err := r.interactive(ctx, step, Action{Kind: ActionClick, Click: opts}); err != nil {
			return err
		}
		return sleep(ctx, r.timing.ClickPause)
	}
}

func (r *runner) change(ctx context.Context, _ int, step recording.Step) error {
	return r.interactive(ctx, step, Action{Kind: ActionFill, Value: step.Value})
}

func (r *runner) interact(kind ActionKind) stepHandler {
	return func(ctx context.Context, _ int, step recording.Step) error {
		return r.interactive(ctx, step, Action{Kind: kind})
	}
}

func (r *runner) typeText(ctx context.Context, _ int, step recording.Step) error {
	ctx, cancel := context.WithTimeout(ctx, StepTimeout(step))
	defer cancel()
	return errors.Wrap(r.state.page.Type(ctx, step.Value), "Failed to type text")
}

func (r *runner) press(ctx context.Context, _ int, step recording.Step) error {
	if step.Key == "" {
		return errors.New("Press step is missing a key")
	}
	ctx, cancel := context.WithTimeout(ctx, StepTimeout(step))
	defer cancel()
	return errors.Wrapf(r.state.page.Press(ctx, step.Key), "Failed to press %q", step.Key)
}

// key surrounds a key event with stability waits and settle delays, since keyboard shortcuts often race animations
func (r *runner) key(send func(browser.Page, context.Context, string) error) stepHandler {
	return func(ctx context.Context, _ int, step recording.Step) error {
		if step.Key == "" {
			return errors.Errorf("%s step is missing a key", step.Type)
		}
		page := r.state.page
		r.waitStable(ctx, page)
		if err := sleep(ctx, r.timing.KeySettle); err != nil {
			return err
		}
		keyCtx, cancel := context.WithTimeout(ctx, StepTimeout(step))
		err := send(page, keyCtx, step.Key)
		cancel()
		if err != nil {
			return errors.Wrapf(err, "Failed to send %s %q", step.Type, step.Key)
		}
		if err := sleep(ctx, r.timing.KeySettle); err != nil {
			return err
		}
		r.waitStable(ctx, page)
		return nil
	}
}

func (r *runner) dragAndDrop(ctx context.Context, _ int, step recording.Step) error {
	if len(step.TargetSelectors) == 0 {
		return errors.New("dragAndDrop step is missing targetSelectors")
	}
	frame := r.state.frame
	source, err := r.locate(ctx, frame, step.Selectors)
	if err != nil {
		return errors.Wrap(err, "Failed to find drag source")
	}
	target, err := r.locate(ctx, frame, step.TargetSelectors)
	if err != nil {
		return errors.Wrap(err, "Failed to find drop target")
	}
	ctx, cancel := context.WithTimeout(ctx, StepTimeout(step))
	defer cancel()
	return errors.Wrap(source.DragTo(ctx, target), "Failed to drag and drop")
}

func (r *runner) setViewport(ctx context.Context, _ int, step recording.Step) error {
	width, height := step.Width, step.Height
	if width <= 0 || height <= 0 {
		r.logger.Warn("Viewport size incomplete, using default",
			zap.Int("width", width), zap.Int("height", height),
			zap.Int("defaultWidth", defaultViewportWidth), zap.Int("defaultHeight", defaultViewportHeight),
		)
		width, height = defaultViewportWidth, defaultViewportHeight
	}
	ctx, cancel := context.WithTimeout(ctx, StepTimeout(step))
	defer cancel()
	return errors.Wrapf(r.state.page.SetViewport(ctx, width, height), "Failed to set viewport to %dx%d", width, height)
}

func (r *runner) scroll(ctx context.Context, _ int, step recording.Step) error {
	ctx, cancel := context.WithTimeout(ctx, StepTimeout(step))
	defer cancel()
	return errors.Wrap(r.state.frame.Evaluate(ctx, scrollScript), "Failed to scroll")
}

func (r *runner) waitForTimeout(ctx context.Context, _ int, step recording.Step) error {
	duration := defaultWaitStep
	if step.Timeout > 0 {
		duration = time.Duration(step.Timeout) * time.Millisecond
	}
	return sleep(ctx, duration)
}

func (r *runner) screenshot(ctx context.Context, index int, step recording.Step) error {
	ctx, cancel := context.WithTimeout(ctx, StepTimeout(step))
	defer cancel()
	path, err := r.artifacts.WriteScreenshot(ctx, r.state.page, index+1)
	if err != nil {
		return err
	}
	r.logger.Info("Saved screenshot", zap.String("path", path))
	return nil
}

func (r *runner) closePage(ctx context.Context, _ int, step recording.Step) error {
	ctx, cancel := context.WithTimeout(ctx, StepTimeout(step))
	defer cancel()
	return errors.Wrap(r.state.page.Close(ctx), "Failed to close page")
}

func (r *runner) switchToPopup(ctx context.Context, _ int, step recording.Step) error {
	return r.state.switchToPopup()
}

func (r *runner) switchToMain(ctx context.Context, _ int, step recording.Step) error {
	r.state.switchToMain()
	return nil
}

func (r *runner) assert(ctx context.Context, _ int, step recording.Step) error {
	for _, event := range step.AssertedEvents {
		if err := r.evaluate(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
