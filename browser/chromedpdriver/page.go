package chromedpdriver

import (
	"context"
	"sync"
	"time"

	cdpPage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

const idlePollInterval = 50 * time.Millisecond

type page struct {
	session *session
	ctx     context.Context
	cancel  context.CancelFunc

	initOnce sync.Once
	initErr  error
	closed   *atomic.Bool
	idle     *atomic.Bool
}

func newPage(s *session, ctx context.Context, cancel context.CancelFunc) *page {
	return &page{
		session: s,
		ctx:     ctx,
		cancel:  cancel,
		closed:  atomic.NewBool(false),
		idle:    atomic.NewBool(true),
	}
}

// init attaches to the tab and starts tracking network activity
func (p *page) init() error {
	p.initOnce.Do(func() {
		chromedp.ListenTarget(p.ctx, p.handleTargetEvent)
		p.initErr = chromedp.Run(p.ctx, cdpPage.SetLifecycleEventsEnabled(true))
		if p.initErr == nil {
			p.session.track(chromedp.FromContext(p.ctx).Target.TargetID, p)
		}
	})
	return p.initErr
}

func (p *page) handleTargetEvent(ev interface{}) {
	lifecycle, ok := ev.(*cdpPage.EventLifecycleEvent)
	if !ok || string(lifecycle.FrameID) != string(p.targetID()) {
		return
	}
	switch lifecycle.Name {
	case "init":
		p.idle.Store(false)
	case "networkIdle":
		p.idle.Store(true)
	}
}

func (p *page) targetID() string {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return ""
	}
	return string(c.Target.TargetID)
}

// actionContext returns a child of the tab's chromedp context which also ends when ctx does.
// Actions look up their target through the chromedp context, so they can't run on ctx directly.
func actionContext(tabCtx, ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(tabCtx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		cancelParent := cancel
		cancel = func() {
			cancelDeadline()
			cancelParent()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// run performs actions on this tab, bounded by ctx
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.closed.Load() {
		return errors.New("Page is closed")
	}
	if err := p.init(); err != nil {
		return err
	}
	runCtx, cancel := actionContext(p.ctx, ctx)
	defer cancel()
	done := ctx.Done()
	for i, action := range actions {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		if err := chromedp.Run(runCtx, action); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errors.Wrapf(ctxErr, "Error running action %T with index #%d", action, i)
			}
			return errors.Wrapf(err, "Error running action %T with index #%d", action, i)
		}
	}
	return nil
}

func awaitPromise(params *runtime.EvaluateParams) *runtime.EvaluateParams {
	return params.WithAwaitPromise(true)
}

func (p *page) eval(ctx context.Context, expression string, result interface{}) error {
	return p.run(ctx, chromedp.Evaluate(expression, result, awaitPromise))
}

func (p *page) MainFrame() browser.Frame {
	return &frame{page: p, index: 0}
}

func (p *page) Frames(ctx context.Context) ([]browser.Frame, error) {
	var count int
	if err := p.eval(ctx, countFramesScript, &count); err != nil {
		return nil, errors.Wrap(err, "Failed to list frames")
	}
	frames := make([]browser.Frame, 0, count+1)
	for i := 0; i <= count; i++ {
		frames = append(frames, &frame{page: p, index: i})
	}
	return frames, nil
}

func (p *page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *page) URL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, chromedp.Location(&url))
	return url, err
}

func (p *page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

func (p *page) WaitNetworkIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for !p.idle.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (p *page) KeyDown(ctx context.Context, key string) error {
	events, err := keyEvents(key, isDownEvent)
	if err != nil {
		return err
	}
	return p.run(ctx, events...)
}

func (p *page) KeyUp(ctx context.Context, key string) error {
	events, err := keyEvents(key, isUpEvent)
	if err != nil {
		return err
	}
	return p.run(ctx, events...)
}

func (p *page) Press(ctx context.Context, key string) error {
	r, err := keyRune(key)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.KeyEvent(string(r)))
}

func (p *page) Type(ctx context.Context, text string) error {
	return p.run(ctx, chromedp.KeyEvent(text))
}

func (p *page) SetViewport(ctx context.Context, width, height int) error {
	return p.run(ctx, chromedp.EmulateViewport(int64(width), int64(height)))
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.FullScreenshot(&buf, 100))
	return buf, err
}

func (p *page) Close(ctx context.Context) error {
	if p.closed.Load() {
		return nil
	}
	err := p.run(ctx, cdpPage.Close())
	p.closed.Store(true)
	if p.cancel != nil {
		p.cancel()
	}
	return err
}

func (p *page) Closed() bool {
	return p.closed.Load()
}
