package playwrightdriver

import (
	"context"
	"fmt"

	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
)

const dragSteps = 10

type page struct {
	page playwright.Page
}

func (p *page) check(ctx context.Context) error {
	if p.page.IsClosed() {
		return errors.New("Page is closed")
	}
	return ctx.Err()
}

func (p *page) MainFrame() browser.Frame {
	return &frame{page: p, frame: p.page.MainFrame()}
}

func (p *page) Frames(ctx context.Context) ([]browser.Frame, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	var frames []browser.Frame
	for _, f := range p.page.Frames() {
		frames = append(frames, &frame{page: p, frame: f})
	}
	return frames, nil
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   timeout(ctx),
	})
	return err
}

func (p *page) URL(ctx context.Context) (string, error) {
	if err := p.check(ctx); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *page) Title(ctx context.Context) (string, error) {
	if err := p.check(ctx); err != nil {
		return "", err
	}
	return p.page.Title()
}

func (p *page) WaitNetworkIdle(ctx context.Context) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: timeout(ctx),
	})
}

func (p *page) KeyDown(ctx context.Context, key string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.page.Keyboard().Down(key)
}

func (p *page) KeyUp(ctx context.Context, key string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.page.Keyboard().Up(key)
}

func (p *page) Press(ctx context.Context, key string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.page.Keyboard().Press(key)
}

func (p *page) Type(ctx context.Context, text string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.page.Keyboard().InsertText(text)
}

func (p *page) SetViewport(ctx context.Context, width, height int) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.page.SetViewportSize(width, height)
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
		Timeout:  timeout(ctx),
	})
}

func (p *page) Close(ctx context.Context) error {
	if p.page.IsClosed() {
		return nil
	}
	return p.page.Close()
}

func (p *page) Closed() bool {
	return p.page.IsClosed()
}

type frame struct {
	page  *page
	frame playwright.Frame
}

// selector converts a locator into playwright's selector engine syntax
func selector(locator browser.Locator) (string, error) {
	if css, ok := locator.CSS(); ok {
		return "css=" + css, nil
	}
	switch locator.Kind {
	case browser.XPath:
		return "xpath=" + locator.Value, nil
	case browser.Text:
		return fmt.Sprintf("text=%s", locator.Value), nil
	default:
		return "", errors.Errorf("Unsupported locator: %s", locator)
	}
}

func (f *frame) Query(ctx context.Context, locator browser.Locator) ([]browser.Element, error) {
	if err := f.page.check(ctx); err != nil {
		return nil, err
	}
	sel, err := selector(locator)
	if err != nil {
		return nil, err
	}
	handles, err := f.frame.QuerySelectorAll(sel)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to query %s", locator)
	}
	elements := make([]browser.Element, 0, len(handles))
	for _, handle := range handles {
		elements = append(elements, &element{page: f.page, handle: handle})
	}
	return elements, nil
}

func (f *frame) Evaluate(ctx context.Context, expression string) error {
	if err := f.page.check(ctx); err != nil {
		return err
	}
	_, err := f.frame.Evaluate(expression)
	return err
}

type element struct {
	page   *page
	handle playwright.ElementHandle
}

func (e *element) Attached(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	connected, err := e.handle.Evaluate(`el => el.isConnected`)
	if err != nil {
		return false, err
	}
	attached, _ := connected.(bool)
	return attached, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.handle.IsVisible()
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.handle.ScrollIntoViewIfNeeded(playwright.ElementHandleScrollIntoViewIfNeededOptions{
		Timeout: timeout(ctx),
	})
}

func (e *element) Click(ctx context.Context, opts browser.ClickOptions) error {
	clickOpts := playwright.ElementHandleClickOptions{
		Button:     playwright.MouseButtonLeft,
		ClickCount: playwright.Int(opts.Clicks()),
		Timeout:    timeout(ctx),
	}
	if opts.Button == browser.RightButton {
		clickOpts.Button = playwright.MouseButtonRight
	}
	if opts.Offset != nil {
		clickOpts.Position = &playwright.Position{X: opts.Offset.X, Y: opts.Offset.Y}
	}
	return e.handle.Click(clickOpts)
}

func (e *element) Hover(ctx context.Context) error {
	return e.handle.Hover(playwright.ElementHandleHoverOptions{Timeout: timeout(ctx)})
}

func (e *element) Fill(ctx context.Context, value string) error {
	return e.handle.Fill(value, playwright.ElementHandleFillOptions{Timeout: timeout(ctx)})
}

func (e *element) InnerText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.handle.InnerText()
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	result, err := e.handle.Evaluate(`(el, name) => el.hasAttribute(name) ? el.getAttribute(name) : null`, name)
	if err != nil || result == nil {
		return "", false, err
	}
	value, _ := result.(string)
	return value, true, nil
}

func center(box *playwright.Rect) (float64, float64) {
	return box.X + box.Width/2, box.Y + box.Height/2
}

func (e *element) DragTo(ctx context.Context, target browser.Element) error {
	dest, ok := target.(*element)
	if !ok {
		return errors.Errorf("Drag target is not a %s element: %T", Name, target)
	}
	from, err := e.handle.BoundingBox()
	if err != nil {
		return err
	}
	to, err := dest.handle.BoundingBox()
	if err != nil {
		return err
	}
	if from == nil || to == nil {
		return errors.New("Drag endpoints must be visible")
	}
	mouse := e.page.page.Mouse()
	startX, startY := center(from)
	endX, endY := center(to)
	if err := mouse.Move(startX, startY); err != nil {
		return err
	}
	if err := mouse.Down(); err != nil {
		return err
	}
	if err := mouse.Move(endX, endY, playwright.MouseMoveOptions{Steps: playwright.Int(dragSteps)}); err != nil {
		return err
	}
	return mouse.Up()
}
