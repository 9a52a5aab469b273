package roddriver

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

const (
	requestIdleWindow = 500 * time.Millisecond
	dragSteps         = 10
)

type page struct {
	page   *rod.Page
	closed *atomic.Bool
}

func newPage(p *rod.Page) *page {
	return &page{page: p, closed: atomic.NewBool(false)}
}

func (p *page) with(ctx context.Context) (*rod.Page, error) {
	if p.closed.Load() {
		return nil, errors.New("Page is closed")
	}
	return p.page.Context(ctx), nil
}

func (p *page) MainFrame() browser.Frame {
	return &frame{page: p, doc: p.page}
}

func (p *page) Frames(ctx context.Context) ([]browser.Frame, error) {
	rp, err := p.with(ctx)
	if err != nil {
		return nil, err
	}
	iframes, err := rp.Elements("iframe, frame")
	if err != nil {
		return nil, errors.Wrap(err, "Failed to list frames")
	}
	frames := []browser.Frame{p.MainFrame()}
	for _, iframe := range iframes {
		doc, err := iframe.Frame()
		if err != nil {
			return nil, errors.Wrap(err, "Failed to open frame document")
		}
		frames = append(frames, &frame{page: p, doc: doc})
	}
	return frames, nil
}

func (p *page) Navigate(ctx context.Context, url string) error {
	rp, err := p.with(ctx)
	if err != nil {
		return err
	}
	if err := rp.Navigate(url); err != nil {
		return err
	}
	return rp.WaitLoad()
}

func (p *page) URL(ctx context.Context) (string, error) {
	rp, err := p.with(ctx)
	if err != nil {
		return "", err
	}
	info, err := rp.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *page) Title(ctx context.Context) (string, error) {
	rp, err := p.with(ctx)
	if err != nil {
		return "", err
	}
	info, err := rp.Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *page) WaitNetworkIdle(ctx context.Context) error {
	rp, err := p.with(ctx)
	if err != nil {
		return err
	}
	rp.WaitRequestIdle(requestIdleWindow, nil, nil, nil)()
	return ctx.Err()
}

func (p *page) KeyDown(ctx context.Context, key string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}
	rp, err := p.with(ctx)
	if err != nil {
		return err
	}
	return rp.Keyboard.Press(k)
}

func (p *page) KeyUp(ctx context.Context, key string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}
	rp, err := p.with(ctx)
	if err != nil {
		return err
	}
	return rp.Keyboard.Release(k)
}

func (p *page) Press(ctx context.Context, key string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}
	rp, err := p.with(ctx)
	if err != nil {
		return err
	}
	return rp.Keyboard.Type(k)
}

func (p *page) Type(ctx context.Context, text string) error {
	rp, err := p.with(ctx)
	if err != nil {
		return err
	}
	return rp.InsertText(text)
}

func (p *page) SetViewport(ctx context.Context, width, height int) error {
	rp, err := p.with(ctx)
	if err != nil {
		return err
	}
	return rp.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	rp, err := p.with(ctx)
	if err != nil {
		return nil, err
	}
	return rp.Screenshot(true, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
}

func (p *page) Close(ctx context.Context) error {
	if p.closed.Load() {
		return nil
	}
	err := p.page.Context(ctx).Close()
	p.closed.Store(true)
	return err
}

func (p *page) Closed() bool {
	return p.closed.Load()
}

type frame struct {
	page *page
	doc  *rod.Page
}

const textFinder = `(value) => Array.from(document.querySelectorAll('body, body *')).filter(e =>
	e.textContent.includes(value) && !Array.from(e.children).some(c => c.textContent.includes(value)))`

func (f *frame) Query(ctx context.Context, locator browser.Locator) ([]browser.Element, error) {
	if f.page.closed.Load() {
		return nil, errors.New("Page is closed")
	}
	doc := f.doc.Context(ctx)
	var found rod.Elements
	var err error
	if css, ok := locator.CSS(); ok {
		found, err = doc.Elements(css)
	} else {
		switch locator.Kind {
		case browser.XPath:
			found, err = doc.ElementsX(locator.Value)
		case browser.Text:
			found, err = doc.ElementsByJS(rod.Eval(textFinder, locator.Value))
		default:
			err = errors.Errorf("Unsupported locator: %s", locator)
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to query %s", locator)
	}
	elements := make([]browser.Element, 0, len(found))
	for _, el := range found {
		elements = append(elements, &element{frame: f, el: el})
	}
	return elements, nil
}

func (f *frame) Evaluate(ctx context.Context, expression string) error {
	_, err := f.doc.Context(ctx).Evaluate(rod.Eval(expression).ByPromise())
	return err
}

type element struct {
	frame *frame
	el    *rod.Element
}

func (e *element) with(ctx context.Context) *rod.Element {
	return e.el.Context(ctx)
}

func (e *element) Attached(ctx context.Context) (bool, error) {
	res, err := e.with(ctx).Eval(`() => this.isConnected`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	return e.with(ctx).Visible()
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.with(ctx).ScrollIntoView()
}

func mouseButton(button browser.MouseButton) proto.InputMouseButton {
	if button == browser.RightButton {
		return proto.InputMouseButtonRight
	}
	return proto.InputMouseButtonLeft
}

func (e *element) box(ctx context.Context) (*proto.DOMRect, error) {
	shape, err := e.with(ctx).Shape()
	if err != nil {
		return nil, err
	}
	box := shape.Box()
	if box == nil {
		return nil, errors.New("Element has no layout box")
	}
	return box, nil
}

func center(box *proto.DOMRect) proto.Point {
	return proto.Point{X: box.X + box.Width/2, Y: box.Y + box.Height/2}
}

func (e *element) Click(ctx context.Context, opts browser.ClickOptions) error {
	button := mouseButton(opts.Button)
	if opts.Offset == nil {
		return e.with(ctx).Click(button, opts.Clicks())
	}
	box, err := e.box(ctx)
	if err != nil {
		return err
	}
	mouse := e.frame.page.page.Context(ctx).Mouse
	if err := mouse.MoveTo(proto.Point{X: box.X + opts.Offset.X, Y: box.Y + opts.Offset.Y}); err != nil {
		return err
	}
	return mouse.Click(button, opts.Clicks())
}

func (e *element) Hover(ctx context.Context) error {
	return e.with(ctx).Hover()
}

func (e *element) Fill(ctx context.Context, value string) error {
	el := e.with(ctx)
	_, err := el.Eval(`() => {
		if ('value' in this) {
			this.value = '';
			this.dispatchEvent(new Event('input', {bubbles: true}));
		} else if (this.isContentEditable) {
			this.textContent = '';
		}
	}`)
	if err != nil {
		return err
	}
	if value == "" {
		return el.Focus()
	}
	return el.Input(value)
}

func (e *element) InnerText(ctx context.Context) (string, error) {
	return e.with(ctx).Text()
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	value, err := e.with(ctx).Attribute(name)
	if err != nil || value == nil {
		return "", false, err
	}
	return *value, true, nil
}

func (e *element) DragTo(ctx context.Context, target browser.Element) error {
	dest, ok := target.(*element)
	if !ok {
		return errors.Errorf("Drag target is not a %s element: %T", Name, target)
	}
	from, err := e.box(ctx)
	if err != nil {
		return err
	}
	to, err := dest.box(ctx)
	if err != nil {
		return err
	}
	mouse := e.frame.page.page.Context(ctx).Mouse
	if err := mouse.MoveTo(center(from)); err != nil {
		return err
	}
	if err := mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	if err := mouse.MoveLinear(center(to), dragSteps); err != nil {
		return err
	}
	return mouse.Up(proto.InputMouseButtonLeft, 1)
}

var namedKeys = map[string]input.Key{
	"Alt":        input.AltLeft,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"ArrowUp":    input.ArrowUp,
	"Backspace":  input.Backspace,
	"Control":    input.ControlLeft,
	"Delete":     input.Delete,
	"End":        input.End,
	"Enter":      input.Enter,
	"Escape":     input.Escape,
	"Home":       input.Home,
	"Insert":     input.Insert,
	"Meta":       input.MetaLeft,
	"PageDown":   input.PageDown,
	"PageUp":     input.PageUp,
	"Shift":      input.ShiftLeft,
	"Space":      input.Space,
	" ":          input.Space,
	"Tab":        input.Tab,
}

func lookupKey(key string) (input.Key, error) {
	if k, ok := namedKeys[key]; ok {
		return k, nil
	}
	runes := []rune(key)
	if len(runes) == 1 {
		return input.Key(runes[0]), nil
	}
	return 0, errors.Errorf("Unsupported key: %q", key)
}
