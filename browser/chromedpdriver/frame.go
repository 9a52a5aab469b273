package chromedpdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
)

// Frames are addressed by index: 0 is the top document, i > 0 is the i'th iframe in document order.
// Matched elements are held as remote object handles, so queries never modify the page.
const (
	countFramesScript = `document.querySelectorAll('iframe, frame').length`
	dragSteps         = 10
	// objectGroup holds every element handle of a page
	objectGroup = "replayer"
)

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// documentPrelude declares frameEl and doc for frame index
func documentPrelude(index int) string {
	if index == 0 {
		return `const frameEl = null; const doc = document;`
	}
	return fmt.Sprintf(`
		const frameEl = document.querySelectorAll('iframe, frame')[%d];
		if (!frameEl || !frameEl.contentDocument) { throw new Error('frame %d is not accessible'); }
		const doc = frameEl.contentDocument;
	`, index-1, index)
}

var finders = map[browser.LocatorKind]string{
	browser.CSS: `Array.from(doc.querySelectorAll(value))`,
	browser.XPath: `(() => {
		const snapshot = doc.evaluate(value, doc, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		const found = [];
		for (let i = 0; i < snapshot.snapshotLength; i++) {
			const node = snapshot.snapshotItem(i);
			if (node.nodeType === Node.ELEMENT_NODE) { found.push(node); }
		}
		return found;
	})()`,
	browser.Text: `Array.from(doc.querySelectorAll('body, body *')).filter(e =>
		e.textContent.includes(value) && !Array.from(e.children).some(c => c.textContent.includes(value)))`,
}

type frame struct {
	page  *page
	index int
}

func (f *frame) Query(ctx context.Context, locator browser.Locator) ([]browser.Element, error) {
	value := locator.Value
	finder, ok := finders[locator.Kind]
	if css, isCSS := locator.CSS(); isCSS {
		value, finder, ok = css, finders[browser.CSS], true
	}
	if !ok {
		return nil, errors.Errorf("Unsupported locator: %s", locator)
	}
	script := fmt.Sprintf(`(() => {
		%s
		const value = %s;
		return %s;
	})()`, documentPrelude(f.index), quote(value), finder)

	var ids []runtime.RemoteObjectID
	err := f.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		ids, err = queryHandles(ctx, script)
		return err
	}))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to query %s", locator)
	}
	elements := make([]browser.Element, 0, len(ids))
	for _, id := range ids {
		elements = append(elements, &element{frame: f, id: id})
	}
	return elements, nil
}

// queryHandles evaluates script, which must return an array of elements, and returns a handle for each item in order
func queryHandles(ctx context.Context, script string) ([]runtime.RemoteObjectID, error) {
	array, exception, err := runtime.Evaluate(script).WithObjectGroup(objectGroup).Do(ctx)
	if err != nil {
		return nil, err
	}
	if exception != nil {
		return nil, exception
	}
	if array == nil || array.ObjectID == "" {
		return nil, errors.New("Query did not return a list of elements")
	}
	props, _, _, exception, err := runtime.GetProperties(array.ObjectID).WithOwnProperties(true).Do(ctx)
	if err != nil {
		return nil, err
	}
	if exception != nil {
		return nil, exception
	}
	_ = runtime.ReleaseObject(array.ObjectID).Do(ctx)
	return arrayItems(props), nil
}

// arrayItems returns the object IDs of an array's indexed properties, ordered by index
func arrayItems(props []*runtime.PropertyDescriptor) []runtime.RemoteObjectID {
	type item struct {
		index int
		id    runtime.RemoteObjectID
	}
	var items []item
	for _, prop := range props {
		index, err := strconv.Atoi(prop.Name)
		if err != nil || prop.Value == nil || prop.Value.ObjectID == "" {
			continue
		}
		items = append(items, item{index: index, id: prop.Value.ObjectID})
	}
	sort.Slice(items, func(a, b int) bool {
		return items[a].index < items[b].index
	})
	ids := make([]runtime.RemoteObjectID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.id)
	}
	return ids
}

func (f *frame) Evaluate(ctx context.Context, expression string) error {
	if f.index == 0 {
		return f.page.eval(ctx, expression, nil)
	}
	script := fmt.Sprintf(`(() => {
		%s
		return frameEl.contentWindow.eval(%s);
	})()`, documentPrelude(f.index), quote(expression))
	return f.page.eval(ctx, script, nil)
}

type element struct {
	frame *frame
	id    runtime.RemoteObjectID
}

// function wraps body in a function declaration with el bound to this element. body must return a value.
func function(body string) string {
	return "function() {\n\tconst el = this;\n" + body + "\n}"
}

const requireElement = `if (!el.isConnected) { throw new Error('element is detached from the document'); }`

func (e *element) eval(ctx context.Context, body string, result interface{}) error {
	return e.frame.page.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exception, err := runtime.CallFunctionOn(function(body)).
			WithObjectID(e.id).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return exception
		}
		if result == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), result)
	}))
}

func (e *element) Attached(ctx context.Context) (bool, error) {
	var attached bool
	err := e.eval(ctx, `return el.isConnected;`, &attached)
	return attached, err
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.eval(ctx, `
		if (!el.isConnected) { return false; }
		const rect = el.getBoundingClientRect();
		const style = el.ownerDocument.defaultView.getComputedStyle(el);
		return rect.width > 0 && rect.height > 0 && style.visibility !== 'hidden' && style.display !== 'none';
	`, &visible)
	return visible, err
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.eval(ctx, requireElement+`el.scrollIntoView({block: 'center', inline: 'center'}); return true;`, nil)
}

type box struct {
	X, Y, Width, Height float64
}

func (b box) center() browser.Point {
	return browser.Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// box returns the element's border box in top-level viewport coordinates
func (e *element) box(ctx context.Context) (box, error) {
	var b box
	err := e.eval(ctx, requireElement+`
		const rect = el.getBoundingClientRect();
		let x = rect.left, y = rect.top;
		let frameEl = el.ownerDocument.defaultView.frameElement;
		while (frameEl) {
			const frameRect = frameEl.getBoundingClientRect();
			x += frameRect.left + frameEl.clientLeft;
			y += frameRect.top + frameEl.clientTop;
			frameEl = frameEl.ownerDocument.defaultView.frameElement;
		}
		return {X: x, Y: y, Width: rect.width, Height: rect.height};
	`, &b)
	return b, err
}

func mouseButton(button browser.MouseButton) input.MouseButton {
	if button == browser.RightButton {
		return input.Right
	}
	return input.Left
}

func (e *element) Click(ctx context.Context, opts browser.ClickOptions) error {
	b, err := e.box(ctx)
	if err != nil {
		return err
	}
	point := b.center()
	if opts.Offset != nil {
		point = browser.Point{X: b.X + opts.Offset.X, Y: b.Y + opts.Offset.Y}
	}
	button := mouseButton(opts.Button)
	actions := []chromedp.Action{input.DispatchMouseEvent(input.MouseMoved, point.X, point.Y)}
	for i := 1; i <= opts.Clicks(); i++ {
		actions = append(actions,
			input.DispatchMouseEvent(input.MousePressed, point.X, point.Y).WithButton(button).WithClickCount(int64(i)),
			input.DispatchMouseEvent(input.MouseReleased, point.X, point.Y).WithButton(button).WithClickCount(int64(i)),
		)
	}
	return e.frame.page.run(ctx, actions...)
}

func (e *element) Hover(ctx context.Context) error {
	b, err := e.box(ctx)
	if err != nil {
		return err
	}
	point := b.center()
	return e.frame.page.run(ctx, input.DispatchMouseEvent(input.MouseMoved, point.X, point.Y))
}

func (e *element) Fill(ctx context.Context, value string) error {
	err := e.eval(ctx, requireElement+`
		el.focus();
		if ('value' in el) {
			el.value = '';
			el.dispatchEvent(new Event('input', {bubbles: true}));
		} else if (el.isContentEditable) {
			el.textContent = '';
		}
		return true;
	`, nil)
	if err != nil {
		return err
	}
	if value != "" {
		if err := e.frame.page.run(ctx, input.InsertText(value)); err != nil {
			return err
		}
	}
	return e.eval(ctx, requireElement+`el.dispatchEvent(new Event('change', {bubbles: true})); return true;`, nil)
}

func (e *element) InnerText(ctx context.Context) (string, error) {
	var text string
	err := e.eval(ctx, requireElement+`return el.innerText || el.textContent || '';`, &text)
	return text, err
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var attr struct {
		Present bool
		Value   string
	}
	err := e.eval(ctx, requireElement+fmt.Sprintf(`
		const name = %s;
		return {Present: el.hasAttribute(name), Value: el.getAttribute(name) || ''};
	`, quote(name)), &attr)
	return attr.Value, attr.Present, err
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
	start, end := from.center(), to.center()
	actions := []chromedp.Action{
		input.DispatchMouseEvent(input.MouseMoved, start.X, start.Y),
		input.DispatchMouseEvent(input.MousePressed, start.X, start.Y).WithButton(input.Left).WithClickCount(1),
	}
	for i := 1; i <= dragSteps; i++ {
		fraction := float64(i) / dragSteps
		x := start.X + (end.X-start.X)*fraction
		y := start.Y + (end.Y-start.Y)*fraction
		actions = append(actions, input.DispatchMouseEvent(input.MouseMoved, x, y).WithButton(input.Left))
	}
	actions = append(actions, input.DispatchMouseEvent(input.MouseReleased, end.X, end.Y).WithButton(input.Left).WithClickCount(1))
	return e.frame.page.run(ctx, actions...)
}
