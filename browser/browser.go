// Package browser defines the capabilities playback needs from a browser automation driver.
//
// Drivers register themselves by name with Register, usually from an init func, and are started with Launch.
package browser

import (
	"context"
	"fmt"
	"strings"
)

// Session is one running browser. Closing it closes every page.
type Session interface {
	// NewPage opens a new page. The first page opened is the session's main page.
	NewPage(ctx context.Context) (Page, error)
	// Pages returns every page seen by this session in open order, including popups opened by scripts.
	// Closed pages stay in the list.
	Pages() []Page
	// Close shuts down the browser
	Close() error
}

// Page is a single tab or popup window
type Page interface {
	// MainFrame returns the page's top-level frame
	MainFrame() Frame
	// Frames returns all frames in document order. The main frame is first.
	Frames(ctx context.Context) ([]Frame, error)
	// Navigate loads url and waits for the load event or ctx's deadline
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// WaitNetworkIdle blocks until no network requests are in flight or ctx is done
	WaitNetworkIdle(ctx context.Context) error

	// KeyDown presses a key without releasing it. Keys use DOM key names, like "Enter" or "a".
	KeyDown(ctx context.Context, key string) error
	// KeyUp releases a key
	KeyUp(ctx context.Context, key string) error
	// Press presses and releases a key
	Press(ctx context.Context, key string) error
	// Type sends text to the focused element
	Type(ctx context.Context, text string) error

	SetViewport(ctx context.Context, width, height int) error
	// Screenshot captures the full page as a PNG
	Screenshot(ctx context.Context) ([]byte, error)
	Close(ctx context.Context) error
	Closed() bool
}

// Frame is a document within a page
type Frame interface {
	// Query returns all elements matching locator in document order
	Query(ctx context.Context, locator Locator) ([]Element, error)
	// Evaluate runs a JavaScript expression in the frame, waiting for it to settle if it returns a promise
	Evaluate(ctx context.Context, expression string) error
}

// Element is a handle to a DOM element
type Element interface {
	// Attached returns true while the element is connected to its document
	Attached(ctx context.Context) (bool, error)
	// Visible returns true if the element has a non-empty box and is not hidden by style
	Visible(ctx context.Context) (bool, error)
	ScrollIntoView(ctx context.Context) error
	Click(ctx context.Context, opts ClickOptions) error
	Hover(ctx context.Context) error
	// Fill replaces the element's value with value
	Fill(ctx context.Context, value string) error
	InnerText(ctx context.Context) (string, error)
	// Attribute returns the named attribute. ok is false if the attribute is absent.
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
	// DragTo drags this element onto target
	DragTo(ctx context.Context, target Element) error
}

// LocatorKind is the query language of a Locator
type LocatorKind int

// Locator kinds
const (
	CSS LocatorKind = iota
	XPath
	// Text matches elements whose text content contains Value
	Text
	// TestID matches elements whose data-testid attribute equals Value
	TestID
)

func (k LocatorKind) String() string {
	switch k {
	case CSS:
		return "css"
	case XPath:
		return "xpath"
	case Text:
		return "text"
	case TestID:
		return "testid"
	default:
		return fmt.Sprintf("LocatorKind(%d)", int(k))
	}
}

// Locator is a driver-queryable element expression
type Locator struct {
	Kind  LocatorKind
	Value string
}

func (l Locator) String() string {
	return l.Kind.String() + "=" + l.Value
}

var cssStringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)

// CSS returns an equivalent CSS selector for CSS and TestID locators. ok is false for other kinds.
func (l Locator) CSS() (selector string, ok bool) {
	switch l.Kind {
	case CSS:
		return l.Value, true
	case TestID:
		return `[data-testid="` + cssStringEscaper.Replace(l.Value) + `"]`, true
	default:
		return "", false
	}
}

// MouseButton selects which button a click uses
type MouseButton int

// Mouse buttons
const (
	LeftButton MouseButton = iota
	RightButton
)

// ClickOptions configures Element.Click
type ClickOptions struct {
	Button MouseButton
	// Count is the number of clicks. Zero means one.
	Count int
	// Offset positions the click relative to the element's top-left corner. Nil clicks the center.
	Offset *Point
}

// Clicks returns the effective click count
func (o ClickOptions) Clicks() int {
	if o.Count < 1 {
		return 1
	}
	return o.Count
}

// Point is a position in CSS pixels
type Point struct {
	X, Y float64
}
