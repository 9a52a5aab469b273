// Package browsertest provides an in-memory browser.Session for tests.
// Pages, frames and elements are plain structs: configure them directly, then inspect the recorded calls.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
)

// ErrClosed is returned by operations on a closed page
var ErrClosed = errors.New("Page is closed")

// Session is a fake browser.Session
type Session struct {
	mu     sync.Mutex
	pages  []*Page
	closed bool

	// NewPageErr fails NewPage when set
	NewPageErr error
	// CloseErr is returned from Close
	CloseErr error
	// Setup runs on each page created by NewPage
	Setup func(*Page)
}

var _ browser.Session = &Session{}

// NewSession creates an empty Session
func NewSession() *Session {
	return &Session{}
}

// Launcher returns a browser.Launcher which always returns s
func (s *Session) Launcher() browser.Launcher {
	return func(ctx context.Context, config browser.Config) (browser.Session, error) {
		return s, nil
	}
}

// NewPage implements browser.Session
func (s *Session) NewPage(ctx context.Context) (browser.Page, error) {
	if s.NewPageErr != nil {
		return nil, s.NewPageErr
	}
	page := s.addPage()
	if s.Setup != nil {
		s.Setup(page)
	}
	return page, nil
}

// OpenPopup simulates a script opening a new window
func (s *Session) OpenPopup() *Page {
	return s.addPage()
}

func (s *Session) addPage() *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := NewPage()
	s.pages = append(s.pages, page)
	return page
}

// Pages implements browser.Session
func (s *Session) Pages() []browser.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := make([]browser.Page, 0, len(s.pages))
	for _, p := range s.pages {
		pages = append(pages, p)
	}
	return pages
}

// Page returns the i'th page opened
func (s *Session) Page(i int) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[i]
}

// Close implements browser.Session
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.CloseErr
}

// Closed returns true after Close is called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Page is a fake browser.Page
type Page struct {
	mu     sync.Mutex
	calls  []string
	closed bool

	Main     *Frame
	Children []*Frame

	CurrentURL   string
	CurrentTitle string
	// OnNavigate runs after each successful Navigate, for example to change frames or the title
	OnNavigate  func(p *Page, url string)
	NavigateErr error
	IdleErr     error
	KeyErr      error

	Screenshot_   []byte
	ScreenshotErr error
}

var _ browser.Page = &Page{}

// NewPage creates a blank page with an empty main frame
func NewPage() *Page {
	return &Page{
		Main:        NewFrame("main"),
		CurrentURL:  "about:blank",
		Screenshot_: []byte("png"),
	}
}

func (p *Page) record(format string, args ...interface{}) {
	p.mu.Lock()
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

// Calls returns the page-level operations performed so far
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Page) checkOpen() error {
	if p.Closed() {
		return ErrClosed
	}
	return nil
}

// MainFrame implements browser.Page
func (p *Page) MainFrame() browser.Frame {
	return p.Main
}

// Frames implements browser.Page
func (p *Page) Frames(ctx context.Context) ([]browser.Frame, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	frames := []browser.Frame{p.Main}
	for _, f := range p.Children {
		frames = append(frames, f)
	}
	return frames, nil
}

// Navigate implements browser.Page
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.record("navigate %s", url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.mu.Lock()
	p.CurrentURL = url
	p.mu.Unlock()
	if p.OnNavigate != nil {
		p.OnNavigate(p, url)
	}
	return nil
}

// URL implements browser.Page
func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

// Title implements browser.Page
func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentTitle, nil
}

// WaitNetworkIdle implements browser.Page
func (p *Page) WaitNetworkIdle(ctx context.Context) error {
	p.record("idle")
	return p.IdleErr
}

// KeyDown implements browser.Page
func (p *Page) KeyDown(ctx context.Context, key string) error {
	p.record("keyDown %s", key)
	return p.KeyErr
}

// KeyUp implements browser.Page
func (p *Page) KeyUp(ctx context.Context, key string) error {
	p.record("keyUp %s", key)
	return p.KeyErr
}

// Press implements browser.Page
func (p *Page) Press(ctx context.Context, key string) error {
	p.record("press %s", key)
	return p.KeyErr
}

// Type implements browser.Page
func (p *Page) Type(ctx context.Context, text string) error {
	p.record("type %s", text)
	return p.KeyErr
}

// SetViewport implements browser.Page
func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.record("viewport %dx%d", width, height)
	return nil
}

// Screenshot implements browser.Page
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	p.record("screenshot")
	return p.Screenshot_, p.ScreenshotErr
}

// Close implements browser.Page
func (p *Page) Close(ctx context.Context) error {
	p.record("close")
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Closed implements browser.Page
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Frame is a fake browser.Frame
type Frame struct {
	mu        sync.Mutex
	name      string
	elements  map[browser.Locator][]*Element
	queries   map[browser.Locator]int
	evaluated []string

	// QueryFunc overrides static elements when set. attempt counts queries for the locator, starting at 1.
	QueryFunc func(locator browser.Locator, attempt int) []*Element
	QueryErr  error
	EvalErr   error
}

var _ browser.Frame = &Frame{}

// NewFrame creates an empty frame
func NewFrame(name string) *Frame {
	return &Frame{
		name:     name,
		elements: make(map[browser.Locator][]*Element),
		queries:  make(map[browser.Locator]int),
	}
}

func (f *Frame) String() string {
	return f.name
}

// Add makes elements match locator, in document order
func (f *Frame) Add(locator browser.Locator, elements ...*Element) *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[locator] = append(f.elements[locator], elements...)
	return f
}

// AddCSS is shorthand for Add with a CSS locator
func (f *Frame) AddCSS(selector string, elements ...*Element) *Frame {
	return f.Add(browser.Locator{Kind: browser.CSS, Value: selector}, elements...)
}

// Remove makes locator match nothing
func (f *Frame) Remove(locator browser.Locator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.elements, locator)
}

// Queries returns how many times locator was queried
func (f *Frame) Queries(locator browser.Locator) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[locator]
}

// Evaluated returns every evaluated expression
func (f *Frame) Evaluated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.evaluated...)
}

// Query implements browser.Frame
func (f *Frame) Query(ctx context.Context, locator browser.Locator) ([]browser.Element, error) {
	f.mu.Lock()
	f.queries[locator]++
	attempt := f.queries[locator]
	queryFunc := f.QueryFunc
	elements := f.elements[locator]
	f.mu.Unlock()

	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	if queryFunc != nil {
		elements = queryFunc(locator, attempt)
	}
	results := make([]browser.Element, 0, len(elements))
	for _, e := range elements {
		results = append(results, e)
	}
	return results, nil
}

// Evaluate implements browser.Frame
func (f *Frame) Evaluate(ctx context.Context, expression string) error {
	f.mu.Lock()
	f.evaluated = append(f.evaluated, expression)
	f.mu.Unlock()
	return f.EvalErr
}

// Element is a fake browser.Element
type Element struct {
	mu      sync.Mutex
	name    string
	actions []string

	Detached   bool
	Hidden     bool
	Text       string
	Attributes map[string]string
	// ActionErr fails Click, Hover, Fill and DragTo when set
	ActionErr error
}

var _ browser.Element = &Element{}

// NewElement creates an attached, visible element
func NewElement(name string) *Element {
	return &Element{name: name, Attributes: make(map[string]string)}
}

func (e *Element) String() string {
	return e.name
}

func (e *Element) record(format string, args ...interface{}) {
	e.mu.Lock()
	e.actions = append(e.actions, fmt.Sprintf(format, args...))
	e.mu.Unlock()
}

// Actions returns the interactions performed on this element
func (e *Element) Actions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.actions...)
}

// Attached implements browser.Element
func (e *Element) Attached(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Detached, nil
}

// Visible implements browser.Element
func (e *Element) Visible(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Detached && !e.Hidden, nil
}

// ScrollIntoView implements browser.Element
func (e *Element) ScrollIntoView(ctx context.Context) error {
	e.record("scroll")
	return nil
}

// Click implements browser.Element
func (e *Element) Click(ctx context.Context, opts browser.ClickOptions) error {
	button := "left"
	if opts.Button == browser.RightButton {
		button = "right"
	}
	if opts.Offset != nil {
		e.record("click %s x%d at %v,%v", button, opts.Clicks(), opts.Offset.X, opts.Offset.Y)
	} else {
		e.record("click %s x%d", button, opts.Clicks())
	}
	return e.ActionErr
}

// Hover implements browser.Element
func (e *Element) Hover(ctx context.Context) error {
	e.record("hover")
	return e.ActionErr
}

// Fill implements browser.Element
func (e *Element) Fill(ctx context.Context, value string) error {
	e.record("fill %s", value)
	return e.ActionErr
}

// InnerText implements browser.Element
func (e *Element) InnerText(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Text, nil
}

// Attribute implements browser.Element
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	value, ok := e.Attributes[name]
	return value, ok, nil
}

// DragTo implements browser.Element
func (e *Element) DragTo(ctx context.Context, target browser.Element) error {
	e.record("drag to %v", target)
	return e.ActionErr
}
