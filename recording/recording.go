// Package recording describes browser recordings: an ordered list of UI steps to replay against a live page.
//
// The JSON layout follows the Chrome DevTools Recorder export format, extended with a few step kinds
// (doubleClick, rightClick, type, press, dragAndDrop, switchToPopup, switchToMain) and assertion kinds.
package recording

// Recording is an ordered script of UI actions. It is never mutated during playback.
type Recording struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Steps []Step `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// StepKind identifies which action a Step performs
type StepKind string

// Step kinds
const (
	Navigate        StepKind = "navigate"
	Click           StepKind = "click"
	DoubleClick     StepKind = "doubleClick"
	RightClick      StepKind = "rightClick"
	Type            StepKind = "type"
	Press           StepKind = "press"
	DragAndDrop     StepKind = "dragAndDrop"
	Change          StepKind = "change"
	Hover           StepKind = "hover"
	WaitForSelector StepKind = "waitForSelector"
	KeyDown         StepKind = "keyDown"
	KeyUp           StepKind = "keyUp"
	SetViewport     StepKind = "setViewport"
	Scroll          StepKind = "scroll"
	WaitForTimeout  StepKind = "waitForTimeout"
	Screenshot      StepKind = "screenshot"
	Close           StepKind = "close"
	SwitchToPopup   StepKind = "switchToPopup"
	SwitchToMain    StepKind = "switchToMain"
	Assert          StepKind = "assert"
)

// StepKinds lists every supported step kind
var StepKinds = []StepKind{
	Navigate, Click, DoubleClick, RightClick, Type, Press, DragAndDrop, Change, Hover, WaitForSelector,
	KeyDown, KeyUp, SetViewport, Scroll, WaitForTimeout, Screenshot, Close, SwitchToPopup, SwitchToMain, Assert,
}

// Known returns true if k is one of StepKinds
func (k StepKind) Known() bool {
	for _, kind := range StepKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Interactive returns true if the step acts on an element located by its selector groups
func (k StepKind) Interactive() bool {
	switch k {
	case Click, DoubleClick, RightClick, Change, Hover, WaitForSelector:
		return true
	default:
		return false
	}
}

// Step is one action within a Recording. Which fields are set depends on Type.
type Step struct {
	Type StepKind `json:"type" yaml:"type" jsonschema:"required"`

	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	Key   string `json:"key,omitempty" yaml:"key,omitempty"`

	OffsetX float64 `json:"offsetX,omitempty" yaml:"offsetX,omitempty"`
	OffsetY float64 `json:"offsetY,omitempty" yaml:"offsetY,omitempty"`
	Width   int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height  int     `json:"height,omitempty" yaml:"height,omitempty"`

	// Timeout overrides the default timeout for this step kind, in milliseconds
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty" jsonschema:"minimum=0"`
	// Frame is a path of frame indexes selecting the frame to act in
	Frame []int `json:"frame,omitempty" yaml:"frame,omitempty"`

	// Selectors are prioritized groups of alternative raw selectors for the same element
	Selectors [][]string `json:"selectors,omitempty" yaml:"selectors,omitempty"`
	// TargetSelectors locate the drop target of a dragAndDrop step
	TargetSelectors [][]string `json:"targetSelectors,omitempty" yaml:"targetSelectors,omitempty"`

	AssertedEvents []AssertionEvent `json:"assertedEvents,omitempty" yaml:"assertedEvents,omitempty"`
}

// HasFrame returns true if the step selects a frame before running
func (s Step) HasFrame() bool {
	return len(s.Frame) > 0
}

// AssertionKind identifies what an AssertionEvent checks
type AssertionKind string

// Assertion kinds
const (
	AssertNavigation     AssertionKind = "navigation"
	AssertElementAppears AssertionKind = "elementAppears"
	AssertTextContent    AssertionKind = "textContent"
	AssertElementVisible AssertionKind = "elementVisible"
	AssertElementHidden  AssertionKind = "elementHidden"
	AssertAttributeValue AssertionKind = "attributeValue"
)

// AssertionKinds lists every supported assertion kind
var AssertionKinds = []AssertionKind{
	AssertNavigation, AssertElementAppears, AssertTextContent, AssertElementVisible, AssertElementHidden, AssertAttributeValue,
}

// Known returns true if k is one of AssertionKinds
func (k AssertionKind) Known() bool {
	for _, kind := range AssertionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// AssertionEvent is one expectation checked by an assert step
type AssertionEvent struct {
	Type AssertionKind `json:"type" yaml:"type" jsonschema:"required"`

	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	Selector  string     `json:"selector,omitempty" yaml:"selector,omitempty"`
	Selectors [][]string `json:"selectors,omitempty" yaml:"selectors,omitempty"`

	Text      string `json:"text,omitempty" yaml:"text,omitempty"`
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Value     string `json:"value,omitempty" yaml:"value,omitempty"`
}

// RawSelectors returns the event's selectors in priority order, Selector first
func (a AssertionEvent) RawSelectors() []string {
	var selectors []string
	if a.Selector != "" {
		selectors = append(selectors, a.Selector)
	}
	for _, group := range a.Selectors {
		selectors = append(selectors, group...)
	}
	return selectors
}
