package playback

import (
	"strings"

	"github.com/johnstarich/replayer/browser"
)

var selectorPrefixes = []struct {
	prefix    string
	kind      browser.LocatorKind
	supported bool
}{
	{prefix: "aria/"},
	{prefix: "pierce/"},
	{prefix: "xpath/", kind: browser.XPath, supported: true},
	{prefix: "text/", kind: browser.Text, supported: true},
	{prefix: "css/", kind: browser.CSS, supported: true},
	{prefix: "testid/", kind: browser.TestID, supported: true},
}

// Normalize maps a raw recorded selector onto a driver locator.
// ok is false for selector languages drivers can't query (aria and pierce) and for empty selectors.
// Untagged selectors are treated as CSS.
func Normalize(raw string) (locator browser.Locator, ok bool) {
	for _, p := range selectorPrefixes {
		if strings.HasPrefix(raw, p.prefix) {
			value := raw[len(p.prefix):]
			if !p.supported || value == "" {
				return browser.Locator{}, false
			}
			return browser.Locator{Kind: p.kind, Value: value}, true
		}
	}
	if raw == "" {
		return browser.Locator{}, false
	}
	return browser.Locator{Kind: browser.CSS, Value: raw}, true
}
