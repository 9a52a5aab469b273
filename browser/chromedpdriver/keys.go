package chromedpdriver

import (
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/pkg/errors"
)

var namedKeys = map[string]string{
	"Alt":        kb.Alt,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"ArrowUp":    kb.ArrowUp,
	"Backspace":  kb.Backspace,
	"Control":    kb.Control,
	"Delete":     kb.Delete,
	"End":        kb.End,
	"Enter":      kb.Enter,
	"Escape":     kb.Escape,
	"Home":       kb.Home,
	"Insert":     kb.Insert,
	"Meta":       kb.Meta,
	"PageDown":   kb.PageDown,
	"PageUp":     kb.PageUp,
	"Shift":      kb.Shift,
	"Space":      " ",
	"Tab":        kb.Tab,
}

// keyRune maps a DOM key name, or a single character, to the rune kb encodes it as
func keyRune(key string) (rune, error) {
	if mapped, ok := namedKeys[key]; ok {
		key = mapped
	}
	if utf8.RuneCountInString(key) != 1 {
		return 0, errors.Errorf("Unsupported key: %q", key)
	}
	r, _ := utf8.DecodeRuneInString(key)
	return r, nil
}

func isDownEvent(t input.KeyType) bool {
	return t == input.KeyDown || t == input.KeyRawDown || t == input.KeyChar
}

func isUpEvent(t input.KeyType) bool {
	return t == input.KeyUp
}

func keyEvents(key string, include func(input.KeyType) bool) ([]chromedp.Action, error) {
	r, err := keyRune(key)
	if err != nil {
		return nil, err
	}
	var actions []chromedp.Action
	for _, event := range kb.Encode(r) {
		if include(event.Type) {
			actions = append(actions, event)
		}
	}
	return actions, nil
}
