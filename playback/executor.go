package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
)

// ActionKind is the interaction an Action performs on a resolved element
type ActionKind int

// Action kinds
const (
	ActionClick ActionKind = iota
	ActionFill
	ActionHover
	ActionWaitAttached
)

// Action is one interaction with an element, run under Timeout
type Action struct {
	Kind    ActionKind
	Click   browser.ClickOptions
	Value   string
	Timeout time.Duration
}

func (a Action) String() string {
	switch a.Kind {
	case ActionClick:
		if a.Click.Button == browser.RightButton {
			return "right click"
		}
		if a.Click.Clicks() > 1 {
			return fmt.Sprintf("click x%d", a.Click.Clicks())
		}
		return "click"
	case ActionFill:
		return "fill"
	case ActionHover:
		return "hover"
	case ActionWaitAttached:
		return "wait for attached"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(a.Kind))
	}
}

// execute scrolls element into view then performs action
func (r *runner) execute(ctx context.Context, element browser.Element, action Action) error {
	ctx, cancel := context.WithTimeout(ctx, action.Timeout)
	defer cancel()

	if err := element.ScrollIntoView(ctx); err != nil {
		return errors.Wrap(err, "Failed to scroll element into view")
	}
	var err error
	switch action.Kind {
	case ActionClick:
		err = element.Click(ctx, action.Click)
	case ActionFill:
		err = element.Fill(ctx, action.Value)
	case ActionHover:
		err = element.Hover(ctx)
	case ActionWaitAttached:
		var attached bool
		attached, err = element.Attached(ctx)
		if err == nil && !attached {
			err = errors.New("Element detached")
		}
	default:
		err = errors.Errorf("Unknown action: %s", action)
	}
	return errors.Wrapf(err, "Failed to %s", action)
}
