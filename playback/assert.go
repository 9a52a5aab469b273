package playback

import (
	"context"
	"strings"

	"github.com/johnstarich/replayer/browser"
	"github.com/johnstarich/replayer/recording"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// evaluate checks one assertion against the active page and frame. Unknown kinds pass.
func (r *runner) evaluate(ctx context.Context, event recording.AssertionEvent) error {
	switch event.Type {
	case recording.AssertNavigation:
		return r.assertNavigation(ctx, event)
	case recording.AssertElementAppears:
		_, err := r.assertState(ctx, event, stateAttached)
		return err
	case recording.AssertElementVisible:
		_, err := r.assertState(ctx, event, stateVisible)
		return err
	case recording.AssertElementHidden:
		_, err := r.assertState(ctx, event, stateHidden)
		return err
	case recording.AssertTextContent:
		return r.assertText(ctx, event)
	case recording.AssertAttributeValue:
		return r.assertAttribute(ctx, event)
	default:
		r.logger.Warn("Skipping unknown assertion type", zap.String("type", string(event.Type)))
		return nil
	}
}

func (r *runner) assertNavigation(ctx context.Context, event recording.AssertionEvent) error {
	page := r.state.page
	actualURL, err := page.URL(ctx)
	if err != nil {
		return errors.Wrap(err, "Failed to read page URL")
	}
	if event.URL != "" && !strings.Contains(actualURL, event.URL) {
		return errors.WithStack(&AssertionError{Kind: event.Type, Subject: "URL", Expected: event.URL, Actual: actualURL})
	}

	expectedTitle := strings.TrimSpace(event.Title)
	if expectedTitle == "" {
		return nil
	}
	actualTitle, err := page.Title(ctx)
	if err != nil {
		return errors.Wrap(err, "Failed to read page title")
	}
	fold := cases.Fold()
	if !strings.Contains(fold.String(strings.TrimSpace(actualTitle)), fold.String(expectedTitle)) {
		return errors.WithStack(&AssertionError{Kind: event.Type, Subject: "title", Expected: expectedTitle, Actual: actualTitle})
	}
	return nil
}

func describeSelectors(event recording.AssertionEvent) string {
	selectors := event.RawSelectors()
	if len(selectors) == 0 {
		return "element"
	}
	return "element " + strings.Join(selectors, " | ")
}

func (r *runner) assertState(ctx context.Context, event recording.AssertionEvent, state elementState) (browser.Element, error) {
	element, err := r.waitForState(ctx, r.state.frame, event.RawSelectors(), state, r.timing.AssertTimeout)
	if err != nil {
		if errors.Is(err, errNoSupportedSelectors) {
			return nil, errors.Wrapf(err, "Assertion %s has no usable selector", event.Type)
		}
		actual := "not " + state.String()
		r.logger.Debug("Element state assertion timed out", zap.Error(err))
		return nil, errors.WithStack(&AssertionError{Kind: event.Type, Subject: describeSelectors(event), Expected: state.String(), Actual: actual})
	}
	return element, nil
}

func (r *runner) assertText(ctx context.Context, event recording.AssertionEvent) error {
	element, err := r.assertState(ctx, event, stateAttached)
	if err != nil {
		return err
	}
	text, err := element.InnerText(ctx)
	if err != nil {
		return errors.Wrap(err, "Failed to read element text")
	}
	if !strings.Contains(text, event.Text) {
		return errors.WithStack(&AssertionError{Kind: event.Type, Subject: describeSelectors(event), Expected: event.Text, Actual: text})
	}
	return nil
}

func (r *runner) assertAttribute(ctx context.Context, event recording.AssertionEvent) error {
	if event.Attribute == "" {
		return errors.Errorf("Assertion %s is missing an attribute name", event.Type)
	}
	element, err := r.assertState(ctx, event, stateAttached)
	if err != nil {
		return err
	}
	value, _, err := element.Attribute(ctx, event.Attribute)
	if err != nil {
		return errors.Wrapf(err, "Failed to read attribute %q", event.Attribute)
	}
	if !strings.Contains(value, event.Value) {
		subject := describeSelectors(event) + " attribute " + event.Attribute
		return errors.WithStack(&AssertionError{Kind: event.Type, Subject: subject, Expected: event.Value, Actual: value})
	}
	return nil
}
