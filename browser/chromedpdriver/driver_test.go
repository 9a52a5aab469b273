package chromedpdriver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/johnstarich/replayer/browser"
	"github.com/johnstarich/replayer/browser/drivertest"
	"github.com/johnstarich/replayer/playback"
	"github.com/johnstarich/replayer/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestActionContextKeepsTab(t *testing.T) {
	tabCtx, cancelTab := chromedp.NewContext(context.Background())
	defer cancelTab()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	runCtx, stop := actionContext(tabCtx, ctx)
	defer stop()
	assert.Same(t, chromedp.FromContext(tabCtx), chromedp.FromContext(runCtx), "actions must find the tab's target")
	expectDeadline, _ := ctx.Deadline()
	deadline, ok := runCtx.Deadline()
	assert.True(t, ok)
	assert.Equal(t, expectDeadline, deadline)

	cancel()
	select {
	case <-runCtx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Action context outlived the caller's context")
	}
	assert.NoError(t, tabCtx.Err(), "canceling one call must not close the tab")
}

func TestActionContextStop(t *testing.T) {
	tabCtx, cancelTab := chromedp.NewContext(context.Background())
	defer cancelTab()

	runCtx, stop := actionContext(tabCtx, context.Background())
	_, hasDeadline := runCtx.Deadline()
	assert.False(t, hasDeadline)
	stop()
	assert.Error(t, runCtx.Err())
	assert.NoError(t, tabCtx.Err())
}

func TestArrayItems(t *testing.T) {
	props := []*runtime.PropertyDescriptor{
		{Name: "1", Value: &runtime.RemoteObject{ObjectID: "second"}},
		{Name: "length", Value: &runtime.RemoteObject{Type: runtime.TypeNumber}},
		{Name: "0", Value: &runtime.RemoteObject{ObjectID: "first"}},
		{Name: "2"},
		{Name: "__proto__", Value: &runtime.RemoteObject{ObjectID: "proto"}},
	}
	assert.Equal(t, []runtime.RemoteObjectID{"first", "second"}, arrayItems(props))
	assert.Empty(t, arrayItems(nil))
}

func TestDriver(t *testing.T) {
	if testing.Short() {
		t.Skip("Starts a browser")
	}
	drivertest.Run(t, Launch)
}

func TestPlayNavigateAndAssert(t *testing.T) {
	if testing.Short() {
		t.Skip("Starts a browser")
	}
	server := drivertest.NewServer(t)
	engine := playback.New(Launch, playback.Options{
		Browser:     browser.Config{},
		Logger:      zaptest.NewLogger(t),
		ArtifactDir: t.TempDir(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	result := engine.Play(ctx, recording.Recording{Title: "fixture", Steps: []recording.Step{
		{Type: recording.Navigate, URL: server.URL + "/"},
		{Type: recording.Assert, AssertedEvents: []recording.AssertionEvent{
			{Type: recording.AssertNavigation, URL: server.URL, Title: drivertest.FixtureTitle},
		}},
		{Type: recording.Click, Selectors: [][]string{{"aria/Go", "#go"}}},
		{Type: recording.Assert, AssertedEvents: []recording.AssertionEvent{
			{Type: recording.AssertTextContent, Selector: "#out", Text: "clicked 1"},
		}},
	}})
	if strings.HasPrefix(result.ErrorMessage, "Failed to start browser session") {
		t.Skip("Browser is not available")
	}
	require.Equal(t, playback.Passed, result.Status, result.ErrorMessage)
	assert.NotContains(t, result.ErrorMessage, "panicked")
}
