// Package drivertest checks a browser driver against a real browser and a local fixture site.
package drivertest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/johnstarich/replayer/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// FixtureTitle is the title of the fixture's index page
const FixtureTitle = "Replayer Fixture"

const (
	indexPage = `<!DOCTYPE html>
<html>
<head><title>` + FixtureTitle + `</title></head>
<body>
	<script>window.clicks = 0;</script>
	<button id="go" onclick="document.getElementById('out').textContent = 'clicked ' + (++window.clicks)">Go</button>
	<input id="name" value="old" oninput="document.getElementById('changed').textContent = this.value">
	<div id="out"></div>
	<div id="changed"></div>
	<span class="item" style="display: none">hidden item</span>
	<span class="item">shown item</span>
	<a id="popup" href="#" onclick="window.open('/popup'); return false;">Open</a>
	<iframe src="/frame" width="300" height="100"></iframe>
</body>
</html>`
	framePage = `<!DOCTYPE html>
<html><body><p id="inner">inside</p></body></html>`
	popupPage = `<!DOCTYPE html>
<html><head><title>Popup</title></head><body>popup</body></html>`
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// NewServer serves the fixture site until the test ends
func NewServer(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/":      indexPage,
		"/frame": framePage,
		"/popup": popupPage,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	t.Cleanup(server.Close)
	return server
}

// Run launches a session with launch and exercises every Session, Page, Frame and Element method against the fixture site.
// Skips the test if the browser can't start.
func Run(t *testing.T, launch browser.Launcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	launchCtx, launchCancel := context.WithTimeout(ctx, 30*time.Second)
	session, err := launch(launchCtx, browser.Config{Logger: zaptest.NewLogger(t)})
	launchCancel()
	if err != nil {
		t.Skip("Browser is not available:", err)
	}
	defer func() {
		assert.NoError(t, session.Close())
	}()
	server := NewServer(t)

	page, err := session.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, page.Navigate(ctx, server.URL+"/"))
	idleCtx, idleCancel := context.WithTimeout(ctx, 10*time.Second)
	assert.NoError(t, page.WaitNetworkIdle(idleCtx))
	idleCancel()

	url, err := page.URL(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, server.URL), url)
	title, err := page.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, FixtureTitle, title)

	main := page.MainFrame()
	t.Run("click", func(t *testing.T) {
		button := queryOne(ctx, t, main, browser.Locator{Kind: browser.CSS, Value: "#go"})
		attached, err := button.Attached(ctx)
		require.NoError(t, err)
		assert.True(t, attached)
		visible, err := button.Visible(ctx)
		require.NoError(t, err)
		assert.True(t, visible)

		require.NoError(t, button.ScrollIntoView(ctx))
		require.NoError(t, button.Click(ctx, browser.ClickOptions{}))
		assert.Equal(t, "clicked 1", innerText(ctx, t, main, "#out"))
		require.NoError(t, button.Hover(ctx))
	})

	t.Run("query kinds", func(t *testing.T) {
		items, err := main.Query(ctx, browser.Locator{Kind: browser.CSS, Value: ".item"})
		require.NoError(t, err)
		require.Len(t, items, 2)
		visible, err := items[0].Visible(ctx)
		require.NoError(t, err)
		assert.False(t, visible)
		visible, err = items[1].Visible(ctx)
		require.NoError(t, err)
		assert.True(t, visible)

		queryOne(ctx, t, main, browser.Locator{Kind: browser.XPath, Value: `//button[@id="go"]`})
		queryOne(ctx, t, main, browser.Locator{Kind: browser.TestID, Value: "missing"}, 0)

		byText, err := main.Query(ctx, browser.Locator{Kind: browser.Text, Value: "shown item"})
		require.NoError(t, err)
		assert.NotEmpty(t, byText)

		none, err := main.Query(ctx, browser.Locator{Kind: browser.CSS, Value: "#does-not-exist"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("attributes leave the page unchanged", func(t *testing.T) {
		button := queryOne(ctx, t, main, browser.Locator{Kind: browser.CSS, Value: "#go"})
		value, present, err := button.Attribute(ctx, "id")
		require.NoError(t, err)
		assert.True(t, present)
		assert.Equal(t, "go", value)
		_, present, err = button.Attribute(ctx, "data-nope")
		require.NoError(t, err)
		assert.False(t, present)

		// querying must not tag elements
		count := queryCount(ctx, t, main, "[data-replayer-id]")
		assert.Equal(t, 0, count)
	})

	t.Run("fill and type", func(t *testing.T) {
		input := queryOne(ctx, t, main, browser.Locator{Kind: browser.CSS, Value: "#name"})
		require.NoError(t, input.Fill(ctx, "new value"))
		assert.Equal(t, "new value", innerText(ctx, t, main, "#changed"))
		require.NoError(t, page.Type(ctx, "!"))
		assert.Contains(t, innerText(ctx, t, main, "#changed"), "!")
	})

	t.Run("frames", func(t *testing.T) {
		frames, err := page.Frames(ctx)
		require.NoError(t, err)
		require.Len(t, frames, 2)
		assert.Equal(t, "inside", innerText(ctx, t, frames[1], "#inner"))
		assert.NoError(t, frames[1].Evaluate(ctx, `window.scrollBy(0, 100)`))
	})

	t.Run("viewport and screenshot", func(t *testing.T) {
		require.NoError(t, page.SetViewport(ctx, 800, 600))
		require.NoError(t, main.Evaluate(ctx, `window.scrollBy(0, 100)`))
		shot, err := page.Screenshot(ctx)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(shot, pngSignature), "screenshot is a PNG")
	})

	t.Run("popup", func(t *testing.T) {
		link := queryOne(ctx, t, main, browser.Locator{Kind: browser.CSS, Value: "#popup"})
		require.NoError(t, link.Click(ctx, browser.ClickOptions{}))

		var popup browser.Page
		assert.Eventually(t, func() bool {
			pages := session.Pages()
			if len(pages) < 2 {
				return false
			}
			popup = pages[len(pages)-1]
			return true
		}, 10*time.Second, 100*time.Millisecond)
		require.NotNil(t, popup)
		assert.Eventually(t, func() bool {
			popupURL, err := popup.URL(ctx)
			return err == nil && strings.HasSuffix(popupURL, "/popup")
		}, 10*time.Second, 100*time.Millisecond)

		require.NoError(t, popup.Close(ctx))
		assert.True(t, popup.Closed())
		assert.False(t, page.Closed())
	})
}

func queryOne(ctx context.Context, t *testing.T, frame browser.Frame, locator browser.Locator, count ...int) browser.Element {
	t.Helper()
	expect := 1
	if len(count) > 0 {
		expect = count[0]
	}
	elements, err := frame.Query(ctx, locator)
	require.NoError(t, err)
	require.Len(t, elements, expect, locator.String())
	if expect == 0 {
		return nil
	}
	return elements[0]
}

func queryCount(ctx context.Context, t *testing.T, frame browser.Frame, selector string) int {
	t.Helper()
	elements, err := frame.Query(ctx, browser.Locator{Kind: browser.CSS, Value: selector})
	require.NoError(t, err)
	return len(elements)
}

func innerText(ctx context.Context, t *testing.T, frame browser.Frame, selector string) string {
	t.Helper()
	element := queryOne(ctx, t, frame, browser.Locator{Kind: browser.CSS, Value: selector})
	text, err := element.InnerText(ctx)
	require.NoError(t, err)
	return strings.TrimSpace(text)
}
