package playwrightdriver

import (
	"context"
	"testing"
	"time"

	"github.com/johnstarich/replayer/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector(t *testing.T) {
	for _, tc := range []struct {
		locator browser.Locator
		expect  string
	}{
		{browser.Locator{Kind: browser.CSS, Value: "#a"}, "css=#a"},
		{browser.Locator{Kind: browser.TestID, Value: "go"}, `css=[data-testid="go"]`},
		{browser.Locator{Kind: browser.XPath, Value: "//a"}, "xpath=//a"},
		{browser.Locator{Kind: browser.Text, Value: "Sign in"}, "text=Sign in"},
	} {
		sel, err := selector(tc.locator)
		require.NoError(t, err)
		assert.Equal(t, tc.expect, sel)
	}

	_, err := selector(browser.Locator{Kind: browser.LocatorKind(9), Value: "x"})
	assert.Error(t, err)
}

func TestTimeout(t *testing.T) {
	assert.Equal(t, float64(defaultTimeout.Milliseconds()), *timeout(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ms := *timeout(ctx)
	assert.LessOrEqual(t, ms, float64(time.Minute.Milliseconds()))
	assert.Greater(t, ms, float64(50*time.Second.Milliseconds()))

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	assert.Equal(t, float64(1), *timeout(expired))
}
