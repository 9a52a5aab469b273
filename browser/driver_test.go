package browser

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegisterAndLaunch(t *testing.T) {
	var gotConfig Config
	Register("Test-Driver", func(ctx context.Context, config Config) (Session, error) {
		gotConfig = config
		return nil, errors.New("no browser here")
	})
	assert.Contains(t, Drivers(), "test-driver")

	_, err := Launch(context.Background(), "TEST-driver", Config{Channel: "msedge"})
	assert.EqualError(t, err, "Failed to launch test-driver browser: no browser here")
	assert.Equal(t, "msedge", gotConfig.Channel)
	assert.NotNil(t, gotConfig.Logger, "Logger should default to a no-op logger")

	assert.Panics(t, func() {
		Register("test-driver", nil)
	})
}

func TestLaunchUnknownDriver(t *testing.T) {
	_, err := Launch(context.Background(), "does-not-exist", Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Driver does not exist with name: "does-not-exist"`)
}

func TestLocatorString(t *testing.T) {
	assert.Equal(t, "css=#a", Locator{Kind: CSS, Value: "#a"}.String())
	assert.Equal(t, "xpath=//a", Locator{Kind: XPath, Value: "//a"}.String())
	assert.Equal(t, "text=Sign in", Locator{Kind: Text, Value: "Sign in"}.String())
	assert.Equal(t, "testid=login", Locator{Kind: TestID, Value: "login"}.String())
	assert.Equal(t, "LocatorKind(9)", LocatorKind(9).String())
}

func TestClicks(t *testing.T) {
	assert.Equal(t, 1, ClickOptions{}.Clicks())
	assert.Equal(t, 2, ClickOptions{Count: 2}.Clicks())
}

func TestLogWriter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := LogWriter(zap.New(core))
	n, err := w.Write([]byte("  launched chrome \n"))
	require.NoError(t, err)
	assert.Equal(t, 19, n)
	_, _ = w.Write([]byte("\n"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "launched chrome", logs.All()[0].Message)
}

func TestLocatorCSS(t *testing.T) {
	for _, tc := range []struct {
		locator Locator
		css     string
		ok      bool
	}{
		{Locator{Kind: CSS, Value: "#a > b"}, "#a > b", true},
		{Locator{Kind: TestID, Value: "login"}, `[data-testid="login"]`, true},
		{Locator{Kind: TestID, Value: `say "hi"`}, `[data-testid="say \"hi\""]`, true},
		{Locator{Kind: TestID, Value: `a\b`}, `[data-testid="a\\b"]`, true},
		{Locator{Kind: XPath, Value: "//a"}, "", false},
		{Locator{Kind: Text, Value: "Sign in"}, "", false},
	} {
		t.Run(tc.locator.String(), func(t *testing.T) {
			css, ok := tc.locator.CSS()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.css, css)
		})
	}
}
