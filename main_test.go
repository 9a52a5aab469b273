package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/johnstarich/replayer/browser"
	"github.com/johnstarich/replayer/browser/browsertest"
	"github.com/johnstarich/replayer/config"
	"github.com/johnstarich/replayer/consts"
	"github.com/johnstarich/replayer/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const fakeDriver = "main-test-fake"

func init() {
	browser.Register(fakeDriver, func(ctx context.Context, config browser.Config) (browser.Session, error) {
		return browsertest.NewSession(), nil
	})
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, consts.Version+"\n", out.String())
}

func TestSchemaCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"schema"})
	require.NoError(t, cmd.Execute())
	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &schema))
	assert.Equal(t, "Browser recording", schema["title"])
}

func writeRecording(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0600))
	return path
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Browser.Driver = fakeDriver
	cfg.ArtifactDir = t.TempDir()
	return cfg
}

func TestPlayFile(t *testing.T) {
	path := writeRecording(t, `{"title": "nothing to do", "steps": [{"type": "emulateNetworkConditions"}]}`)
	var out bytes.Buffer
	err := playFile(context.Background(), &out, path, runFlags{}, testConfig(t), zap.NewNop())
	require.NoError(t, err)

	var result playback.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, playback.Passed, result.Status)
	assert.True(t, result.ScreenshotMissing)
}

func TestPlayFileFailure(t *testing.T) {
	path := writeRecording(t, `{"title": "bad scheme", "steps": [{"type": "navigate", "url": "file:///etc/passwd"}]}`)
	var out bytes.Buffer
	err := playFile(context.Background(), &out, path, runFlags{report: true}, testConfig(t), zap.NewNop())
	assert.Equal(t, errPlaybackFailed, err)

	var result playback.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, playback.Failed, result.Status)
	assert.Contains(t, result.ErrorMessage, "Step 1 (navigate) failed")
}

func TestPlayFileInvalidRecording(t *testing.T) {
	path := writeRecording(t, `{"steps": [{"url": "https://example.test"}]}`)
	err := playFile(context.Background(), ioutil.Discard, path, runFlags{}, testConfig(t), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid recording")
}
