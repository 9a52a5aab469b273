package evidence

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/johnstarich/replayer/browser/browsertest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture(t *testing.T) {
	for _, tc := range []struct {
		description string
		setup       func(p *browsertest.Page)
		missing     bool
		base64      string
	}{
		{
			description: "happy path",
			setup:       func(p *browsertest.Page) {},
			base64:      "cG5n",
		},
		{
			description: "closed page",
			setup: func(p *browsertest.Page) {
				_ = p.Close(context.Background())
			},
			missing: true,
		},
		{
			description: "driver failure",
			setup: func(p *browsertest.Page) {
				p.ScreenshotErr = errors.New("target crashed")
			},
			missing: true,
		},
		{
			description: "empty image",
			setup: func(p *browsertest.Page) {
				p.Screenshot_ = nil
			},
			missing: true,
		},
	} {
		t.Run(tc.description, func(t *testing.T) {
			page := browsertest.NewPage()
			tc.setup(page)
			shot := Capture(context.Background(), page)
			assert.Equal(t, tc.missing, shot.Missing)
			assert.Equal(t, tc.base64, shot.Base64())
			if tc.missing {
				assert.Error(t, shot.Reason)
			} else {
				assert.Equal(t, "image/png", shot.ContentType())
			}
		})
	}
}

func TestCaptureNilPage(t *testing.T) {
	shot := Capture(context.Background(), nil)
	assert.True(t, shot.Missing)
	assert.Equal(t, "", shot.Base64())
}

func TestWriteScreenshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	w := ArtifactWriter{Dir: dir}
	page := browsertest.NewPage()

	path, err := w.WriteScreenshot(context.Background(), page, 3)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "screenshot_3.png"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	page.ScreenshotErr = errors.New("nope")
	_, err = w.WriteScreenshot(context.Background(), page, 4)
	assert.Error(t, err)
	assert.NoFileExists(t, w.Path(4))
}

func TestRecordJSON(t *testing.T) {
	r := New("text/plain", []byte("hi"))
	data, err := json.Marshal(r)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "text/plain", decoded["ContentType"])
	assert.Equal(t, "aGk=", decoded["Data"])
	assert.Contains(t, decoded, "CreatedTime")
}
