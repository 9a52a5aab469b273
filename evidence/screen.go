package evidence

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
)

const pngContentType = "image/png"

// Screenshot is the outcome of a best-effort capture. A failed capture is Missing, never an error.
type Screenshot struct {
	Record
	Missing bool
	// Reason explains a missing screenshot
	Reason error
}

// Base64 returns the standard base64 encoding of the image, or "" if Missing
func (s Screenshot) Base64() string {
	if s.Missing || s.Record == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(s.Data())
}

// Capture takes a full-page screenshot of page. Closed pages, driver failures and empty images all result in a Missing screenshot.
func Capture(ctx context.Context, page browser.Page) Screenshot {
	if page == nil {
		return Screenshot{Missing: true, Reason: errors.New("No page to capture")}
	}
	if page.Closed() {
		return Screenshot{Missing: true, Reason: errors.New("Page is closed")}
	}
	data, err := page.Screenshot(ctx)
	if err != nil {
		return Screenshot{Missing: true, Reason: errors.Wrap(err, "Failed to capture screenshot")}
	}
	if len(data) == 0 {
		return Screenshot{Missing: true, Reason: errors.New("Screenshot was empty")}
	}
	return Screenshot{Record: New(pngContentType, data)}
}

// ArtifactWriter stores per-step screenshots outside of the playback result
type ArtifactWriter struct {
	// Dir is the destination directory, created on first write. Empty means the working directory.
	Dir string
}

// Path returns the file path for the screenshot taken by step index
func (w ArtifactWriter) Path(index int) string {
	return filepath.Join(w.Dir, fmt.Sprintf("screenshot_%d.png", index))
}

// WriteScreenshot captures page and writes it to Path(index). Unlike Capture, failures are returned.
func (w ArtifactWriter) WriteScreenshot(ctx context.Context, page browser.Page, index int) (string, error) {
	shot := Capture(ctx, page)
	if shot.Missing {
		return "", shot.Reason
	}
	if w.Dir != "" {
		if err := os.MkdirAll(w.Dir, 0750); err != nil {
			return "", errors.Wrap(err, "Failed to create artifact directory")
		}
	}
	path := w.Path(index)
	if err := os.WriteFile(path, shot.Data(), 0640); err != nil {
		return "", errors.Wrapf(err, "Failed to write screenshot %s", path)
	}
	return path, nil
}
