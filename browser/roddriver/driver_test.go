package roddriver

import (
	"context"
	"testing"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/johnstarich/replayer/browser"
	"github.com/johnstarich/replayer/browser/drivertest"
)

func TestDriver(t *testing.T) {
	if testing.Short() {
		t.Skip("Starts a browser")
	}
	// without a local browser the launcher downloads one
	bin, found := launcher.LookPath()
	if !found {
		t.Skip("No local Chromium found")
	}
	drivertest.Run(t, func(ctx context.Context, config browser.Config) (browser.Session, error) {
		config.ExecPath = bin
		return Launch(ctx, config)
	})
}
