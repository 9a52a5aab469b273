package playwrightdriver

import (
	"testing"

	"github.com/johnstarich/replayer/browser/drivertest"
)

func TestDriver(t *testing.T) {
	if testing.Short() {
		t.Skip("Starts a browser")
	}
	drivertest.Run(t, Launch)
}
