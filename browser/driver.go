package browser

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Launcher starts a browser Session. Canceling ctx closes the session.
type Launcher func(ctx context.Context, config Config) (Session, error)

// Config passes options to a Launcher
type Config struct {
	NoHeadless bool
	// Channel selects a browser distribution, like "msedge" or "chrome", for drivers that support it
	Channel string
	// ExecPath overrides the browser executable
	ExecPath string
	// Debug forwards driver protocol logs to Logger
	Debug  bool
	Logger *zap.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

var (
	launchersMu sync.RWMutex
	launchers   = make(map[string]Launcher)
)

// Register adds a driver with the given name to the registry. Enables a call to Launch with the same name.
func Register(name string, launcher Launcher) {
	name = strings.ToLower(name)
	launchersMu.Lock()
	defer launchersMu.Unlock()
	if _, exists := launchers[name]; exists {
		panic("Driver with duplicate name registered: " + name)
	}
	launchers[name] = launcher
}

// Launch starts a new Session with the named driver
func Launch(ctx context.Context, name string, config Config) (Session, error) {
	name = strings.ToLower(name)
	launchersMu.RLock()
	launcher, exists := launchers[name]
	launchersMu.RUnlock()
	if !exists {
		return nil, errors.Errorf("Driver does not exist with name: %q. Available drivers: %s", name, strings.Join(Drivers(), ", "))
	}
	config.defaults()
	session, err := launcher(ctx, config)
	return session, errors.Wrapf(err, "Failed to launch %s browser", name)
}

// Drivers returns the sorted names of registered drivers
func Drivers() []string {
	launchersMu.RLock()
	defer launchersMu.RUnlock()
	names := make([]string, 0, len(launchers))
	for name := range launchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
