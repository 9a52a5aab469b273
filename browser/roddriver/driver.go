// Package roddriver implements browser.Session with go-rod.
//
// Importing the package registers the "rod" driver.
package roddriver

import (
	"context"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Name is the driver's registered name
const Name = "rod"

func init() {
	browser.Register(Name, Launch)
}

type session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   *zap.Logger

	mu      sync.Mutex
	pages   []*page
	targets map[proto.TargetTargetID]*page
	pending []proto.TargetTargetID
}

// Launch starts a local Chromium, downloading one if none is installed
func Launch(ctx context.Context, config browser.Config) (browser.Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(!config.NoHeadless)
	if config.ExecPath != "" {
		l = l.Bin(config.ExecPath)
	}
	if config.Debug {
		l = l.Logger(browser.LogWriter(config.Logger))
	}
	if config.Channel != "" {
		config.Logger.Warn("Browser channels are not supported by this driver, ignoring", zap.String("channel", config.Channel))
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, err
	}
	s := &session{
		launcher: l,
		browser:  b,
		logger:   config.Logger,
		targets:  make(map[proto.TargetTargetID]*page),
	}
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		s.logger.Warn("Failed to enable target discovery, popups will not be detected", zap.Error(err))
	}
	go b.EachEvent(s.handleTargetCreated, s.handleTargetDestroyed)()
	return s, nil
}

func (s *session) handleTargetCreated(e *proto.TargetTargetCreated) {
	info := e.TargetInfo
	if info == nil || info.Type != proto.TargetTargetInfoTypePage || info.OpenerID == "" {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, info.TargetID)
	s.mu.Unlock()
	s.logger.Debug("Popup opened", zap.String("url", info.URL))
}

func (s *session) handleTargetDestroyed(e *proto.TargetTargetDestroyed) {
	s.mu.Lock()
	p := s.targets[e.TargetID]
	s.mu.Unlock()
	if p != nil {
		p.closed.Store(true)
	}
}

func (s *session) NewPage(ctx context.Context) (browser.Page, error) {
	rp, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to open tab")
	}
	p := newPage(rp)
	s.mu.Lock()
	s.pages = append(s.pages, p)
	s.targets[rp.TargetID] = p
	s.mu.Unlock()
	return p, nil
}

// Pages attaches to any popups opened since the last call
func (s *session) Pages() []browser.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.pending {
		if _, known := s.targets[id]; known {
			continue
		}
		rp, err := s.browser.PageFromTarget(id)
		if err != nil {
			s.logger.Warn("Failed to attach to popup", zap.String("target", string(id)), zap.Error(err))
			continue
		}
		p := newPage(rp)
		s.targets[id] = p
		s.pages = append(s.pages, p)
	}
	s.pending = nil

	pages := make([]browser.Page, 0, len(s.pages))
	for _, p := range s.pages {
		pages = append(pages, p)
	}
	return pages
}

func (s *session) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return errors.Wrap(err, "Failed to close browser")
}
