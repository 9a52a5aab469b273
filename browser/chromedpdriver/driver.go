// Package chromedpdriver implements browser.Session on the Chrome DevTools Protocol with chromedp.
//
// Importing the package registers the "chromedp" driver.
package chromedpdriver

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Name is the driver's registered name
const Name = "chromedp"

func init() {
	browser.Register(Name, Launch)
}

type session struct {
	browserCtx  context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger

	mu        sync.Mutex
	pages     []*page
	targets   map[target.ID]*page
	pending   []target.ID
	firstUsed bool
}

// Launch starts a local Chrome or Chromium process
func Launch(ctx context.Context, config browser.Config) (browser.Session, error) {
	execOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
	)
	if config.NoHeadless {
		execOpts = append(
			// skip headless option
			chromedp.DefaultExecAllocatorOptions[3:],

			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			chromedp.DisableGPU,
		)
	}
	if config.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(config.ExecPath))
	}
	if config.Channel != "" {
		config.Logger.Warn("Browser channels are not supported by this driver, ignoring", zap.String("channel", config.Channel))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	var ctxOpts []chromedp.ContextOption
	if config.Debug {
		logger := config.Logger.Sugar()
		ctxOpts = append(ctxOpts,
			chromedp.WithDebugf(logger.Debugf),
			chromedp.WithLogf(logger.Infof),
			chromedp.WithErrorf(logger.Errorf),
		)
	}
	browserCtx, _ := chromedp.NewContext(allocCtx, ctxOpts...)
	s := &session{
		browserCtx:  browserCtx,
		allocCancel: allocCancel,
		logger:      config.Logger,
		targets:     make(map[target.ID]*page),
	}
	chromedp.ListenBrowser(browserCtx, s.handleBrowserEvent)

	// start the browser and attach to its first tab
	if err := chromedp.Run(browserCtx); err != nil {
		allocCancel()
		return nil, err
	}
	return s, nil
}

func (s *session) handleBrowserEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *target.EventTargetCreated:
		info := ev.TargetInfo
		if info == nil || info.Type != "page" || info.OpenerID == "" {
			return
		}
		s.mu.Lock()
		s.pending = append(s.pending, info.TargetID)
		s.mu.Unlock()
		s.logger.Debug("Popup opened", zap.String("url", info.URL))
	case *target.EventTargetDestroyed:
		s.mu.Lock()
		p := s.targets[ev.TargetID]
		s.mu.Unlock()
		if p != nil {
			p.closed.Store(true)
		}
	}
}

func (s *session) NewPage(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	var p *page
	if !s.firstUsed {
		s.firstUsed = true
		p = newPage(s, s.browserCtx, nil)
	} else {
		tabCtx, cancel := chromedp.NewContext(s.browserCtx)
		p = newPage(s, tabCtx, cancel)
	}
	s.pages = append(s.pages, p)
	s.mu.Unlock()

	if err := p.init(); err != nil {
		return nil, errors.Wrap(err, "Failed to open tab")
	}
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
		tabCtx, cancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(id))
		p := newPage(s, tabCtx, cancel)
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

func (s *session) track(id target.ID, p *page) {
	s.mu.Lock()
	s.targets[id] = p
	s.mu.Unlock()
}

func (s *session) Close() error {
	err := chromedp.Cancel(s.browserCtx)
	s.allocCancel()
	return errors.Wrap(err, "Failed to close browser")
}
