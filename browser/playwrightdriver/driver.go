// Package playwrightdriver implements browser.Session with playwright-go.
//
// Importing the package registers the "playwright" driver. The playwright driver and browsers must already be
// installed, see https://github.com/playwright-community/playwright-go#installation
package playwrightdriver

import (
	"context"
	"sync"
	"time"

	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Name is the driver's registered name
const Name = "playwright"

// defaultTimeout bounds calls made with a context that has no deadline
const defaultTimeout = 30 * time.Second

func init() {
	browser.Register(Name, Launch)
}

type session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	logger  *zap.Logger

	mu    sync.Mutex
	pages map[playwright.Page]*page
}

// Launch starts Chromium through a playwright driver process
func Launch(ctx context.Context, config browser.Config) (browser.Session, error) {
	pw, err := playwright.Run(&playwright.RunOptions{Verbose: config.Debug})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to start playwright")
	}
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(!config.NoHeadless),
	}
	if config.Channel != "" {
		opts.Channel = playwright.String(config.Channel)
	}
	if config.ExecPath != "" {
		opts.ExecutablePath = playwright.String(config.ExecPath)
	}
	b, err := pw.Chromium.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}
	bctx, err := b.NewContext()
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, err
	}
	s := &session{
		pw:      pw,
		browser: b,
		context: bctx,
		logger:  config.Logger,
		pages:   make(map[playwright.Page]*page),
	}
	bctx.OnPage(func(p playwright.Page) {
		s.logger.Debug("Page opened", zap.String("url", p.URL()))
	})
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s, nil
}

func (s *session) wrap(p playwright.Page) *page {
	s.mu.Lock()
	defer s.mu.Unlock()
	wrapped, ok := s.pages[p]
	if !ok {
		wrapped = &page{page: p}
		s.pages[p] = wrapped
	}
	return wrapped
}

func (s *session) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.context.NewPage()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to open tab")
	}
	return s.wrap(p), nil
}

// Pages returns the context's pages in creation order, which includes popups
func (s *session) Pages() []browser.Page {
	var pages []browser.Page
	for _, p := range s.context.Pages() {
		pages = append(pages, s.wrap(p))
	}
	return pages
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	if stopErr := s.pw.Stop(); err == nil {
		err = stopErr
	}
	s.browser = nil
	return errors.Wrap(err, "Failed to close browser")
}

// timeout converts ctx's deadline into playwright's millisecond timeouts
func timeout(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return playwright.Float(float64(defaultTimeout.Milliseconds()))
	}
	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	return playwright.Float(float64(remaining.Milliseconds()))
}
