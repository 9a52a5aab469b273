package playback

import (
	"context"

	"github.com/johnstarich/replayer/browser"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// sessionContext tracks the active page and frame for one playback
type sessionContext struct {
	session browser.Session
	main    browser.Page
	page    browser.Page
	frame   browser.Frame
	logger  *zap.Logger
}

func newSessionContext(session browser.Session, main browser.Page, logger *zap.Logger) *sessionContext {
	return &sessionContext{
		session: session,
		main:    main,
		page:    main,
		frame:   main.MainFrame(),
		logger:  logger,
	}
}

// selectFrame makes the frame at path[0] in the active page's frame list active.
// Returns an error matching ErrFrameIndex if the index doesn't exist.
func (c *sessionContext) selectFrame(ctx context.Context, path []int) error {
	frames, err := c.page.Frames(ctx)
	if err != nil {
		return errors.Wrapf(ErrFrameIndex, "Failed to list frames: %s", err)
	}
	index := path[0]
	if index < 0 || index >= len(frames) {
		return errors.Wrapf(ErrFrameIndex, "Frame index %d not found among %d frames", index, len(frames))
	}
	c.frame = frames[index]
	c.logger.Debug("Using frame", zap.Int("index", index))
	return nil
}

// popups returns pages opened after the main page, oldest first
func (c *sessionContext) popups() []browser.Page {
	var popups []browser.Page
	for _, page := range c.session.Pages() {
		if page != c.main && !page.Closed() {
			popups = append(popups, page)
		}
	}
	return popups
}

func (c *sessionContext) switchToPopup() error {
	popups := c.popups()
	if len(popups) == 0 {
		return errors.WithStack(ErrNoPopup)
	}
	c.page = popups[len(popups)-1]
	c.frame = c.page.MainFrame()
	c.logger.Debug("Switched to popup", zap.Int("popups", len(popups)))
	return nil
}

func (c *sessionContext) switchToMain() {
	c.page = c.main
	c.frame = c.main.MainFrame()
	c.logger.Debug("Switched to main page")
}
