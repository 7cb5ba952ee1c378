package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

const (
	defaultNavTimeout  = 60 * time.Second
	defaultIdleTimeout = 10 * time.Second
	pollInterval       = 100 * time.Millisecond
)

// ChromePage drives one Chrome tab through chromedp.
type ChromePage struct {
	ctx         context.Context
	logger      *zap.Logger
	navTimeout  time.Duration
	idleTimeout time.Duration
}

// NewChromePage wraps an already opened chromedp tab context.
func NewChromePage(tabCtx context.Context, logger *zap.Logger) *ChromePage {
	return &ChromePage{
		ctx:         tabCtx,
		logger:      logger,
		navTimeout:  defaultNavTimeout,
		idleTimeout: defaultIdleTimeout,
	}
}

// opCtx derives a bounded context from the tab. Cancelling the result never
// closes the tab; only the tab context's own cancel does that.
func (p *ChromePage) opCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	octx, cancel := context.WithTimeout(p.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return octx, func() {
		stop()
		cancel()
	}
}

// URL returns the address the tab is currently showing.
func (p *ChromePage) URL(ctx context.Context) (string, error) {
	octx, cancel := p.opCtx(ctx, p.navTimeout)
	defer cancel()

	var loc string
	if err := chromedp.Run(octx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Navigate loads rawURL and waits for the document and the network to settle.
func (p *ChromePage) Navigate(ctx context.Context, rawURL string) error {
	octx, cancel := p.opCtx(ctx, p.navTimeout)
	defer cancel()

	wait := p.armNavigation(octx)
	if err := chromedp.Run(octx, chromedp.Navigate(rawURL)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, rawURL, err)
	}
	return wait()
}

// WaitAny polls until one of selectors matches and returns that selector.
func (p *ChromePage) WaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	if len(selectors) == 0 {
		return "", fmt.Errorf("%w: no selectors given", ErrSelectorTimeout)
	}
	list, err := json.Marshal(selectors)
	if err != nil {
		return "", err
	}
	script := fmt.Sprintf(`(() => {
		for (const s of %s) {
			if (document.querySelector(s)) return s;
		}
		return "";
	})()`, list)

	octx, cancel := p.opCtx(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var matched string
		if err := chromedp.Run(octx, chromedp.Evaluate(script, &matched)); err == nil && matched != "" {
			return matched, nil
		}
		select {
		case <-octx.Done():
			return "", fmt.Errorf("%w: none of %v within %s", ErrSelectorTimeout, selectors, timeout)
		case <-ticker.C:
		}
	}
}

// Clear empties a form field.
func (p *ChromePage) Clear(ctx context.Context, selector string) error {
	octx, cancel := p.opCtx(ctx, p.navTimeout)
	defer cancel()

	if err := chromedp.Run(octx, chromedp.SetValue(selector, "", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clear %s: %w", selector, err)
	}
	return nil
}

// Type focuses selector and types text key by key, pausing about delay between keys.
func (p *ChromePage) Type(ctx context.Context, selector, text string, delay time.Duration) error {
	octx, cancel := p.opCtx(ctx, p.navTimeout+time.Duration(len(text))*2*delay)
	defer cancel()

	actions := chromedp.Tasks{chromedp.Focus(selector, chromedp.ByQuery)}
	actions = append(actions, keystrokes(text, delay)...)
	if err := chromedp.Run(octx, actions); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// PressEnterAndWait presses Enter in selector and waits for the resulting navigation.
func (p *ChromePage) PressEnterAndWait(ctx context.Context, selector string) error {
	octx, cancel := p.opCtx(ctx, p.navTimeout)
	defer cancel()

	wait := p.armNavigation(octx)
	if err := chromedp.Run(octx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.KeyEvent(kb.Enter),
	); err != nil {
		return fmt.Errorf("submit %s: %w", selector, err)
	}
	return wait()
}

// ClickAndWait clicks selector and waits for the resulting navigation.
func (p *ChromePage) ClickAndWait(ctx context.Context, selector string) error {
	octx, cancel := p.opCtx(ctx, p.navTimeout)
	defer cancel()

	wait := p.armNavigation(octx)
	if err := chromedp.Run(octx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return wait()
}

// HTML returns the serialized document.
func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	octx, cancel := p.opCtx(ctx, p.navTimeout)
	defer cancel()

	var domHTML string
	if err := chromedp.Run(octx, chromedp.OuterHTML("html", &domHTML, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return domHTML, nil
}

// Close closes the tab.
func (p *ChromePage) Close(ctx context.Context) error {
	return chromedp.Cancel(p.ctx)
}

// armNavigation must be called before the action that triggers a navigation,
// otherwise a fast page can fire its events before anyone listens.
// The returned func waits for DOMContentLoaded, then for network idle.
// A missing idle signal is logged, not returned.
func (p *ChromePage) armNavigation(ctx context.Context) func() error {
	lctx, cancel := context.WithCancel(ctx)
	w := newNavWaiter(mainFrameID(ctx), p.idleTimeout, p.logger)
	chromedp.ListenTarget(lctx, w.handle)

	return func() error {
		defer cancel()
		return w.wait(lctx)
	}
}

// mainFrameID returns the tab's top-level frame. For page targets Chrome uses
// the target ID as the main frame ID. Empty when ctx carries no target.
func mainFrameID(ctx context.Context) cdp.FrameID {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return ""
	}
	return cdp.FrameID(c.Target.TargetID)
}

// navWaiter tracks one navigation of the main frame. Lifecycle events of
// other frames, such as a CAPTCHA iframe, are ignored.
type navWaiter struct {
	frame       cdp.FrameID
	idleTimeout time.Duration
	logger      *zap.Logger

	loaded chan struct{}
	idle   chan struct{}
}

func newNavWaiter(frame cdp.FrameID, idleTimeout time.Duration, logger *zap.Logger) *navWaiter {
	return &navWaiter{
		frame:       frame,
		idleTimeout: idleTimeout,
		logger:      logger,
		loaded:      make(chan struct{}, 1),
		idle:        make(chan struct{}, 1),
	}
}

func (w *navWaiter) handle(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventDomContentEventFired:
		notify(w.loaded)
	case *page.EventLifecycleEvent:
		if w.frame != "" && e.FrameID != w.frame {
			return
		}
		switch e.Name {
		case "init":
			// new document; idle from the previous one no longer counts
			select {
			case <-w.idle:
			default:
			}
		case "networkIdle":
			notify(w.idle)
		}
	}
}

func (w *navWaiter) wait(ctx context.Context) error {
	select {
	case <-w.loaded:
	case <-ctx.Done():
		return fmt.Errorf("%w: no DOMContentLoaded: %v", ErrNavigation, ctx.Err())
	}

	timer := time.NewTimer(w.idleTimeout)
	defer timer.Stop()
	select {
	case <-w.idle:
	case <-timer.C:
		w.logger.Debug("network never went idle", zap.Duration("waited", w.idleTimeout))
	case <-ctx.Done():
	}
	return nil
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// keystrokes types text one rune at a time with a jittered delay between keys.
func keystrokes(text string, delay time.Duration) chromedp.Tasks {
	var actions chromedp.Tasks
	for _, r := range text {
		actions = append(actions, chromedp.KeyEvent(string(r)))
		if delay > 0 {
			jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
			actions = append(actions, chromedp.Sleep(delay+jitter))
		}
	}
	return actions
}
