// Package browsertest provides an in-memory browser.Page that records every
// call it receives, for tests that must not start Chrome.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"shodanx/browser"
)

// Page is a scripted fake. Zero-value hooks fall back to simple defaults:
// navigation lands on the requested URL, every selector is present and the
// document is empty.
type Page struct {
	mu      sync.Mutex
	current string
	calls   []string
	urlHits int
	closed  bool

	// OnNavigate returns where a navigation to rawURL ends up.
	OnNavigate func(rawURL string) (string, error)
	// OnSubmit returns where an Enter press or click on selector ends up.
	OnSubmit func(current, selector string) string
	// OnPoll may rewrite the location on the n-th URL call (1-based).
	OnPoll func(n int, current string) string
	// Missing lists selectors that never appear.
	Missing map[string]bool
	// Document returns the rendered HTML for the current location.
	Document func(current string) string
	// Delay is slept inside every navigation, to widen race windows.
	Delay time.Duration
	// Typed collects text typed per selector.
	Typed map[string]string
}

var _ browser.Page = (*Page)(nil)

// New returns a fake page showing start.
func New(start string) *Page {
	return &Page{current: start, Typed: make(map[string]string)}
}

// Calls returns a copy of the call log.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// CallsWithPrefix returns the logged calls starting with prefix.
func (p *Page) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Current returns the URL the fake is showing.
func (p *Page) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Page) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urlHits++
	if p.OnPoll != nil {
		p.current = p.OnPoll(p.urlHits, p.current)
	}
	p.record("url")
	return p.current, nil
}

func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if p.Delay > 0 {
		time.Sleep(p.Delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("navigate %s", rawURL)
	dest := rawURL
	if p.OnNavigate != nil {
		var err error
		dest, err = p.OnNavigate(rawURL)
		if err != nil {
			return fmt.Errorf("%w: %v", browser.ErrNavigation, err)
		}
	}
	p.current = dest
	return nil
}

func (p *Page) WaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("wait %s", strings.Join(selectors, " | "))
	for _, s := range selectors {
		if !p.Missing[s] {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: none of %v", browser.ErrSelectorTimeout, selectors)
}

func (p *Page) Clear(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("clear %s", selector)
	delete(p.Typed, selector)
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("type %s %s", selector, text)
	if p.Typed == nil {
		p.Typed = make(map[string]string)
	}
	p.Typed[selector] += text
	return nil
}

func (p *Page) PressEnterAndWait(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("enter %s", selector)
	if p.OnSubmit != nil {
		p.current = p.OnSubmit(p.current, selector)
	}
	return nil
}

func (p *Page) ClickAndWait(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("click %s", selector)
	if p.OnSubmit != nil {
		p.current = p.OnSubmit(p.current, selector)
	}
	return nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("html %s", p.current)
	if p.Document == nil {
		return "<html><body></body></html>", nil
	}
	return p.Document(p.current), nil
}

func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("close")
	p.closed = true
	return nil
}
