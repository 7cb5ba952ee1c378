package browser

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSelectorTimeout = errors.New("selector wait timed out")
	ErrNavigation      = errors.New("navigation failed")
	ErrNotLaunched     = errors.New("browser session not launched")
)

// Page is the single shared tab every automation step drives.
// Implementations are not safe for concurrent use; callers go through Session.Do.
type Page interface {
	// URL returns the page's current location.
	URL(ctx context.Context) (string, error)
	// Navigate loads rawURL and waits for DOMContentLoaded followed by network idle.
	Navigate(ctx context.Context, rawURL string) error
	// WaitAny waits until one of selectors matches and returns the one that did.
	WaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error)
	Clear(ctx context.Context, selector string) error
	// Type sends text to selector one key at a time, sleeping delay between keys.
	Type(ctx context.Context, selector, text string, delay time.Duration) error
	// PressEnterAndWait focuses selector, presses Enter and waits for the resulting navigation.
	PressEnterAndWait(ctx context.Context, selector string) error
	// ClickAndWait clicks selector and waits for the resulting navigation.
	ClickAndWait(ctx context.Context, selector string) error
	// HTML returns the outer HTML of the rendered document.
	HTML(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}
