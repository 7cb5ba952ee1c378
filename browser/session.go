package browser

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Authenticator brings the page into a logged-in state.
type Authenticator interface {
	Ensure(ctx context.Context, p Page) error
}

// Launcher starts a browser and returns its single page plus a func that
// tears the browser process down.
type Launcher func(ctx context.Context) (Page, func(), error)

// Options configures the Chrome process started by ChromeLauncher.
type Options struct {
	UserDataDir string
	// ExecPaths are candidate browser binaries; the first that exists wins.
	ExecPaths []string
	ProxyURL  string
	Headless  bool
	Width     int
	Height    int
}

// Session owns the browser process and the one page all requests share.
type Session struct {
	logger *zap.Logger
	lock   *SessionLock
	launch Launcher
	auth   Authenticator

	mu       sync.Mutex
	page     Page
	shutdown func()
}

// NewSession creates a session that starts its browser lazily on Launch.
func NewSession(logger *zap.Logger, launch Launcher, auth Authenticator) *Session {
	return &Session{
		logger: logger,
		lock:   NewSessionLock(),
		launch: launch,
		auth:   auth,
	}
}

// Launch starts the browser unless a session is already live, then logs in.
func (s *Session) Launch(ctx context.Context) error {
	s.mu.Lock()
	if s.page != nil {
		s.mu.Unlock()
		return nil
	}
	p, shutdown, err := s.launch(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("launch browser: %w", err)
	}
	s.page = p
	s.shutdown = shutdown
	s.mu.Unlock()

	s.logger.Info("browser session started")

	if s.auth == nil {
		return nil
	}
	err = s.Do(ctx, func(ctx context.Context, p Page) error {
		// an admitted login runs to completion
		return s.auth.Ensure(context.WithoutCancel(ctx), p)
	})
	if err != nil {
		return fmt.Errorf("initial login: %w", err)
	}
	return nil
}

// Live reports whether a browser session is running.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page != nil
}

// Do runs fn with exclusive use of the page, after every earlier Do finished.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context, p Page) error) error {
	return s.lock.Run(ctx, func() error {
		s.mu.Lock()
		p := s.page
		s.mu.Unlock()
		if p == nil {
			return ErrNotLaunched
		}
		return fn(ctx, p)
	})
}

// Close shuts down page and browser. Errors are logged and dropped.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	p, shutdown := s.page, s.shutdown
	s.page, s.shutdown = nil, nil
	s.mu.Unlock()

	if p != nil {
		if err := p.Close(ctx); err != nil {
			s.logger.Debug("page close failed", zap.Error(err))
		}
	}
	if shutdown != nil {
		shutdown()
	}
}

// ChromeLauncher returns a Launcher backed by a local Chrome with a
// persistent profile, so cookies survive restarts.
func ChromeLauncher(logger *zap.Logger, opts Options) Launcher {
	return func(ctx context.Context) (Page, func(), error) {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.DisableGPU,
			chromedp.NoSandbox,
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(opts.Width, opts.Height),
			chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"),
		)
		if !opts.Headless {
			allocOpts = append(allocOpts, chromedp.Flag("headless", false))
		}
		if opts.UserDataDir != "" {
			if err := os.MkdirAll(opts.UserDataDir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create profile dir: %w", err)
			}
			allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
		}
		if path := resolveExecPath(logger, opts.ExecPaths); path != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(path))
		}
		if opts.ProxyURL != "" {
			allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
		}

		// The browser lives as long as the process, not the caller's request.
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
		tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))
		shutdown := func() {
			tabCancel()
			allocCancel()
		}

		if err := chromedp.Run(tabCtx, page.SetLifecycleEventsEnabled(true)); err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("start chrome: %w", err)
		}

		logger.Info("chrome started",
			zap.String("user_data_dir", opts.UserDataDir),
			zap.Bool("headless", opts.Headless))

		return NewChromePage(tabCtx, logger), shutdown, nil
	}
}

// resolveExecPath picks the first candidate that exists on disk. When paths were
// configured but none exists, chromedp's own lookup is used instead.
func resolveExecPath(logger *zap.Logger, candidates []string) string {
	configured := false
	for _, c := range candidates {
		if c == "" {
			continue
		}
		configured = true
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	if configured {
		logger.Warn("configured browser executable not found, using default lookup",
			zap.Strings("candidates", candidates))
	}
	return ""
}
