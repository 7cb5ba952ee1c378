package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"shodanx/browser"
	"shodanx/config"

	"go.uber.org/zap"
)

// ErrChallengeTimeout is returned when nobody solves a CAPTCHA or 2FA step
// within Config.ChallengeTimeout.
var ErrChallengeTimeout = errors.New("manual login challenge not completed in time")

// State is the authenticator's view of the session.
type State int32

const (
	StateUnknown State = iota
	StateAuthenticated
	StateAwaitingChallenge
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAwaitingChallenge:
		return "awaiting_challenge"
	default:
		return "unknown"
	}
}

type Config struct {
	Username string
	Password string
	Site     config.Site
	Login    config.LoginSelectors

	TypeDelay       time.Duration
	SelectorTimeout time.Duration
	// ChallengeTimeout of 0 waits for a human indefinitely.
	ChallengeTimeout time.Duration
	PollInterval     time.Duration
}

// Authenticator keeps the shared page logged in. It is run before every
// search so an expired session repairs itself on the next request.
type Authenticator struct {
	cfg    Config
	logger *zap.Logger
	state  atomic.Int32
}

// New creates an authenticator. A zero PollInterval defaults to one second.
func New(cfg Config, logger *zap.Logger) *Authenticator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Authenticator{cfg: cfg, logger: logger}
}

// State returns the last observed login state.
func (a *Authenticator) State() State {
	return State(a.state.Load())
}

// LoggedIn reports whether the last check found an authenticated page.
func (a *Authenticator) LoggedIn() bool {
	return a.State() == StateAuthenticated
}

// Ensure checks the page's location and logs in when it is not already on an
// authenticated page of the target site.
func (a *Authenticator) Ensure(ctx context.Context, p browser.Page) error {
	current, err := p.URL(ctx)
	if err != nil {
		return err
	}
	if a.onSite(current) && !a.onLoginPage(current) {
		a.state.Store(int32(StateAuthenticated))
		return nil
	}

	a.state.Store(int32(StateUnknown))
	a.logger.Info("login required", zap.String("url", current))

	if err := p.Navigate(ctx, a.cfg.Site.LoginURL); err != nil {
		return err
	}
	if current, err = p.URL(ctx); err != nil {
		return err
	}

	if a.onLoginPage(current) {
		if err := a.submitCredentials(ctx, p); err != nil {
			return err
		}
		if current, err = p.URL(ctx); err != nil {
			return err
		}
		if a.onLoginPage(current) {
			if err := a.awaitChallenge(ctx, p); err != nil {
				return err
			}
		}
	}

	a.state.Store(int32(StateAuthenticated))
	a.logger.Info("logged in")
	return nil
}

func (a *Authenticator) submitCredentials(ctx context.Context, p browser.Page) error {
	if _, err := p.WaitAny(ctx, a.cfg.Login.Form, a.cfg.SelectorTimeout); err != nil {
		return fmt.Errorf("login form: %w", err)
	}
	if err := p.Type(ctx, a.cfg.Login.Username, a.cfg.Username, a.cfg.TypeDelay); err != nil {
		return err
	}
	if err := p.Type(ctx, a.cfg.Login.Password, a.cfg.Password, a.cfg.TypeDelay); err != nil {
		return err
	}
	// Enter in the password field submits whatever the form's button looks like.
	return p.PressEnterAndWait(ctx, a.cfg.Login.Password)
}

// awaitChallenge polls until a human gets the page past the login path.
func (a *Authenticator) awaitChallenge(ctx context.Context, p browser.Page) error {
	a.state.Store(int32(StateAwaitingChallenge))
	a.logger.Warn("still on login page after submitting credentials; waiting for manual CAPTCHA/2FA",
		zap.Duration("timeout", a.cfg.ChallengeTimeout))

	var deadline <-chan time.Time
	if a.cfg.ChallengeTimeout > 0 {
		timer := time.NewTimer(a.cfg.ChallengeTimeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			a.state.Store(int32(StateUnknown))
			return fmt.Errorf("%w after %s", ErrChallengeTimeout, a.cfg.ChallengeTimeout)
		case <-ctx.Done():
			a.state.Store(int32(StateUnknown))
			return ctx.Err()
		case <-ticker.C:
		}

		current, err := p.URL(ctx)
		if err != nil {
			a.logger.Debug("poll location failed", zap.Error(err))
			continue
		}
		if !a.onLoginPage(current) {
			return nil
		}
	}
}

func (a *Authenticator) onSite(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain := strings.ToLower(a.cfg.Site.Domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// onLoginPage matches the login path itself or anything below it,
// so /login and /login/2fa count but /login-help does not.
func (a *Authenticator) onLoginPage(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	login := strings.TrimSuffix(a.cfg.Site.LoginPath, "/")
	return u.Path == login || strings.HasPrefix(u.Path, login+"/")
}
