package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"shodanx/browser"
	"shodanx/browser/browsertest"
	"shodanx/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	loginURL     = "https://account.shodan.io/login"
	dashboardURL = "https://account.shodan.io/"
)

func newTestAuthenticator(t *testing.T, challengeTimeout time.Duration) *Authenticator {
	sel := config.DefaultSelectors()
	return New(Config{
		Username:         "alice",
		Password:         "s3cret",
		Site:             sel.Site,
		Login:            sel.Login,
		SelectorTimeout:  time.Second,
		ChallengeTimeout: challengeTimeout,
		PollInterval:     time.Millisecond,
	}, zaptest.NewLogger(t))
}

func TestEnsureAlreadyAuthenticated(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	page := browsertest.New("https://www.shodan.io/search?query=nginx")

	require.NoError(t, a.Ensure(context.Background(), page))

	assert.Empty(t, page.CallsWithPrefix("navigate"))
	assert.Equal(t, []string{"url"}, page.Calls())
	assert.Equal(t, StateAuthenticated, a.State())
	assert.True(t, a.LoggedIn())
}

func TestEnsureLogsIn(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	page := browsertest.New("about:blank")
	page.OnSubmit = func(current, selector string) string { return dashboardURL }

	require.NoError(t, a.Ensure(context.Background(), page))

	assert.Equal(t, []string{"navigate " + loginURL}, page.CallsWithPrefix("navigate"))
	assert.Equal(t, "alice", page.Typed[`input[name="username"]`])
	assert.Equal(t, "s3cret", page.Typed[`input[name="password"]`])
	assert.Equal(t, []string{`enter input[name="password"]`}, page.CallsWithPrefix("enter"))
	assert.Equal(t, StateAuthenticated, a.State())
}

func TestEnsureSessionCookieStillValid(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	page := browsertest.New("about:blank")
	// the login page bounces a logged-in profile straight to the dashboard
	page.OnNavigate = func(rawURL string) (string, error) { return dashboardURL, nil }

	require.NoError(t, a.Ensure(context.Background(), page))

	assert.Empty(t, page.CallsWithPrefix("type"))
	assert.Equal(t, StateAuthenticated, a.State())
}

func TestEnsureMissingLoginForm(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	page := browsertest.New("about:blank")
	page.Missing = map[string]bool{}
	for _, s := range config.DefaultSelectors().Login.Form {
		page.Missing[s] = true
	}

	err := a.Ensure(context.Background(), page)
	assert.ErrorIs(t, err, browser.ErrSelectorTimeout)
	assert.False(t, a.LoggedIn())
}

func TestEnsureNavigationFailure(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	page := browsertest.New("about:blank")
	page.OnNavigate = func(rawURL string) (string, error) { return "", assert.AnError }

	err := a.Ensure(context.Background(), page)
	assert.ErrorIs(t, err, browser.ErrNavigation)
}

func TestEnsureWaitsForManualChallenge(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	page := browsertest.New("about:blank")
	page.OnSubmit = func(current, selector string) string { return loginURL + "?captcha=1" }

	// a human solves the CAPTCHA a few polls into the wait
	solveAt := 0
	page.OnPoll = func(n int, current string) string {
		if strings.Contains(current, "captcha") {
			if solveAt == 0 {
				solveAt = n + 5
			}
			if n >= solveAt {
				return dashboardURL
			}
		}
		return current
	}

	done := make(chan error, 1)
	go func() { done <- a.Ensure(context.Background(), page) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("challenge wait never resolved")
	}

	assert.Equal(t, StateAuthenticated, a.State())
	assert.GreaterOrEqual(t, len(page.CallsWithPrefix("url")), 6)
}

func TestEnsureChallengeTimeout(t *testing.T) {
	a := newTestAuthenticator(t, 20*time.Millisecond)
	page := browsertest.New("about:blank")

	err := a.Ensure(context.Background(), page)
	assert.ErrorIs(t, err, ErrChallengeTimeout)
	assert.Equal(t, StateUnknown, a.State())
}

func TestEnsureChallengeReportsAwaitingState(t *testing.T) {
	a := newTestAuthenticator(t, 0)
	page := browsertest.New("about:blank")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Ensure(ctx, page) }()

	require.Eventually(t, func() bool {
		return a.State() == StateAwaitingChallenge
	}, 5*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestLoginPathWithTrailingSlash(t *testing.T) {
	sel := config.DefaultSelectors()
	sel.Site.LoginPath = "/login/"
	a := New(Config{Site: sel.Site}, zaptest.NewLogger(t))

	assert.True(t, a.onLoginPage("https://account.shodan.io/login"))
	assert.True(t, a.onLoginPage("https://account.shodan.io/login/"))
	assert.False(t, a.onLoginPage("https://account.shodan.io/login-help"))
}

func TestURLChecks(t *testing.T) {
	a := newTestAuthenticator(t, 0)

	testCases := []struct {
		url     string
		onSite  bool
		onLogin bool
	}{
		{"https://www.shodan.io/search?query=x", true, false},
		{"https://shodan.io/", true, false},
		{"https://account.shodan.io/login", true, true},
		{"https://account.shodan.io/login/", true, true},
		{"https://account.shodan.io/login/2fa?next=%2F", true, true},
		{"https://account.shodan.io/login-help", true, false},
		{"https://account.shodan.io/loginfoo", true, false},
		{"https://notshodan.io/", false, false},
		{"https://shodan.io.evil.com/", false, false},
		{"about:blank", false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			assert.Equal(t, tc.onSite, a.onSite(tc.url))
			assert.Equal(t, tc.onLogin, a.onLoginPage(tc.url))
		})
	}
}
