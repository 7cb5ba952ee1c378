package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T) {
	t.Setenv("SHODAN_USER", "alice")
	t.Setenv("SHODAN_PASS", "s3cret")
}

func TestLoadRequiresCredentials(t *testing.T) {
	testCases := []struct {
		name string
		user string
		pass string
	}{
		{"Neither", "", ""},
		{"NoPassword", "alice", ""},
		{"BlankUser", "   ", "s3cret"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("SHODAN_USER", tc.user)
			t.Setenv("SHODAN_PASS", tc.pass)

			_, err := Load()
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	setCredentials(t)
	for _, key := range []string{"PORT", "MAX_CONNS", "MAX_PAGES", "HEADLESS", "CHALLENGE_TIMEOUT", "TYPE_DELAY",
		"SELECTOR_TIMEOUT", "SELECTORS_FILE", "USER_DATA_DIR", "BROWSER_PATH", "PUPPETEER_EXECUTABLE_PATH"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.AppPort)
	assert.Equal(t, 64, cfg.MaxConns)
	assert.Equal(t, 10, cfg.MaxPages)
	assert.True(t, cfg.Headless)
	assert.Zero(t, cfg.ChallengeTimeout)
	assert.Equal(t, 35*time.Millisecond, cfg.TypeDelay)
	assert.Equal(t, 20*time.Second, cfg.SelectorTimeout)
	assert.Equal(t, ".browser-profile", cfg.UserDataDir)
	assert.Equal(t, DefaultSelectors(), cfg.Selectors)
}

func TestLoadOverrides(t *testing.T) {
	setCredentials(t)
	t.Setenv("PORT", "8088")
	t.Setenv("MAX_PAGES", "25")
	t.Setenv("HEADLESS", "false")
	t.Setenv("CHALLENGE_TIMEOUT", "10m")
	t.Setenv("BROWSER_PATH", "/opt/chrome/chrome")
	t.Setenv("PUPPETEER_EXECUTABLE_PATH", "/usr/bin/chromium")
	t.Setenv("USER_DATA_DIR", "/var/lib/shodanx/profile")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.AppPort)
	assert.Equal(t, 25, cfg.MaxPages)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 10*time.Minute, cfg.ChallengeTimeout)
	assert.Equal(t, []string{"/opt/chrome/chrome", "/usr/bin/chromium"}, cfg.BrowserPaths)
	assert.Equal(t, "/var/lib/shodanx/profile", cfg.UserDataDir)
}

func TestLoadRejectsBadValues(t *testing.T) {
	testCases := []struct {
		key   string
		value string
	}{
		{"PORT", "http"},
		{"PORT", "-1"},
		{"MAX_PAGES", "0"},
		{"HEADLESS", "maybe"},
		{"CHALLENGE_TIMEOUT", "forever"},
		{"TYPE_DELAY", "-5ms"},
	}

	for _, tc := range testCases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			setCredentials(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestLoadSelectorsMergesOverDefaults(t *testing.T) {
	sel, err := LoadSelectors(filepath.Join("testdata", "selectors.yaml"))
	require.NoError(t, err)

	defaults := DefaultSelectors()
	assert.Equal(t, "https://www.shodan.io/search/advanced?beta=1", sel.Site.SearchURL)
	assert.Equal(t, defaults.Site.LoginURL, sel.Site.LoginURL)
	assert.Equal(t, []string{"article.hit"}, sel.Results.Cards)
	assert.Equal(t, []string{"code.banner"}, sel.Results.Banner)
	assert.Equal(t, defaults.Results.Title, sel.Results.Title)
	assert.Equal(t, defaults.Login, sel.Login)
}

func TestLoadSelectorsMissingFile(t *testing.T) {
	_, err := LoadSelectors(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrConfig)
}
