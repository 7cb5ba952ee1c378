package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrConfig = errors.New("invalid configuration")

// Config is the process configuration, read once at startup.
type Config struct {
	AppPort  int
	Username string
	Password string

	// BrowserPaths are executable candidates in priority order.
	BrowserPaths []string
	UserDataDir  string
	ProxyURL     string
	Headless     bool

	// ChallengeTimeout bounds the wait for a manual CAPTCHA/2FA step; 0 waits forever.
	ChallengeTimeout time.Duration
	TypeDelay        time.Duration
	SelectorTimeout  time.Duration
	MaxConns         int

	// MaxPages caps the pages a single search may walk.
	MaxPages int

	Selectors Selectors
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	user := strings.TrimSpace(os.Getenv("SHODAN_USER"))
	pass := os.Getenv("SHODAN_PASS")
	if user == "" || pass == "" {
		return nil, fmt.Errorf("%w: SHODAN_USER and SHODAN_PASS must be set", ErrConfig)
	}

	appPort, err := getEnvInt("PORT", 3000)
	if err != nil {
		return nil, err
	}
	maxConns, err := getEnvInt("MAX_CONNS", 64)
	if err != nil {
		return nil, err
	}
	maxPages, err := getEnvInt("MAX_PAGES", 10)
	if err != nil {
		return nil, err
	}
	headless, err := getEnvBool("HEADLESS", true)
	if err != nil {
		return nil, err
	}
	challengeTimeout, err := getEnvDuration("CHALLENGE_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	typeDelay, err := getEnvDuration("TYPE_DELAY", 35*time.Millisecond)
	if err != nil {
		return nil, err
	}
	selectorTimeout, err := getEnvDuration("SELECTOR_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}

	selectors := DefaultSelectors()
	if path := os.Getenv("SELECTORS_FILE"); path != "" {
		selectors, err = LoadSelectors(path)
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		AppPort:          appPort,
		Username:         user,
		Password:         pass,
		BrowserPaths:     []string{os.Getenv("BROWSER_PATH"), os.Getenv("PUPPETEER_EXECUTABLE_PATH")},
		UserDataDir:      getEnv("USER_DATA_DIR", ".browser-profile"),
		ProxyURL:         os.Getenv("PROXY_URL"),
		Headless:         headless,
		ChallengeTimeout: challengeTimeout,
		TypeDelay:        typeDelay,
		SelectorTimeout:  selectorTimeout,
		MaxConns:         maxConns,
		MaxPages:         maxPages,
		Selectors:        selectors,
	}, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s=%q is not a positive integer", ErrConfig, key, value)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrConfig, key, value)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s=%q is not a duration", ErrConfig, key, value)
	}
	return d, nil
}
