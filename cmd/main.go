package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shodanx/api"
	"shodanx/auth"
	"shodanx/browser"
	"shodanx/config"
	"shodanx/search"

	"go.uber.org/zap"
)

func main() {
	// =========
	// Config
	// =========
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// =========
	// Logging
	// =========
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	// =========
	// Authenticator
	// =========
	authenticator := auth.New(auth.Config{
		Username:         cfg.Username,
		Password:         cfg.Password,
		Site:             cfg.Selectors.Site,
		Login:            cfg.Selectors.Login,
		TypeDelay:        cfg.TypeDelay,
		SelectorTimeout:  cfg.SelectorTimeout,
		ChallengeTimeout: cfg.ChallengeTimeout,
	}, logger.Named("auth"))

	// =========
	// Chromedp
	// =========
	session := browser.NewSession(logger.Named("browser"), browser.ChromeLauncher(logger.Named("chrome"), browser.Options{
		UserDataDir: cfg.UserDataDir,
		ExecPaths:   cfg.BrowserPaths,
		ProxyURL:    cfg.ProxyURL,
		Headless:    cfg.Headless,
		Width:       1366,
		Height:      768,
	}), authenticator)

	// =========
	// Search Executor
	// =========
	executor := search.NewExecutor(search.Config{
		Site:            cfg.Selectors.Site,
		Search:          cfg.Selectors.Search,
		Results:         cfg.Selectors.Results,
		TypeDelay:       cfg.TypeDelay,
		SelectorTimeout: cfg.SelectorTimeout,
		MaxPages:        cfg.MaxPages,
	}, session, authenticator, logger.Named("search"))

	// Login up front so the first search does not pay for it. A failure here
	// is retried by the next search.
	go func() {
		if err := session.Launch(context.Background()); err != nil {
			logger.Error("browser launch failed; will retry on next search", zap.Error(err))
		}
	}()

	// =========
	// HTTP
	// =========
	server := api.NewServer(executor, authenticator, logger.Named("api"), cfg.AppPort, cfg.MaxConns, cfg.MaxPages)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	session.Close(ctx)
}
