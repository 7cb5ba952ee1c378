package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"shodanx/browser"
	"shodanx/config"
	"shodanx/pkg/logctx"

	"go.uber.org/zap"
)

// Config holds what the executor needs from the site configuration.
type Config struct {
	Site            config.Site
	Search          config.SearchSelectors
	Results         config.ResultSelectors
	TypeDelay       time.Duration
	SelectorTimeout time.Duration

	// MaxPages caps req.Pages; zero means DefaultMaxPages.
	MaxPages int
}

// Executor runs searches on the shared browser page, one at a time.
type Executor struct {
	cfg       Config
	session   *browser.Session
	auth      browser.Authenticator
	extractor *Extractor
	logger    *zap.Logger
}

var _ SearchEngine = (*Executor)(nil)

// NewExecutor creates a search executor on top of a browser session.
func NewExecutor(cfg Config, session *browser.Session, auth browser.Authenticator, logger *zap.Logger) *Executor {
	return &Executor{
		cfg:       cfg,
		session:   session,
		auth:      auth,
		extractor: NewExtractor(cfg.Results),
		logger:    logger,
	}
}

// Search submits req.Query on the advanced search page and collects
// req.Pages result pages. Any failing page fails the whole search.
func (e *Executor) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if logctx.RequestID(ctx) == "" {
		ctx = logctx.WithRequestID(ctx, "")
	}
	logger := logctx.Logger(ctx, e.logger)
	pages := NormalizePages(req.Pages, e.cfg.MaxPages)

	if err := e.session.Launch(ctx); err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Query:   req.Query,
		Pages:   pages,
		Counts:  make([]int, 0, pages),
		Results: []ResultRecord{},
	}
	start := time.Now()

	err := e.session.Do(ctx, func(ctx context.Context, p browser.Page) error {
		// admitted work is not abandoned halfway through a navigation
		ctx = context.WithoutCancel(ctx)

		if err := e.auth.Ensure(ctx, p); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := e.submitQuery(ctx, p, req.Query); err != nil {
			return err
		}

		for n := 1; n <= pages; n++ {
			if n > 1 {
				if err := e.gotoPage(ctx, p, n); err != nil {
					return err
				}
			}
			records, err := e.collectPage(ctx, p)
			if err != nil {
				return fmt.Errorf("page %d: %w", n, err)
			}
			resp.Counts = append(resp.Counts, len(records))
			resp.Results = append(resp.Results, records...)
			logger.Debug("page extracted", zap.Int("page", n), zap.Int("records", len(records)))
		}
		return nil
	})
	if err != nil {
		logger.Error("search failed", zap.String("query", req.Query), zap.Error(err))
		return nil, err
	}

	resp.Count = len(resp.Results)
	logger.Info("search finished",
		zap.String("query", req.Query),
		zap.Int("pages", pages),
		zap.Ints("counts", resp.Counts),
		zap.Duration("took", time.Since(start)))
	return resp, nil
}

func (e *Executor) submitQuery(ctx context.Context, p browser.Page, query string) error {
	if err := p.Navigate(ctx, e.cfg.Site.SearchURL); err != nil {
		return err
	}
	input := e.cfg.Search.QueryInput
	if _, err := p.WaitAny(ctx, []string{input}, e.cfg.SelectorTimeout); err != nil {
		return fmt.Errorf("search form: %w", err)
	}
	if err := p.Clear(ctx, input); err != nil {
		return err
	}
	if err := p.Type(ctx, input, query, e.cfg.TypeDelay); err != nil {
		return err
	}
	return p.ClickAndWait(ctx, e.cfg.Search.SubmitButton)
}

func (e *Executor) gotoPage(ctx context.Context, p browser.Page, n int) error {
	current, err := p.URL(ctx)
	if err != nil {
		return err
	}
	next, err := withPage(current, e.cfg.Site.PageParam, n)
	if err != nil {
		return err
	}
	return p.Navigate(ctx, next)
}

// collectPage waits for result cards and extracts them. A page that never
// shows cards counts as empty only when it carries the "no results" marker.
func (e *Executor) collectPage(ctx context.Context, p browser.Page) ([]ResultRecord, error) {
	_, waitErr := p.WaitAny(ctx, e.cfg.Results.Containers, e.cfg.SelectorTimeout)

	current, err := p.URL(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := p.HTML(ctx)
	if err != nil {
		return nil, err
	}

	if waitErr != nil {
		if errors.Is(waitErr, browser.ErrSelectorTimeout) {
			if empty, err := e.extractor.IsEmptyResultPage(doc); err == nil && empty {
				return []ResultRecord{}, nil
			}
		}
		return nil, fmt.Errorf("results: %w", waitErr)
	}
	return e.extractor.Extract(current, doc)
}

// withPage sets the page query parameter on rawURL.
func withPage(rawURL, param string, n int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad results url %q: %v", browser.ErrNavigation, rawURL, err)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
