package api

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shodanx/auth"
	"shodanx/pkg/logctx"
	"shodanx/search"

	"go.uber.org/zap"
)

type searchBody struct {
	Query string `json:"query"`
	// Pages may arrive as a number or a string.
	Pages any `json:"pages"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type healthResponse struct {
	OK                bool   `json:"ok"`
	LoggedIn          bool   `json:"loggedIn"`
	AwaitingChallenge bool   `json:"awaitingChallenge"`
	TS                string `json:"ts"`
}

// SearchHandler accepts a JSON body {query, pages} or the q and pages query parameters.
func (s *Server) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var body searchBody
	if r.Method == http.MethodPost && r.Body != nil {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}

	q := r.URL.Query()
	query := strings.TrimSpace(body.Query)
	if query == "" {
		query = strings.TrimSpace(q.Get("q"))
	}
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing query"})
		return
	}

	pagesRaw := body.Pages
	if pagesRaw == nil && q.Has("pages") {
		pagesRaw = q.Get("pages")
	}

	ctx := logctx.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))
	logger := logctx.Logger(ctx, s.logger)
	w.Header().Set("X-Request-ID", logctx.RequestID(ctx))

	resp, err := s.engine.Search(ctx, &search.SearchRequest{
		Query: query,
		Pages: coercePages(pagesRaw, s.maxPages),
	})
	if err != nil {
		logger.Error("search request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "search failed", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthHandler reports liveness and the login state.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	state := auth.StateUnknown
	if s.status != nil {
		state = s.status.State()
	}
	writeJSON(w, http.StatusOK, healthResponse{
		OK:                true,
		LoggedIn:          state == auth.StateAuthenticated,
		AwaitingChallenge: state == auth.StateAwaitingChallenge,
		TS:                s.now().UTC().Format(time.RFC3339),
	})
}

// coercePages turns whatever the client sent into a page count in [1, limit].
// Missing or non-numeric values fall back to the default.
func coercePages(v any, limit int) int {
	switch p := v.(type) {
	case float64:
		// out-of-range float to int conversion is implementation defined
		p = min(max(p, math.MinInt32), math.MaxInt32)
		return search.NormalizePages(int(p), limit)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return search.DefaultPages
		}
		return search.NormalizePages(n, limit)
	default:
		return search.DefaultPages
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
