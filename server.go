package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// APIResponse is the JSON envelope of every API answer
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("Failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Success: false, Error: message})
}

// writeQueryError maps query failures to status codes
func writeQueryError(w http.ResponseWriter, err error) {
	var upstreamErr *UpstreamError
	switch {
	case errors.As(err, &upstreamErr) && upstreamErr.RateLimited():
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &upstreamErr), errors.Is(err, ErrEmptyRanking):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// Server exposes the catalog over HTTP
type Server struct {
	catalog *Catalog
	labels  PriceLabels
	cfg     Config
}

// NewServer creates the HTTP service
func NewServer(catalog *Catalog, cfg Config) *Server {
	return &Server{catalog: catalog, labels: LabelsFromConfig(cfg), cfg: cfg}
}

// Router builds the route table
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(loggerMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/most-played", s.handleMostPlayed).Methods(http.MethodGet)
	api.HandleFunc("/offers", s.handleOffers).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/top-sellers", s.handleTopSellers).Methods(http.MethodGet)
	api.HandleFunc("/apps/{id:[0-9]+}", s.handleGame).Methods(http.MethodGet)
	api.HandleFunc("/apps/{id:[0-9]+}/news", s.handleNews).Methods(http.MethodGet)
	api.HandleFunc("/applist", s.handleAppList).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	r.HandleFunc("/feeds/{name}.xml", s.handleFeed).Methods(http.MethodGet)

	// Proxy contract for browser clients that cannot call Steam directly
	statsTarget, storeTarget := proxyTargets(s.cfg)
	r.PathPrefix("/steam-api/").Handler(newUpstreamProxy("/steam-api", statsTarget))
	r.PathPrefix("/steam-store/").Handler(newUpstreamProxy("/steam-store", strings.TrimSuffix(storeTarget, "api/")))

	return r
}

// proxyTargets returns the upstream bases the proxy forwards to. In development
// the configured bases point back at this proxy, so it forwards to Steam itself.
func proxyTargets(cfg Config) (stats, store string) {
	if cfg.Env == EnvDevelopment {
		return DefaultStatsBaseURL, DefaultStoreBaseURL
	}
	return cfg.StatsBaseURL, cfg.StoreBaseURL
}

// newUpstreamProxy forwards requests below prefix to target with the prefix removed
func newUpstreamProxy(prefix, target string) http.Handler {
	targetURL, err := url.Parse(target)
	if err != nil {
		slog.Error("Invalid proxy target", "target", target, "error", err)
		return http.NotFoundHandler()
	}
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, prefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(targetURL)
			pr.Out.Host = targetURL.Host
		},
	}
	return proxy
}

// statusRecorder captures the status code for logging
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		slog.Info("HTTP request", "method", r.Method, "path", r.URL.Path,
			"status", wrapped.statusCode, "duration", time.Since(start))
	})
}

// intParam reads a positive integer query parameter with a default and an upper bound
func intParam(r *http.Request, name string, def, maxValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, errors.New("invalid " + name + ": " + raw)
	}
	return min(value, maxValue), nil
}

func boolParam(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return value
}

// appIDParam reads the {id} route variable
func appIDParam(r *http.Request) (int, error) {
	raw := mux.Vars(r)["id"]
	appID, err := strconv.Atoi(raw)
	if err != nil || appID <= 0 {
		return 0, errors.New("invalid app id: " + raw)
	}
	return appID, nil
}

func queryOptions(r *http.Request) QueryOptions {
	return QueryOptions{ForceRefresh: boolParam(r, "refresh", false)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "ok"})
}

func (s *Server) handleMostPlayed(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	games, err := s.catalog.MostPlayed(r.Context(), limit, queryOptions(r))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: games})
}

func (s *Server) handleOffers(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 150)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.catalog.Offers(r.Context(), limit, queryOptions(r))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: result.Games, Message: result.Message})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeError(w, http.StatusBadRequest, "missing search term q")
		return
	}
	limit, err := intParam(r, "limit", 10, 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := SearchOptions{
		QueryOptions:    queryOptions(r),
		Limit:           limit,
		IncludeDetails:  boolParam(r, "details", false),
		IncludePlayers:  boolParam(r, "players", false),
		IncludeNonGames: boolParam(r, "all", false),
	}
	games, err := s.catalog.Search(r.Context(), term, opts)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: games})
}

func (s *Server) handleTopSellers(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	games, err := s.catalog.TopSellers(r.Context(), limit, queryOptions(r))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: games})
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	appID, err := appIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	game, err := s.catalog.Game(r.Context(), appID, queryOptions(r))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	if game == nil {
		writeError(w, http.StatusNotFound, "game not available")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: game})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	appID, err := appIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := intParam(r, "count", 10, 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.catalog.News(r.Context(), appID, count, queryOptions(r))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: items})
}

func (s *Server) handleAppList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query q")
		return
	}
	limit, err := intParam(r, "limit", 25, 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	apps, err := s.catalog.FindApps(r.Context(), query, limit, queryOptions(r))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: apps})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.catalog.Refresh()
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "caches cleared"})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	var info FeedInfo
	var games []GameSummary
	var err error

	switch mux.Vars(r)["name"] {
	case mostPlayedFeed.Name:
		info = mostPlayedFeed
		games, err = s.catalog.MostPlayed(r.Context(), 20, queryOptions(r))
	case offersFeed.Name:
		info = offersFeed
		var result OffersResult
		result, err = s.catalog.Offers(r.Context(), 50, queryOptions(r))
		games = result.Games
	default:
		writeError(w, http.StatusNotFound, "unknown feed")
		return
	}
	if err != nil {
		writeQueryError(w, err)
		return
	}

	atom, err := generateFeed(info, games, s.labels, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	_, _ = w.Write([]byte(atom))
}
