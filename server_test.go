package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type gamesResponse struct {
	Success bool          `json:"success"`
	Data    []GameSummary `json:"data"`
	Error   string        `json:"error"`
	Message string        `json:"message"`
}

func newTestServer(t *testing.T, deps CatalogDeps) http.Handler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Env = EnvDevelopment
	cfg.BatchDelay = 0
	catalog, err := NewCatalog(cfg, deps)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	return NewServer(catalog, cfg).Router()
}

func doRequest(handler http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeGames(t *testing.T, rec *httptest.ResponseRecorder) gamesResponse {
	t.Helper()
	var resp gamesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestServer_Health(t *testing.T) {
	handler := newTestServer(t, CatalogDeps{})
	rec := doRequest(handler, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestServer_MostPlayed(t *testing.T) {
	handler := newTestServer(t, CatalogDeps{
		Ranking:  &fakeRanking{ranks: []RankEntry{{AppID: 1, Rank: 1}, {AppID: 2, Rank: 2}}},
		Enricher: &fakeEnricher{names: map[int]string{1: "One", 2: "Two"}},
	})

	rec := doRequest(handler, http.MethodGet, "/api/most-played?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %s", ct)
	}
	resp := decodeGames(t, rec)
	if !resp.Success || len(resp.Data) != 2 || resp.Data[0].Name != "One" {
		t.Errorf("Unexpected response: %+v", resp)
	}

	if rec := doRequest(handler, http.MethodGet, "/api/most-played?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid limit, got %d", rec.Code)
	}
}

func TestServer_UpstreamErrors(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		expected int
	}{
		{"server error", http.StatusInternalServerError, http.StatusBadGateway},
		{"rate limited", http.StatusTooManyRequests, http.StatusServiceUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := &UpstreamError{Service: serviceStats, StatusCode: tc.status}
			handler := newTestServer(t, CatalogDeps{Ranking: &fakeRanking{err: upstream}, Enricher: &fakeEnricher{}})

			rec := doRequest(handler, http.MethodGet, "/api/most-played")
			if rec.Code != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, rec.Code)
			}
			if resp := decodeGames(t, rec); resp.Success || resp.Error == "" {
				t.Errorf("Expected an error envelope, got %+v", resp)
			}
		})
	}
}

func TestServer_OffersEmpty(t *testing.T) {
	handler := newTestServer(t, CatalogDeps{
		Store:    &fakeListings{categories: specialsOf(1)},
		Enricher: &pricedEnricher{discounts: map[int]int{1: 0}},
	})

	rec := doRequest(handler, http.MethodGet, "/api/offers?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	resp := decodeGames(t, rec)
	if resp.Message != NoOffersMessage || len(resp.Data) != 0 {
		t.Errorf("Expected no offers message, got %+v", resp)
	}
}

func TestServer_Search(t *testing.T) {
	handler := newTestServer(t, CatalogDeps{
		Store: &fakeListings{items: []SearchItem{
			{Type: "app", Name: "Portal", ID: 400},
			{Type: "dlc", Name: "Portal DLC", ID: 401},
		}},
		Enricher: &fakeEnricher{},
	})

	if rec := doRequest(handler, http.MethodGet, "/api/search"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a term, got %d", rec.Code)
	}

	resp := decodeGames(t, doRequest(handler, http.MethodGet, "/api/search?q=portal"))
	if len(resp.Data) != 1 {
		t.Errorf("Expected non-games to be filtered, got %d results", len(resp.Data))
	}

	resp = decodeGames(t, doRequest(handler, http.MethodGet, "/api/search?q=portal&all=true"))
	if len(resp.Data) != 2 {
		t.Errorf("Expected all results with all=true, got %d", len(resp.Data))
	}
}

func TestServer_GameAndNews(t *testing.T) {
	handler := newTestServer(t, CatalogDeps{
		Enricher: &fakeEnricher{names: map[int]string{10: "Ten"}},
		News:     &fakeNews{items: []NewsItem{{GID: "1", Title: "Patch"}}},
	})

	if rec := doRequest(handler, http.MethodGet, "/api/apps/10"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for a known game, got %d", rec.Code)
	}
	if rec := doRequest(handler, http.MethodGet, "/api/apps/11"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown game, got %d", rec.Code)
	}
	if rec := doRequest(handler, http.MethodGet, "/api/apps/abc"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a non-numeric id, got %d", rec.Code)
	}

	rec := doRequest(handler, http.MethodGet, "/api/apps/10/news")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Patch") {
		t.Errorf("Expected news, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Refresh(t *testing.T) {
	handler := newTestServer(t, CatalogDeps{})

	if rec := doRequest(handler, http.MethodPost, "/api/refresh"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec := doRequest(handler, http.MethodGet, "/api/refresh"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET, got %d", rec.Code)
	}
}

func TestServer_Feeds(t *testing.T) {
	handler := newTestServer(t, CatalogDeps{
		Ranking:  &fakeRanking{ranks: []RankEntry{{AppID: 1, Rank: 1}}},
		Enricher: &fakeEnricher{names: map[int]string{1: "One"}},
	})

	rec := doRequest(handler, http.MethodGet, "/feeds/mostplayed.xml")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/atom+xml") {
		t.Errorf("Expected Atom content type, got %s", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "#1 One") {
		t.Error("Expected feed to contain the ranked game")
	}

	if rec := doRequest(handler, http.MethodGet, "/feeds/unknown.xml"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown feed, got %d", rec.Code)
	}
}

func TestServer_UpstreamProxy(t *testing.T) {
	var gotPath, gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer upstream.Close()

	cfg := DefaultConfig()
	cfg.StatsBaseURL = upstream.URL + "/"
	cfg.StoreBaseURL = upstream.URL + "/api/"
	catalog, err := NewCatalog(cfg, CatalogDeps{})
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	handler := NewServer(catalog, cfg).Router()

	rec := doRequest(handler, http.MethodGet, "/steam-api/ISteamChartsService/GetMostPlayedGames/v1/?format=json")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from proxy, got %d", rec.Code)
	}
	if gotPath != "/ISteamChartsService/GetMostPlayedGames/v1/" || gotQuery != "format=json" {
		t.Errorf("Unexpected proxied request: %s?%s", gotPath, gotQuery)
	}

	doRequest(handler, http.MethodGet, "/steam-store/api/appdetails?appids=620")
	if gotPath != "/api/appdetails" || gotQuery != "appids=620" {
		t.Errorf("Unexpected proxied store request: %s?%s", gotPath, gotQuery)
	}
}

func TestServer_InvalidAppID(t *testing.T) {
	handler := newTestServer(t, CatalogDeps{
		Enricher: &fakeEnricher{names: map[int]string{0: "Zero"}},
		News:     &fakeNews{},
	})

	for _, target := range []string{"/api/apps/99999999999999999999", "/api/apps/0", "/api/apps/99999999999999999999/news"} {
		if rec := doRequest(handler, http.MethodGet, target); rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", target, rec.Code)
		}
	}
}

func TestServer_AppList(t *testing.T) {
	handler := newTestServer(t, CatalogDeps{Apps: &fakeAppList{apps: []AppListEntry{
		{AppID: 400, Name: "Portal"},
		{AppID: 620, Name: "Portal 2"},
		{AppID: 440, Name: "Team Fortress 2"},
	}}})

	if rec := doRequest(handler, http.MethodGet, "/api/applist"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a query, got %d", rec.Code)
	}

	rec := doRequest(handler, http.MethodGet, "/api/applist?q=PORTAL&limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp struct {
		Success bool           `json:"success"`
		Data    []AppListEntry `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].AppID != 400 {
		t.Errorf("Expected Portal only, got %+v", resp.Data)
	}
}

func TestProxyTargets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.applyEnvironment(EnvDevelopment)
	stats, store := proxyTargets(cfg)
	if stats != DefaultStatsBaseURL || store != DefaultStoreBaseURL {
		t.Errorf("Expected development proxy to forward to Steam, got %s %s", stats, store)
	}

	cfg = DefaultConfig()
	cfg.StatsBaseURL = "http://stats.internal/"
	stats, _ = proxyTargets(cfg)
	if stats != "http://stats.internal/" {
		t.Errorf("Expected configured base in production, got %s", stats)
	}
}
