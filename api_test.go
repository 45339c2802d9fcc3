package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Test helper functions

func testConfigFor(server *httptest.Server) Config {
	cfg := DefaultConfig()
	cfg.StatsBaseURL = server.URL + "/"
	cfg.StoreBaseURL = server.URL + "/api/"
	cfg.APIKey = "secret"
	return cfg
}

// Mock HTTP server answering every request with the same body
func createMockServer(status int, body string, inspect func(r *http.Request)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestStatsClient_MostPlayed(t *testing.T) {
	var gotPath, gotKey, gotFormat string
	server := createMockServer(http.StatusOK, `{
		"response": {
			"rollup_date": 1700000000,
			"ranks": [
				{"rank": 1, "appid": 730, "last_week_rank": 1, "peak_in_game": 1500000},
				{"rank": 2, "appid": 570, "last_week_rank": 3, "peak_in_game": 700000}
			]
		}
	}`, func(r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotFormat = r.URL.Query().Get("format")
	})
	defer server.Close()

	client := NewStatsClient(testConfigFor(server), server.Client())
	ranks, err := client.MostPlayed(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if gotPath != "/ISteamChartsService/GetMostPlayedGames/v1/" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if gotKey != "secret" || gotFormat != "json" {
		t.Errorf("Expected key and format params, got key=%q format=%q", gotKey, gotFormat)
	}
	if len(ranks) != 2 {
		t.Fatalf("Expected 2 ranks, got %d", len(ranks))
	}
	if ranks[0].AppID != 730 || ranks[0].Rank != 1 || ranks[0].PeakConcurrent != 1500000 {
		t.Errorf("Unexpected first rank: %+v", ranks[0])
	}
	if ranks[1].LastWeekRank != 3 {
		t.Errorf("Expected last week rank 3, got %d", ranks[1].LastWeekRank)
	}
}

func TestStatsClient_CurrentPlayers(t *testing.T) {
	server := createMockServer(http.StatusOK, `{"response": {"player_count": 12345, "result": 1}}`, func(r *http.Request) {
		if r.URL.Query().Get("appid") != "730" {
			t.Errorf("Expected appid 730, got %s", r.URL.Query().Get("appid"))
		}
	})
	defer server.Close()

	client := NewStatsClient(testConfigFor(server), server.Client())
	count, err := client.CurrentPlayers(context.Background(), 730)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if count != 12345 {
		t.Errorf("Expected 12345 players, got %d", count)
	}
}

func TestStatsClient_CurrentPlayersNoResult(t *testing.T) {
	server := createMockServer(http.StatusOK, `{"response": {"result": 42}}`, nil)
	defer server.Close()

	client := NewStatsClient(testConfigFor(server), server.Client())
	if _, err := client.CurrentPlayers(context.Background(), 1); !IsUpstreamError(err) {
		t.Errorf("Expected an upstream error, got %v", err)
	}
}

func TestStatsClient_AppNewsAndAppList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ISteamNews/GetNewsForApp/v2/":
			if r.URL.Query().Get("count") != "3" || r.URL.Query().Get("maxlength") != "300" {
				t.Errorf("Unexpected news params: %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"appnews": {"appid": 440, "newsitems": [
				{"gid": "1", "title": "Patch", "url": "https://example.com", "contents": "<b>fixed</b>", "date": 1700000000}
			]}}`))
		case "/ISteamApps/GetAppList/v2/":
			_, _ = w.Write([]byte(`{"applist": {"apps": [{"appid": 10, "name": "Counter-Strike"}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewStatsClient(testConfigFor(server), server.Client())
	items, err := client.AppNews(context.Background(), 440, 3, 300)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Patch" || items[0].Date.Unix() != 1700000000 {
		t.Errorf("Unexpected news items: %+v", items)
	}

	apps, err := client.AppList(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(apps) != 1 || apps[0].AppID != 10 {
		t.Errorf("Unexpected app list: %+v", apps)
	}
}

func TestFetchJSON_ServerError(t *testing.T) {
	server := createMockServer(http.StatusInternalServerError, `boom`, nil)
	defer server.Close()

	client := NewStatsClient(testConfigFor(server), server.Client())
	_, err := client.MostPlayed(context.Background())

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("Expected *UpstreamError, got %v", err)
	}
	if upstreamErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", upstreamErr.StatusCode)
	}
	if upstreamErr.Message != "boom" {
		t.Errorf("Expected message 'boom', got '%s'", upstreamErr.Message)
	}
	if upstreamErr.RateLimited() {
		t.Error("Expected 500 not to be reported as rate limited")
	}
}

func TestFetchJSON_RateLimited(t *testing.T) {
	server := createMockServer(http.StatusTooManyRequests, ``, nil)
	defer server.Close()

	client := NewStoreClient(testConfigFor(server), server.Client())
	_, err := client.Search(context.Background(), "portal")

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) || !upstreamErr.RateLimited() {
		t.Errorf("Expected rate limited upstream error, got %v", err)
	}
}

func TestFetchJSON_InvalidJSON(t *testing.T) {
	server := createMockServer(http.StatusOK, `{not json`, nil)
	defer server.Close()

	client := NewStoreClient(testConfigFor(server), server.Client())
	if _, err := client.FeaturedCategories(context.Background()); !IsUpstreamError(err) {
		t.Errorf("Expected upstream error for invalid JSON, got %v", err)
	}
}

func TestStoreClient_AppDetails(t *testing.T) {
	var gotLocale, gotRegion string
	server := createMockServer(http.StatusOK, `{
		"620": {"success": true, "data": {"type": "game", "name": "Portal 2", "steam_appid": 620, "is_free": false}}
	}`, func(r *http.Request) {
		gotLocale = r.URL.Query().Get("l")
		gotRegion = r.URL.Query().Get("cc")
		if r.URL.Path != "/api/appdetails" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	})
	defer server.Close()

	client := NewStoreClient(testConfigFor(server), server.Client())
	details, err := client.AppDetails(context.Background(), 620)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if details == nil || details.Name != "Portal 2" {
		t.Errorf("Expected Portal 2 details, got %+v", details)
	}
	if gotLocale != "english" || gotRegion != "US" {
		t.Errorf("Expected l=english cc=US, got l=%s cc=%s", gotLocale, gotRegion)
	}
}

func TestStoreClient_AppDetailsSoftMiss(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"unsuccessful", `{"1": {"success": false}}`},
		{"missing entry", `{}`},
		{"no data", `{"1": {"success": true}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := createMockServer(http.StatusOK, tc.body, nil)
			defer server.Close()

			client := NewStoreClient(testConfigFor(server), server.Client())
			details, err := client.AppDetails(context.Background(), 1)
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if details != nil {
				t.Errorf("Expected nil details, got %+v", details)
			}
		})
	}
}

func TestStoreClient_Search(t *testing.T) {
	server := createMockServer(http.StatusOK, `{"total": 2, "items": [
		{"type": "app", "name": "Portal", "id": 400, "price": {"currency": "USD", "initial": 999, "final": 199}},
		{"type": "app", "name": "Team Fortress 2", "id": 440, "price": 0}
	]}`, func(r *http.Request) {
		if r.URL.Query().Get("term") != "portal" {
			t.Errorf("Expected term portal, got %s", r.URL.Query().Get("term"))
		}
	})
	defer server.Close()

	client := NewStoreClient(testConfigFor(server), server.Client())
	items, err := client.Search(context.Background(), "portal")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Price == nil || *items[0].Price.Final != 199 {
		t.Errorf("Expected object price to be parsed, got %+v", items[0].Price)
	}
	if items[1].Price == nil || *items[1].Price.Final != 0 {
		t.Errorf("Expected bare zero price to be parsed, got %+v", items[1].Price)
	}
}

func TestStoreClient_Featured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/featuredcategories":
			_, _ = w.Write([]byte(`{"specials": {"id": "cat_specials", "name": "Specials", "items": [{"id": 10, "name": "A", "discounted": true, "discount_percent": 50, "original_price": 2000, "final_price": 1000, "currency": "USD"}]}}`))
		case "/api/featured":
			_, _ = w.Write([]byte(`{"large_capsules": [{"id": 20, "name": "B"}], "featured_win": [{"id": 30, "name": "C"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewStoreClient(testConfigFor(server), server.Client())
	categories, err := client.FeaturedCategories(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if categories.Specials == nil || len(categories.Specials.Items) != 1 || categories.Specials.Items[0].ID != 10 {
		t.Errorf("Unexpected specials: %+v", categories.Specials)
	}
	if categories.TopSellers != nil {
		t.Error("Expected missing top sellers to stay nil")
	}

	featured, err := client.Featured(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(featured.LargeCapsules) != 1 || len(featured.FeaturedWin) != 1 {
		t.Errorf("Unexpected featured payload: %+v", featured)
	}
}
