package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	serviceStats = "stats"
	serviceStore = "store"
)

// UpstreamError is the single error type for transport failures and non-2xx responses
type UpstreamError struct {
	Service    string
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("steam %s %s: HTTP %d: %s", e.Service, e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("steam %s %s: %s", e.Service, e.Endpoint, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether upstream answered 429
func (e *UpstreamError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsUpstreamError reports whether err is or wraps an *UpstreamError
func IsUpstreamError(err error) bool {
	var upstreamErr *UpstreamError
	return errors.As(err, &upstreamErr)
}

// fetchJSON performs a GET and decodes a 2xx JSON body into out.
// Every failure is logged and returned as *UpstreamError.
func fetchJSON(ctx context.Context, client *http.Client, service, endpoint, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &UpstreamError{Service: service, Endpoint: endpoint, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "steamtop/1.0")

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		slog.Error("Steam request failed", "service", service, "endpoint", endpoint, "error", err)
		return &UpstreamError{Service: service, Endpoint: endpoint, Message: err.Error(), Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = res.Status
		}
		if res.StatusCode == http.StatusTooManyRequests {
			slog.Error("Rate limit exceeded (429) from Steam", "service", service, "endpoint", endpoint)
		} else {
			slog.Error("HTTP status code error", "service", service, "endpoint", endpoint, "code", res.StatusCode, "status", res.Status)
		}
		return &UpstreamError{Service: service, Endpoint: endpoint, StatusCode: res.StatusCode, Message: message}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		slog.Error("Failed to decode JSON response", "service", service, "endpoint", endpoint, "error", err)
		return &UpstreamError{Service: service, Endpoint: endpoint, StatusCode: res.StatusCode, Message: "failed to decode JSON", Err: err}
	}

	slog.Debug("Steam request done", "service", service, "endpoint", endpoint, "duration", time.Since(start))
	return nil
}

// StatsClient talks to the key-authenticated Steam Web API
type StatsClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewStatsClient creates a Web API client from the configuration
func NewStatsClient(cfg Config, client *http.Client) *StatsClient {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &StatsClient{
		baseURL: cfg.StatsBaseURL,
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

// get adds the key and response format to every request
func (c *StatsClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	params.Set("format", "json")
	return fetchJSON(ctx, c.client, serviceStats, endpoint, c.baseURL+endpoint+"?"+params.Encode(), out)
}

// MostPlayed returns the current most played ranking
func (c *StatsClient) MostPlayed(ctx context.Context) ([]RankEntry, error) {
	var resp mostPlayedResponse
	if err := c.get(ctx, "ISteamChartsService/GetMostPlayedGames/v1/", nil, &resp); err != nil {
		return nil, err
	}

	ranks := make([]RankEntry, 0, len(resp.Response.Ranks))
	for _, r := range resp.Response.Ranks {
		ranks = append(ranks, RankEntry{
			AppID:          r.AppID,
			Rank:           r.Rank,
			LastWeekRank:   r.LastWeekRank,
			PeakConcurrent: r.PeakInGame,
		})
	}

	slog.Debug("Fetched most played ranking", "count", len(ranks))
	return ranks, nil
}

// CurrentPlayers returns the live player count for a title
func (c *StatsClient) CurrentPlayers(ctx context.Context, appID int) (int, error) {
	params := url.Values{}
	params.Set("appid", strconv.Itoa(appID))

	var resp currentPlayersResponse
	if err := c.get(ctx, "ISteamUserStats/GetNumberOfCurrentPlayers/v1/", params, &resp); err != nil {
		return 0, err
	}
	if resp.Response.Result != 1 {
		return 0, &UpstreamError{
			Service:  serviceStats,
			Endpoint: "ISteamUserStats/GetNumberOfCurrentPlayers/v1/",
			Message:  fmt.Sprintf("no player count for app %d (result %d)", appID, resp.Response.Result),
		}
	}
	return resp.Response.PlayerCount, nil
}

// AppNews returns recent announcements for a title; contents are returned as sent
func (c *StatsClient) AppNews(ctx context.Context, appID, count, maxLength int) ([]NewsItem, error) {
	params := url.Values{}
	params.Set("appid", strconv.Itoa(appID))
	params.Set("count", strconv.Itoa(count))
	params.Set("maxlength", strconv.Itoa(maxLength))

	var resp appNewsResponse
	if err := c.get(ctx, "ISteamNews/GetNewsForApp/v2/", params, &resp); err != nil {
		return nil, err
	}

	items := make([]NewsItem, 0, len(resp.AppNews.NewsItems))
	for _, n := range resp.AppNews.NewsItems {
		items = append(items, NewsItem{
			GID:       n.GID,
			Title:     n.Title,
			URL:       n.URL,
			Author:    n.Author,
			FeedLabel: n.FeedLabel,
			Contents:  n.Contents,
			Date:      time.Unix(n.Date, 0).UTC(),
		})
	}
	return items, nil
}

// AppList returns every registered app id and name
func (c *StatsClient) AppList(ctx context.Context) ([]AppListEntry, error) {
	var resp appListResponse
	if err := c.get(ctx, "ISteamApps/GetAppList/v2/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.AppList.Apps, nil
}

// StoreClient talks to the unauthenticated Store API with a fixed locale and pricing region
type StoreClient struct {
	baseURL string
	locale  string
	region  string
	client  *http.Client
}

// NewStoreClient creates a Store API client from the configuration
func NewStoreClient(cfg Config, client *http.Client) *StoreClient {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &StoreClient{
		baseURL: cfg.StoreBaseURL,
		locale:  cfg.Locale,
		region:  cfg.Region,
		client:  client,
	}
}

func (c *StoreClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("l", c.locale)
	params.Set("cc", c.region)
	return fetchJSON(ctx, c.client, serviceStore, endpoint, c.baseURL+endpoint+"?"+params.Encode(), out)
}

// AppDetails returns store metadata for a title. A missing or unsuccessful
// payload is not an error: it returns nil, nil because ids are often
// invalid, delisted or blocked in the configured region.
func (c *StoreClient) AppDetails(ctx context.Context, appID int) (*AppDetails, error) {
	params := url.Values{}
	params.Set("appids", strconv.Itoa(appID))

	var resp map[string]appDetailsEnvelope
	if err := c.get(ctx, "appdetails", params, &resp); err != nil {
		return nil, err
	}

	envelope, exists := resp[strconv.Itoa(appID)]
	if !exists || !envelope.Success || envelope.Data == nil {
		slog.Warn("App not available in store", "appid", appID, "region", c.region)
		return nil, nil
	}

	return envelope.Data, nil
}

// Search runs a free text store search
func (c *StoreClient) Search(ctx context.Context, term string) ([]SearchItem, error) {
	params := url.Values{}
	params.Set("term", term)

	var resp searchResponse
	if err := c.get(ctx, "storesearch", params, &resp); err != nil {
		return nil, err
	}

	slog.Debug("Store search done", "term", term, "total", resp.Total, "items", len(resp.Items))
	return resp.Items, nil
}

// FeaturedCategories returns the specials, top sellers and release lists
func (c *StoreClient) FeaturedCategories(ctx context.Context) (*FeaturedCategories, error) {
	var resp FeaturedCategories
	if err := c.get(ctx, "featuredcategories", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Featured returns the general featured listing
func (c *StoreClient) Featured(ctx context.Context) (*Featured, error) {
	var resp Featured
	if err := c.get(ctx, "featured", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
