package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrEmptyRanking is returned when the ranking endpoint answers with no entries
var ErrEmptyRanking = errors.New("most played ranking is empty")

// NoOffersMessage is reported with an empty, successful offers query
const NoOffersMessage = "no active offers"

// RankingSource provides the most played ranking
type RankingSource interface {
	MostPlayed(ctx context.Context) ([]RankEntry, error)
}

// StoreListings provides store search and featured listings
type StoreListings interface {
	Search(ctx context.Context, term string) ([]SearchItem, error)
	FeaturedCategories(ctx context.Context) (*FeaturedCategories, error)
	Featured(ctx context.Context) (*Featured, error)
}

// NewsSource provides app announcements
type NewsSource interface {
	AppNews(ctx context.Context, appID, count, maxLength int) ([]NewsItem, error)
}

// AppListSource provides the full registry of app ids and names
type AppListSource interface {
	AppList(ctx context.Context) ([]AppListEntry, error)
}

// QueryOptions applies to every aggregate query
type QueryOptions struct {
	ForceRefresh bool
	OnProgress   func(Progress)
}

// SearchOptions controls a search query
type SearchOptions struct {
	QueryOptions
	Limit          int
	IncludeDetails bool
	IncludePlayers bool
	// IncludeNonGames keeps DLC, soundtracks and other non-game entries
	IncludeNonGames bool
}

// DefaultSearchOptions mirrors the search page defaults
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{Limit: 10}
}

// OffersResult carries discounted games, or a message when there are none
type OffersResult struct {
	Games   []GameSummary `json:"games"`
	Message string        `json:"message,omitempty"`
}

// CatalogDeps are the collaborators of a Catalog
type CatalogDeps struct {
	Ranking     RankingSource
	Store       StoreListings
	News        NewsSource
	Apps        AppListSource
	Enricher    SummaryEnricher
	RankCache   *TTLCache
	ResultCache *TTLCache
	// ExtraCaches are cleared together with the others on Refresh
	ExtraCaches []*TTLCache
}

// Catalog composes the gateway, batch fetcher and caches into the user facing queries
type Catalog struct {
	ranking     RankingSource
	store       StoreListings
	news        NewsSource
	apps        AppListSource
	enricher    SummaryEnricher
	rankCache   *TTLCache
	resultCache *TTLCache
	extraCaches []*TTLCache
	labels      PriceLabels
	concurrency int
	batchDelay  time.Duration

	group singleflight.Group
}

// NewCatalog creates a catalog from its configuration and collaborators
func NewCatalog(cfg Config, deps CatalogDeps) (*Catalog, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, cfg.Concurrency)
	}
	if deps.RankCache == nil {
		deps.RankCache = NewTTLCache(cfg.RankingTTL)
	}
	if deps.ResultCache == nil {
		deps.ResultCache = NewTTLCache(cfg.ResultTTL)
	}
	return &Catalog{
		ranking:     deps.Ranking,
		store:       deps.Store,
		news:        deps.News,
		apps:        deps.Apps,
		enricher:    deps.Enricher,
		rankCache:   deps.RankCache,
		resultCache: deps.ResultCache,
		extraCaches: deps.ExtraCaches,
		labels:      LabelsFromConfig(cfg),
		concurrency: cfg.Concurrency,
		batchDelay:  cfg.BatchDelay,
	}, nil
}

// cachedGames returns a copy of a cached game list
func cachedGames(c *TTLCache, key string) ([]GameSummary, bool) {
	games, ok := getTyped[[]GameSummary](c, key)
	if !ok {
		return nil, false
	}
	slog.Debug("Using cached result", "key", key)
	return slices.Clone(games), true
}

// shared runs fn once per key across concurrent callers. The work runs on a
// context detached from the caller so one caller going away does not abort
// it for the others; each caller still stops waiting when its own ctx is done.
func (c *Catalog) shared(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Rankings returns the ranking snapshot, cached under a fixed key
func (c *Catalog) Rankings(ctx context.Context, forceRefresh bool) ([]RankEntry, error) {
	const key = "most-played:ranks"
	if !forceRefresh {
		if ranks, ok := getTyped[[]RankEntry](c.rankCache, key); ok {
			slog.Debug("Using cached ranking", "count", len(ranks))
			return slices.Clone(ranks), nil
		}
	}

	v, err := c.shared(ctx, key, func(ctx context.Context) (any, error) {
		ranks, err := c.ranking.MostPlayed(ctx)
		if err != nil {
			return nil, err
		}
		if len(ranks) == 0 {
			return nil, ErrEmptyRanking
		}
		c.rankCache.Set(key, ranks)
		return ranks, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]RankEntry)), nil
}

// MostPlayed returns the top n most played titles with details and live player counts
func (c *Catalog) MostPlayed(ctx context.Context, n int, opts QueryOptions) ([]GameSummary, error) {
	if n <= 0 {
		return []GameSummary{}, nil
	}
	key := BuildCacheKey("most-played", n)
	if !opts.ForceRefresh {
		if games, ok := cachedGames(c.resultCache, key); ok {
			return games, nil
		}
	}

	v, err := c.shared(ctx, key, func(ctx context.Context) (any, error) {
		ranks, err := c.Rankings(ctx, opts.ForceRefresh)
		if err != nil {
			return nil, err
		}
		if len(ranks) > n {
			ranks = ranks[:n]
		}

		appIDs := make([]int, 0, len(ranks))
		byAppID := make(map[int]RankEntry, len(ranks))
		for _, r := range ranks {
			appIDs = append(appIDs, r.AppID)
			byAppID[r.AppID] = r
		}

		games, err := FetchMany(ctx, c.enricher, appIDs, BatchOptions{
			Limit:          n,
			Concurrency:    c.concurrency,
			IncludePlayers: true,
			BatchDelay:     c.batchDelay,
			OnProgress:     opts.OnProgress,
		})
		if err != nil {
			return nil, err
		}

		for i, g := range games {
			if entry, ok := byAppID[g.AppID]; ok {
				games[i] = g.withRank(entry)
			}
		}
		SortByRank(games)

		c.resultCache.Set(key, games)
		return games, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]GameSummary)), nil
}

// offerCandidates returns deduplicated ids from the specials list, or from
// the general featured listing when there are no specials
func (c *Catalog) offerCandidates(ctx context.Context) ([]int, error) {
	var ids []int
	seen := make(map[int]bool)
	add := func(items []FeaturedItem) {
		for _, item := range items {
			if item.ID <= 0 || seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			ids = append(ids, item.ID)
		}
	}

	categories, err := c.store.FeaturedCategories(ctx)
	if err != nil {
		slog.Warn("Failed to fetch specials, falling back to featured", "error", err)
	} else if categories.Specials != nil {
		add(categories.Specials.Items)
	}
	if len(ids) > 0 {
		slog.Debug("Using specials as offer candidates", "count", len(ids))
		return ids, nil
	}

	featured, featuredErr := c.store.Featured(ctx)
	if featuredErr != nil {
		if err != nil {
			return nil, errors.Join(err, featuredErr)
		}
		return nil, featuredErr
	}
	add(featured.LargeCapsules)
	add(featured.FeaturedWin)
	add(featured.FeaturedMac)
	add(featured.FeaturedLinux)

	slog.Debug("Using featured listing as offer candidates", "count", len(ids))
	return ids, nil
}

// Offers returns up to limit discounted titles. Finding none is not an error.
func (c *Catalog) Offers(ctx context.Context, limit int, opts QueryOptions) (OffersResult, error) {
	if limit <= 0 {
		return OffersResult{Games: []GameSummary{}, Message: NoOffersMessage}, nil
	}
	key := BuildCacheKey("offers", limit)
	if !opts.ForceRefresh {
		if games, ok := cachedGames(c.resultCache, key); ok {
			return offersResult(games), nil
		}
	}

	v, err := c.shared(ctx, key, func(ctx context.Context) (any, error) {
		candidates, err := c.offerCandidates(ctx)
		if err != nil {
			return nil, err
		}

		chunkSize := max(limit, c.concurrency*2)
		total := len(candidates)
		offers := make([]GameSummary, 0, limit)
		done := 0

		for start := 0; start < total && len(offers) < limit; start += chunkSize {
			end := min(start+chunkSize, total)
			chunk := candidates[start:end]
			offset := done

			games, err := FetchMany(ctx, c.enricher, chunk, BatchOptions{
				Concurrency: c.concurrency,
				BatchDelay:  c.batchDelay,
				OnProgress: func(p Progress) {
					if opts.OnProgress != nil {
						opts.OnProgress(Progress{Current: offset + p.Current, Total: total})
					}
				},
			})
			if err != nil {
				return nil, err
			}
			done += len(chunk)

			for _, g := range OrderLike(games, chunk) {
				if g.Price.DiscountPercent > 0 {
					offers = append(offers, g)
				}
			}
		}

		if done < total && opts.OnProgress != nil {
			opts.OnProgress(Progress{Current: total, Total: total})
		}
		if len(offers) > limit {
			offers = offers[:limit]
		}

		slog.Info("Collected offers", "count", len(offers), "candidates", total, "checked", done)
		c.resultCache.Set(key, offers)
		return offers, nil
	})
	if err != nil {
		return OffersResult{}, err
	}
	return offersResult(slices.Clone(v.([]GameSummary))), nil
}

func offersResult(games []GameSummary) OffersResult {
	if len(games) == 0 {
		return OffersResult{Games: []GameSummary{}, Message: NoOffersMessage}
	}
	return OffersResult{Games: games}
}

var nonGameWords = []string{"dlc", "ost", "soundtrack", "artbook", "wallpaper", "wallpapers"}

// isGameItem filters DLC, soundtracks and similar entries out of search results
func isGameItem(item SearchItem) bool {
	itemType := strings.ToLower(item.Type)
	if itemType == "dlc" || itemType == "music" {
		return false
	}
	if itemType != "game" && itemType != "app" {
		return false
	}

	words := strings.FieldsFunc(strings.ToLower(item.Name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	for _, word := range words {
		if slices.Contains(nonGameWords, word) {
			return false
		}
	}
	return true
}

// summaryFromSearch maps a search hit into a lightweight summary
func summaryFromSearch(item SearchItem, labels PriceLabels) GameSummary {
	var metacritic *int
	if score, err := strconv.Atoi(item.Metascore); err == nil && score > 0 {
		metacritic = &score
	}

	rating := Rating{Label: LabelInsufficient, ColorToken: ColorNeutral}
	if metacritic != nil {
		rating = ratingForPercent(float64(*metacritic))
	}

	capsule := item.TinyImage
	if capsule == "" {
		capsule = SmallCapsuleURL(item.ID)
	}

	return GameSummary{
		AppID:              item.ID,
		Name:               item.Name,
		ShortDescription:   plainText(item.ShortDescription),
		HeaderImageURL:     HeaderImageURL(item.ID),
		CapsuleImageURL:    capsule,
		BackgroundImageURL: BackgroundImageURL(item.ID),
		LibraryImageURL:    LibraryImageURL(item.ID),
		Price:              PriceFromSearch(item, labels),
		Developers:         []string{},
		Publishers:         []string{},
		Genres:             []NamedTag{},
		Categories:         []NamedTag{},
		Platforms:          item.Platforms,
		MetacriticScore:    metacritic,
		Rating:             rating,
	}
}

// Search runs a store search, by default dropping non-game entries
func (c *Catalog) Search(ctx context.Context, term string, opts SearchOptions) ([]GameSummary, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []GameSummary{}, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchOptions().Limit
	}

	key := BuildCacheKey("search", strings.ToLower(term), opts.Limit, opts.IncludeDetails, opts.IncludeNonGames, opts.IncludePlayers)
	if !opts.ForceRefresh {
		if games, ok := cachedGames(c.resultCache, key); ok {
			return games, nil
		}
	}

	v, err := c.shared(ctx, key, func(ctx context.Context) (any, error) {
		items, err := c.store.Search(ctx, term)
		if err != nil {
			return nil, err
		}

		if !opts.IncludeNonGames {
			filtered := items[:0:0]
			for _, item := range items {
				if isGameItem(item) {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}
		if len(items) > opts.Limit {
			items = items[:opts.Limit]
		}

		var games []GameSummary
		if opts.IncludeDetails && len(items) > 0 {
			appIDs := make([]int, 0, len(items))
			for _, item := range items {
				appIDs = append(appIDs, item.ID)
			}
			detailed, err := FetchMany(ctx, c.enricher, appIDs, BatchOptions{
				Limit:          len(appIDs),
				Concurrency:    c.concurrency,
				IncludePlayers: opts.IncludePlayers,
				BatchDelay:     c.batchDelay,
				OnProgress:     opts.OnProgress,
			})
			if err != nil {
				return nil, err
			}
			games = OrderLike(detailed, appIDs)
		} else {
			games = make([]GameSummary, 0, len(items))
			for _, item := range items {
				games = append(games, summaryFromSearch(item, c.labels))
			}
		}

		c.resultCache.Set(key, games)
		return games, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]GameSummary)), nil
}

// summaryFromFeatured maps a featured listing item into a lightweight summary
func summaryFromFeatured(item FeaturedItem, labels PriceLabels) GameSummary {
	header := item.HeaderImage
	if header == "" {
		header = HeaderImageURL(item.ID)
	}
	capsule := item.LargeCapsuleImage
	if capsule == "" {
		capsule = CapsuleImageURL(item.ID)
	}
	return GameSummary{
		AppID:              item.ID,
		Name:               item.Name,
		HeaderImageURL:     header,
		CapsuleImageURL:    capsule,
		BackgroundImageURL: BackgroundImageURL(item.ID),
		LibraryImageURL:    LibraryImageURL(item.ID),
		Price:              PriceFromFeatured(item, labels),
		Developers:         []string{},
		Publishers:         []string{},
		Genres:             []NamedTag{},
		Categories:         []NamedTag{},
		Platforms: Platforms{
			Windows: item.WindowsAvailable,
			Mac:     item.MacAvailable,
			Linux:   item.LinuxAvailable,
		},
		Rating: Rating{Label: LabelInsufficient, ColorToken: ColorNeutral},
	}
}

// TopSellers returns the store's top sellers list without extra lookups
func (c *Catalog) TopSellers(ctx context.Context, limit int, opts QueryOptions) ([]GameSummary, error) {
	key := BuildCacheKey("top-sellers", limit)
	if !opts.ForceRefresh {
		if games, ok := cachedGames(c.resultCache, key); ok {
			return games, nil
		}
	}

	categories, err := c.store.FeaturedCategories(ctx)
	if err != nil {
		return nil, err
	}

	games := []GameSummary{}
	if categories.TopSellers != nil {
		seen := make(map[int]bool)
		for _, item := range categories.TopSellers.Items {
			if seen[item.ID] || item.ID <= 0 {
				continue
			}
			seen[item.ID] = true
			games = append(games, summaryFromFeatured(item, c.labels))
			if limit > 0 && len(games) >= limit {
				break
			}
		}
	}

	c.resultCache.Set(key, games)
	return slices.Clone(games), nil
}

// Game returns the full summary of one title, nil when the store does not know it
func (c *Catalog) Game(ctx context.Context, appID int, opts QueryOptions) (*GameSummary, error) {
	key := BuildCacheKey("app", appID)
	if !opts.ForceRefresh {
		if game, ok := getTyped[GameSummary](c.resultCache, key); ok {
			return &game, nil
		}
	}

	game, err := c.enricher.Enrich(ctx, appID, true)
	if err != nil || game == nil {
		return nil, err
	}
	c.resultCache.Set(key, *game)
	return game, nil
}

// News returns recent announcements for a title with markup removed
func (c *Catalog) News(ctx context.Context, appID, count int, opts QueryOptions) ([]NewsItem, error) {
	if c.news == nil {
		return nil, errors.New("news source not configured")
	}
	key := BuildCacheKey("news", appID, count)
	if !opts.ForceRefresh {
		if items, ok := getTyped[[]NewsItem](c.resultCache, key); ok {
			return slices.Clone(items), nil
		}
	}

	items, err := c.news.AppNews(ctx, appID, count, 300)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Contents = plainText(items[i].Contents)
	}

	c.resultCache.Set(key, items)
	return slices.Clone(items), nil
}

// FindApps matches query against app names of the full app list, case insensitively.
// The list is large, so it is fetched once per result TTL and filtered locally.
func (c *Catalog) FindApps(ctx context.Context, query string, limit int, opts QueryOptions) ([]AppListEntry, error) {
	if c.apps == nil {
		return nil, errors.New("app list source not configured")
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []AppListEntry{}, nil
	}

	const key = "applist"
	apps, ok := getTyped[[]AppListEntry](c.resultCache, key)
	if !ok || opts.ForceRefresh {
		v, err := c.shared(ctx, key, func(ctx context.Context) (any, error) {
			apps, err := c.apps.AppList(ctx)
			if err != nil {
				return nil, err
			}
			slog.Debug("Fetched app list", "count", len(apps))
			c.resultCache.Set(key, apps)
			return apps, nil
		})
		if err != nil {
			return nil, err
		}
		apps = v.([]AppListEntry)
	}

	matches := []AppListEntry{}
	for _, app := range apps {
		if app.Name == "" || !strings.Contains(strings.ToLower(app.Name), query) {
			continue
		}
		matches = append(matches, app)
		if limit > 0 && len(matches) >= limit {
			break
		}
	}
	return matches, nil
}

// Refresh clears every cache, the manual refresh action
func (c *Catalog) Refresh() {
	c.rankCache.Clear()
	c.resultCache.Clear()
	for _, cache := range c.extraCaches {
		cache.Clear()
	}
	slog.Info("Caches cleared")
}
