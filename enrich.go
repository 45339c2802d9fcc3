package main

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// DetailsSource returns store metadata, nil without error for unknown titles
type DetailsSource interface {
	AppDetails(ctx context.Context, appID int) (*AppDetails, error)
}

// PlayerCountSource returns the live player count of a title
type PlayerCountSource interface {
	CurrentPlayers(ctx context.Context, appID int) (int, error)
}

// Enricher combines the store lookup and the player count lookup of a title
// into one GameSummary
type Enricher struct {
	details     DetailsSource
	players     PlayerCountSource
	labels      PriceLabels
	rng         RandomSource
	detailCache *TTLCache
}

// NewEnricher creates an enricher. detailCache may be nil to always fetch fresh details.
func NewEnricher(details DetailsSource, players PlayerCountSource, labels PriceLabels, rng RandomSource, detailCache *TTLCache) *Enricher {
	if rng == nil {
		rng = NewRandomSource(0)
	}
	return &Enricher{
		details:     details,
		players:     players,
		labels:      labels,
		rng:         rng,
		detailCache: detailCache,
	}
}

// appDetails reads through the optional detail cache. Soft misses are not cached.
func (e *Enricher) appDetails(ctx context.Context, appID int) (*AppDetails, error) {
	key := BuildCacheKey("details", appID)
	if e.detailCache != nil {
		if cached, ok := getTyped[*AppDetails](e.detailCache, key); ok {
			slog.Debug("Using cached app details", "appid", appID)
			return cached, nil
		}
	}

	details, err := e.details.AppDetails(ctx, appID)
	if err != nil || details == nil {
		return details, err
	}
	if e.detailCache != nil {
		e.detailCache.Set(key, details)
	}
	return details, nil
}

// Enrich returns the summary for appID, or nil, nil when the store has no
// data for it. A failed player count only leaves CurrentPlayers nil.
func (e *Enricher) Enrich(ctx context.Context, appID int, includePlayers bool) (*GameSummary, error) {
	var details *AppDetails
	var players *int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		details, err = e.appDetails(gctx, appID)
		return err
	})
	if includePlayers && e.players != nil {
		g.Go(func() error {
			count, err := e.players.CurrentPlayers(gctx, appID)
			if err != nil {
				slog.Warn("Failed to fetch player count", "appid", appID, "error", err)
				return nil
			}
			players = &count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if details == nil {
		slog.Warn("Game has no store details", "appid", appID)
		return nil, nil
	}

	summary := e.summarize(appID, details)
	summary.CurrentPlayers = players
	return &summary, nil
}

// summarize maps a store payload to a summary without player data
func (e *Enricher) summarize(appID int, d *AppDetails) GameSummary {
	var metacritic *int
	if d.Metacritic != nil && d.Metacritic.Score > 0 {
		score := d.Metacritic.Score
		metacritic = &score
	}

	recommendations := 0
	if d.Recommendations != nil {
		recommendations = d.Recommendations.Total
	}

	releaseDate := "TBA"
	if d.ReleaseDate != nil && d.ReleaseDate.Date != "" {
		releaseDate = d.ReleaseDate.Date
	}

	genres := make([]NamedTag, 0, len(d.Genres))
	for _, g := range d.Genres {
		genres = append(genres, NamedTag{ID: g.ID, Name: g.Description})
	}
	categories := make([]NamedTag, 0, len(d.Categories))
	for _, c := range d.Categories {
		categories = append(categories, NamedTag{ID: strconv.Itoa(c.ID), Name: c.Description})
	}

	var platforms Platforms
	if d.Platforms != nil {
		platforms = *d.Platforms
	}

	background := d.BackgroundRaw
	if background == "" {
		background = d.Background
	}
	if background == "" {
		background = BackgroundImageURL(appID)
	}
	header := d.HeaderImage
	if header == "" {
		header = HeaderImageURL(appID)
	}

	return GameSummary{
		AppID:                appID,
		Name:                 d.Name,
		ShortDescription:     plainText(d.ShortDescription),
		HeaderImageURL:       header,
		CapsuleImageURL:      CapsuleImageURL(appID),
		BackgroundImageURL:   background,
		LibraryImageURL:      LibraryImageURL(appID),
		Price:                PriceFromOverview(d.IsFree, d.PriceOverview, e.labels),
		ReleaseDateText:      releaseDate,
		Developers:           nonNil(d.Developers),
		Publishers:           nonNil(d.Publishers),
		Genres:               genres,
		Categories:           categories,
		Platforms:            platforms,
		MetacriticScore:      metacritic,
		TotalRecommendations: recommendations,
		Rating:               EstimateRating(recommendations, metacritic, e.rng),
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// plainText strips markup from store and news HTML and collapses whitespace
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		slog.Debug("Failed to parse HTML, keeping raw text", "error", err)
		return strings.Join(strings.Fields(s), " ")
	}

	doc := goquery.NewDocumentFromNode(root)
	doc.Find("br").ReplaceWithHtml(" ")
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
