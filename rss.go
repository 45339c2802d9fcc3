package main

import (
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/feeds"
)

// FeedInfo describes one generated feed
type FeedInfo struct {
	Name        string
	Title       string
	Description string
}

var (
	mostPlayedFeed = FeedInfo{
		Name:        "mostplayed",
		Title:       "Steam Most Played",
		Description: "The most played games on Steam right now, with live player counts",
	}
	offersFeed = FeedInfo{
		Name:        "offers",
		Title:       "Steam Offers",
		Description: "Discounted games on the Steam store",
	}
)

// renderGameDescription builds the HTML body of a feed entry
func renderGameDescription(game GameSummary, labels PriceLabels) string {
	var b strings.Builder

	b.WriteString(`<div style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.5;">`)
	fmt.Fprintf(&b, `<img src="%s" alt="%s" style="max-width: 100%%; height: auto; border-radius: 4px;" loading="lazy">`,
		html.EscapeString(game.HeaderImageURL), html.EscapeString(game.Name))

	b.WriteString(`<div style="margin: 12px 0; padding: 8px; background-color: #1b2838; color: #c7d5e0; border-left: 4px solid #66c0f4;">`)
	if game.Price.HasDiscount() {
		fmt.Fprintf(&b, `<strong style="color: #beee11;">-%d%%</strong> <s>%s</s> <strong>%s</strong>`,
			game.Price.DiscountPercent, html.EscapeString(*game.Price.OriginalDisplayText), html.EscapeString(game.Price.DisplayText))
	} else {
		fmt.Fprintf(&b, `<strong>%s</strong>`, html.EscapeString(game.Price.DisplayText))
	}
	if game.CurrentPlayers != nil {
		fmt.Fprintf(&b, ` • %s playing now`, formatPlayers(game.CurrentPlayers))
	}
	if game.PeakConcurrent > 0 {
		fmt.Fprintf(&b, ` • peak %s`, formatPlayers(&game.PeakConcurrent))
	}
	b.WriteString(`</div>`)

	fmt.Fprintf(&b, `<div style="margin-bottom: 8px;"><strong>Rating:</strong> <span style="color: %s;">%s (%d%%)</span></div>`,
		game.Rating.ColorToken.Hex(), html.EscapeString(game.Rating.Label), game.Rating.Percent)

	if game.ShortDescription != "" {
		fmt.Fprintf(&b, `<p style="color: #666;">%s</p>`, html.EscapeString(game.ShortDescription))
	}

	if categories := categorizeGame(game, labels); len(categories) > 0 {
		b.WriteString(`<div style="margin-bottom: 8px;">`)
		for _, cat := range categories {
			fmt.Fprintf(&b, `<span style="display: inline-block; background: #e5e5e5; color: #666; padding: 2px 6px; border-radius: 12px; font-size: 12px; margin-right: 4px;">%s</span>`,
				html.EscapeString(cat))
		}
		b.WriteString(`</div>`)
	}

	if len(game.Developers) > 0 {
		fmt.Fprintf(&b, `<div><strong>Developer:</strong> %s</div>`, html.EscapeString(strings.Join(game.Developers, ", ")))
	}
	if game.ReleaseDateText != "" {
		fmt.Fprintf(&b, `<div><strong>Released:</strong> %s</div>`, html.EscapeString(game.ReleaseDateText))
	}

	fmt.Fprintf(&b, `<div style="margin-top: 16px;"><a href="%s" style="display: inline-block; padding: 6px 12px; background-color: #66c0f4; color: white; text-decoration: none; border-radius: 4px;">Store Page</a></div>`,
		StorePageURL(game.AppID))
	b.WriteString(`</div>`)

	return b.String()
}

// feedID is the stable tag URI of a feed
func feedID(info FeedInfo) string {
	return fmt.Sprintf("tag:store.steampowered.com,2024:%s", info.Name)
}

// generateFeed creates an Atom feed from the provided games
func generateFeed(info FeedInfo, games []GameSummary, labels PriceLabels, generatedAt time.Time) (string, error) {
	slog.Debug("Generating feed", "feed", info.Name, "itemCount", len(games))

	feed := &feeds.Feed{
		Title:       info.Title,
		Description: info.Description,
		Link:        &feeds.Link{Href: "https://store.steampowered.com/", Rel: "self", Type: "text/html"},
		Created:     generatedAt,
		Updated:     generatedAt,
	}

	for _, game := range games {
		title := game.Name
		if game.Rank != nil {
			title = fmt.Sprintf("%s %s %s", formatRank(game.Rank), game.Name, formatRankMovement(game.Rank, game.LastWeekRank))
		} else if game.Price.HasDiscount() {
			title = fmt.Sprintf("%s (-%d%%)", game.Name, game.Price.DiscountPercent)
		}

		author := "Steam"
		if len(game.Developers) > 0 {
			author = game.Developers[0]
		}

		feed.Items = append(feed.Items, &feeds.Item{
			Title:       title,
			Link:        &feeds.Link{Href: StorePageURL(game.AppID), Rel: "alternate", Type: "text/html"},
			Id:          fmt.Sprintf("%s#%s", StorePageURL(game.AppID), info.Name),
			Author:      &feeds.Author{Name: author},
			Description: renderGameDescription(game, labels),
			Created:     generatedAt,
			Updated:     generatedAt,
		})
	}

	// The Atom writer takes the feed id from the link, which every feed shares
	atomFeed := (&feeds.Atom{Feed: feed}).AtomFeed()
	atomFeed.Id = feedID(info)

	atom, err := feeds.ToXML(atomFeed)
	if err != nil {
		return "", fmt.Errorf("failed to generate feed: %w", err)
	}

	slog.Debug("Feed generated successfully", "feed", info.Name, "feedSize", len(atom))
	return atom, nil
}
