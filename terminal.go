package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var tokenColors = map[ColorToken]*color.Color{
	ColorAccent:  color.New(color.FgCyan),
	ColorMixed:   color.New(color.FgYellow),
	ColorWarning: color.New(color.FgRed),
	ColorNeutral: color.New(color.FgHiBlack),
}

var (
	discountColor = color.New(color.FgGreen, color.Bold)
	headerColor   = color.New(color.Bold)
)

// colorize paints text in the color of a rating token
func colorize(token ColorToken, text string) string {
	c, ok := tokenColors[token]
	if !ok {
		return text
	}
	return c.Sprint(text)
}

// truncateString truncates a string to a maximum length
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// printGames writes a one-line-per-game listing
func printGames(w io.Writer, title string, games []GameSummary) {
	fmt.Fprintln(w, headerColor.Sprint(title))
	fmt.Fprintln(w, strings.Repeat("-", len(title)))

	if len(games) == 0 {
		fmt.Fprintln(w, "  (no games)")
		return
	}

	for _, game := range games {
		price := game.Price.DisplayText
		if game.Price.HasDiscount() {
			price = fmt.Sprintf("%s %s (was %s)",
				discountColor.Sprintf("-%d%%", game.Price.DiscountPercent), game.Price.DisplayText, *game.Price.OriginalDisplayText)
		}

		rating := colorize(game.Rating.ColorToken, fmt.Sprintf("%s %d%%", game.Rating.Label, game.Rating.Percent))
		fmt.Fprintf(w, "%5s  %-40s  %-12s  %s  %s\n",
			formatRank(game.Rank),
			truncateString(game.Name, 40),
			formatPlayers(game.CurrentPlayers),
			price,
			rating)
	}
}

// printNews writes news items as a short list
func printNews(w io.Writer, appID int, items []NewsItem) {
	fmt.Fprintln(w, headerColor.Sprintf("News for app %d", appID))
	for _, item := range items {
		fmt.Fprintf(w, "  %s  %s\n    %s\n", item.Date.Format("2006-01-02"), item.Title, truncateString(item.Contents, 160))
	}
}
