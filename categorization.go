package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// categorizeGame returns feed categories for a game: genres, platforms and pricing tags
func categorizeGame(game GameSummary, labels PriceLabels) []string {
	var categories []string

	for _, genre := range game.Genres {
		if genre.Name != "" {
			categories = append(categories, genre.Name)
		}
	}

	switch {
	case game.Price.DisplayText == labels.Free:
		categories = append(categories, "Free")
	case game.Price.HasDiscount():
		categories = append(categories, categorizeByDiscount(game.Price.DiscountPercent))
	}

	if game.Platforms.Linux {
		categories = append(categories, "Linux")
	}
	if game.Platforms.Mac {
		categories = append(categories, "macOS")
	}

	if game.CurrentPlayers != nil {
		categories = append(categories, categorizeByPlayers(*game.CurrentPlayers))
	}

	return categories
}

// categorizeByDiscount returns a label for the size of a discount
func categorizeByDiscount(percent int) string {
	switch {
	case percent >= 75:
		return "Deep Discount 75%+"
	case percent >= 50:
		return "Half Price 50%+"
	case percent >= 25:
		return "On Sale 25%+"
	default:
		return "On Sale"
	}
}

// categorizeByPlayers returns a label for the live player count
func categorizeByPlayers(players int) string {
	switch {
	case players >= 500000:
		return "Massive 500k+"
	case players >= 100000:
		return "Huge 100k+"
	case players >= 10000:
		return "Popular 10k+"
	case players > 0:
		return "Active"
	default:
		return "Quiet"
	}
}

// formatPlayers renders a player count with thousands separators
func formatPlayers(players *int) string {
	if players == nil {
		return "unknown"
	}
	return humanize.Comma(int64(*players))
}

// formatRank renders a rank as #N, or a dash for unranked games
func formatRank(rank *int) string {
	if rank == nil {
		return "-"
	}
	return fmt.Sprintf("#%d", *rank)
}

// formatRankMovement compares a rank with last week's: "(+2)" climbed, "(-1)" fell, "(new)" unranked last week
func formatRankMovement(rank, lastWeek *int) string {
	if rank == nil {
		return ""
	}
	if lastWeek == nil {
		return "(new)"
	}
	switch diff := *lastWeek - *rank; {
	case diff > 0:
		return fmt.Sprintf("(+%d)", diff)
	case diff < 0:
		return fmt.Sprintf("(%d)", diff)
	default:
		return "(=)"
	}
}

// calculateSnapshotAge returns a human-readable time difference from the given time to now
func calculateSnapshotAge(fetchedAt time.Time) string {
	if time.Since(fetchedAt) < time.Minute {
		return "just now"
	}
	return humanize.Time(fetchedAt)
}
