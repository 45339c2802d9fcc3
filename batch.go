package main

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// SummaryEnricher builds one summary per title
type SummaryEnricher interface {
	Enrich(ctx context.Context, appID int, includePlayers bool) (*GameSummary, error)
}

// BatchOptions controls a FetchMany run
type BatchOptions struct {
	Limit          int
	Concurrency    int
	IncludePlayers bool
	// BatchDelay paces admissions: one token per delay, burst of Concurrency.
	BatchDelay time.Duration
	OnProgress func(Progress)
}

// batchResult represents the settled outcome of one enrichment
type batchResult struct {
	appID   int
	summary *GameSummary
	err     error
}

var errTaskAborted = errors.New("enrichment did not complete")

// FetchMany enriches appIDs concurrently and returns the summaries that could
// be built. Soft misses and hard errors are both dropped; every settled task
// reports progress exactly once. Results are in completion order, not input order.
func FetchMany(ctx context.Context, enricher SummaryEnricher, appIDs []int, opts BatchOptions) ([]GameSummary, error) {
	limiter, err := NewLimiter(opts.Concurrency)
	if err != nil {
		return nil, err
	}

	ids := appIDs
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}
	total := len(ids)
	if total == 0 {
		return []GameSummary{}, nil
	}

	slog.Debug("Fetching game details", "total", total, "concurrency", opts.Concurrency, "players", opts.IncludePlayers)

	var pacer *rate.Limiter
	if opts.BatchDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(opts.BatchDelay), opts.Concurrency)
	}

	resultChan := make(chan batchResult, total)
	for _, appID := range ids {
		Schedule(limiter, func() (*GameSummary, error) {
			result := batchResult{appID: appID, err: errTaskAborted}
			defer func() { resultChan <- result }()

			if pacer != nil {
				if err := pacer.Wait(ctx); err != nil {
					result.err = err
					return nil, err
				}
			}

			result.summary, result.err = enricher.Enrich(ctx, appID, opts.IncludePlayers)
			return result.summary, result.err
		})
	}

	games := make([]GameSummary, 0, total)
	failedCount := 0
	missingCount := 0
	for completed := 1; completed <= total; completed++ {
		result := <-resultChan

		switch {
		case result.err != nil:
			slog.Error("Failed to enrich game", "appid", result.appID, "error", result.err)
			failedCount++
		case result.summary == nil:
			missingCount++
		default:
			slog.Debug("Enriched game", "appid", result.appID, "name", result.summary.Name,
				"progress", completed, "total", total)
			games = append(games, *result.summary)
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Current: completed, Total: total})
		}
	}

	slog.Info("Finished fetching game details", "fetched", len(games), "total", total,
		"missing", missingCount, "failed", failedCount)

	if err := ctx.Err(); err != nil {
		return games, err
	}
	return games, nil
}

// IndexByAppID re-keys summaries by app id
func IndexByAppID(games []GameSummary) map[int]GameSummary {
	index := make(map[int]GameSummary, len(games))
	for _, g := range games {
		index[g.AppID] = g
	}
	return index
}

// OrderLike returns games ordered as appIDs, skipping ids without a summary
func OrderLike(games []GameSummary, appIDs []int) []GameSummary {
	index := IndexByAppID(games)
	ordered := make([]GameSummary, 0, len(games))
	for _, id := range appIDs {
		if g, ok := index[id]; ok {
			ordered = append(ordered, g)
			delete(index, id)
		}
	}
	return ordered
}

// SortByRank orders ranked games first by rank, unranked ones after by name
func SortByRank(games []GameSummary) {
	sort.SliceStable(games, func(i, j int) bool {
		a, b := games[i].Rank, games[j].Rank
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return games[i].Name < games[j].Name
		}
	})
}
