package main

import "time"

// RankEntry is one row of the most played ranking snapshot
type RankEntry struct {
	AppID          int
	Rank           int
	LastWeekRank   int
	PeakConcurrent int
}

// Price is the canonical price shape every upstream payload is normalized into
type Price struct {
	DisplayText         string  `json:"display_text"`
	OriginalDisplayText *string `json:"original_display_text"`
	DiscountPercent     int     `json:"discount_percent"`
}

// HasDiscount reports whether the price carries an active discount
func (p Price) HasDiscount() bool {
	return p.DiscountPercent > 0 && p.OriginalDisplayText != nil
}

// Rating is a derived sentiment estimate, not a measured Steam value
type Rating struct {
	Label      string     `json:"label"`
	ColorToken ColorToken `json:"color_token"`
	Percent    int        `json:"percent"`
}

// NamedTag is a genre or category as returned by the store
type NamedTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Platforms lists supported operating systems
type Platforms struct {
	Windows bool `json:"windows"`
	Mac     bool `json:"mac"`
	Linux   bool `json:"linux"`
}

// GameSummary is the view model handed to feeds, the HTTP API and the terminal listing.
// A summary is never patched in place; a fresh one replaces a stale one.
type GameSummary struct {
	AppID                int        `json:"appid"`
	Name                 string     `json:"name"`
	ShortDescription     string     `json:"short_description"`
	HeaderImageURL       string     `json:"header_image"`
	CapsuleImageURL      string     `json:"capsule_image"`
	BackgroundImageURL   string     `json:"background_image"`
	LibraryImageURL      string     `json:"library_image"`
	Price                Price      `json:"price"`
	ReleaseDateText      string     `json:"release_date"`
	Developers           []string   `json:"developers"`
	Publishers           []string   `json:"publishers"`
	Genres               []NamedTag `json:"genres"`
	Categories           []NamedTag `json:"categories"`
	Platforms            Platforms  `json:"platforms"`
	MetacriticScore      *int       `json:"metacritic"`
	TotalRecommendations int        `json:"recommendations"`
	CurrentPlayers       *int       `json:"current_players"`
	Rank                 *int       `json:"rank"`
	LastWeekRank         *int       `json:"last_week_rank"`
	PeakConcurrent       int        `json:"peak_in_game"`
	Rating               Rating     `json:"steam_rating"`
}

// withRank returns a copy of the summary carrying ranking data
func (g GameSummary) withRank(entry RankEntry) GameSummary {
	rank := entry.Rank
	g.Rank = &rank
	g.PeakConcurrent = entry.PeakConcurrent
	g.LastWeekRank = nil
	if entry.LastWeekRank > 0 {
		last := entry.LastWeekRank
		g.LastWeekRank = &last
	}
	return g
}

// NewsItem is a single announcement from GetNewsForApp
type NewsItem struct {
	GID       string    `json:"gid"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Author    string    `json:"author"`
	FeedLabel string    `json:"feedlabel"`
	Contents  string    `json:"contents"`
	Date      time.Time `json:"date"`
}

// AppListEntry is one entry of the full Steam app list
type AppListEntry struct {
	AppID int    `json:"appid"`
	Name  string `json:"name"`
}

// Progress is reported once per settled task of a batch
type Progress struct {
	Current int
	Total   int
}

// Snapshot is a persisted result set used to skip redundant queries across runs
type Snapshot struct {
	ID        string
	Query     string
	Key       string
	FetchedAt time.Time
	Games     []GameSummary
}

// mostPlayedResponse is the GetMostPlayedGames envelope
type mostPlayedResponse struct {
	Response struct {
		RollupDate int64 `json:"rollup_date"`
		Ranks      []struct {
			Rank         int `json:"rank"`
			AppID        int `json:"appid"`
			LastWeekRank int `json:"last_week_rank"`
			PeakInGame   int `json:"peak_in_game"`
		} `json:"ranks"`
	} `json:"response"`
}

// currentPlayersResponse is the GetNumberOfCurrentPlayers envelope
type currentPlayersResponse struct {
	Response struct {
		PlayerCount int `json:"player_count"`
		Result      int `json:"result"`
	} `json:"response"`
}

// appNewsResponse is the GetNewsForApp envelope
type appNewsResponse struct {
	AppNews struct {
		AppID     int `json:"appid"`
		NewsItems []struct {
			GID       string `json:"gid"`
			Title     string `json:"title"`
			URL       string `json:"url"`
			Author    string `json:"author"`
			Contents  string `json:"contents"`
			FeedLabel string `json:"feedlabel"`
			Date      int64  `json:"date"`
		} `json:"newsitems"`
	} `json:"appnews"`
}

// appListResponse is the GetAppList envelope
type appListResponse struct {
	AppList struct {
		Apps []AppListEntry `json:"apps"`
	} `json:"applist"`
}

// PriceOverview is the appdetails price block, amounts in cents
type PriceOverview struct {
	Currency         string `json:"currency"`
	Initial          int    `json:"initial"`
	Final            int    `json:"final"`
	DiscountPercent  int    `json:"discount_percent"`
	InitialFormatted string `json:"initial_formatted"`
	FinalFormatted   string `json:"final_formatted"`
}

// AppDetails is the data block of a successful appdetails lookup
type AppDetails struct {
	Type             string         `json:"type"`
	Name             string         `json:"name"`
	SteamAppID       int            `json:"steam_appid"`
	IsFree           bool           `json:"is_free"`
	ShortDescription string         `json:"short_description"`
	HeaderImage      string         `json:"header_image"`
	CapsuleImage     string         `json:"capsule_image"`
	Background       string         `json:"background"`
	BackgroundRaw    string         `json:"background_raw"`
	Developers       []string       `json:"developers"`
	Publishers       []string       `json:"publishers"`
	PriceOverview    *PriceOverview `json:"price_overview"`
	Platforms        *Platforms     `json:"platforms"`
	Metacritic       *struct {
		Score int    `json:"score"`
		URL   string `json:"url"`
	} `json:"metacritic"`
	Categories []struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"categories"`
	Genres []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	} `json:"genres"`
	Recommendations *struct {
		Total int `json:"total"`
	} `json:"recommendations"`
	ReleaseDate *struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
}

// appDetailsEnvelope is the per-appid wrapper returned by appdetails
type appDetailsEnvelope struct {
	Success bool        `json:"success"`
	Data    *AppDetails `json:"data"`
}

// SearchPrice is the price block of a storesearch item, amounts in cents.
// Some responses carry preformatted strings and a discount, most do not.
type SearchPrice struct {
	Currency         string `json:"currency"`
	Initial          *int   `json:"initial"`
	Final            *int   `json:"final"`
	DiscountPercent  int    `json:"discount_percent"`
	InitialFormatted string `json:"initial_formatted"`
	FinalFormatted   string `json:"final_formatted"`
}

// SearchItem is one storesearch result
type SearchItem struct {
	Type             string       `json:"type"`
	Name             string       `json:"name"`
	ID               int          `json:"id"`
	TinyImage        string       `json:"tiny_image"`
	Metascore        string       `json:"metascore"`
	IsFree           bool         `json:"is_free"`
	ShortDescription string       `json:"short_description"`
	Price            *SearchPrice `json:"-"`
	Platforms        Platforms    `json:"platforms"`
}

// searchResponse is the storesearch envelope
type searchResponse struct {
	Total int          `json:"total"`
	Items []SearchItem `json:"items"`
}

// FeaturedItem is an entry of the featured and featuredcategories listings
type FeaturedItem struct {
	ID                int    `json:"id"`
	Type              int    `json:"type"`
	Name              string `json:"name"`
	Discounted        bool   `json:"discounted"`
	DiscountPercent   int    `json:"discount_percent"`
	OriginalPrice     *int   `json:"original_price"`
	FinalPrice        int    `json:"final_price"`
	Currency          string `json:"currency"`
	LargeCapsuleImage string `json:"large_capsule_image"`
	SmallCapsuleImage string `json:"small_capsule_image"`
	HeaderImage       string `json:"header_image"`
	WindowsAvailable  bool   `json:"windows_available"`
	MacAvailable      bool   `json:"mac_available"`
	LinuxAvailable    bool   `json:"linux_available"`
}

// FeaturedCategory is one named list inside featuredcategories
type FeaturedCategory struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Items []FeaturedItem `json:"items"`
}

// FeaturedCategories is the featuredcategories payload
type FeaturedCategories struct {
	Specials    *FeaturedCategory `json:"specials"`
	TopSellers  *FeaturedCategory `json:"top_sellers"`
	NewReleases *FeaturedCategory `json:"new_releases"`
	ComingSoon  *FeaturedCategory `json:"coming_soon"`
}

// Featured is the featured payload
type Featured struct {
	LargeCapsules []FeaturedItem `json:"large_capsules"`
	FeaturedWin   []FeaturedItem `json:"featured_win"`
	FeaturedMac   []FeaturedItem `json:"featured_mac"`
	FeaturedLinux []FeaturedItem `json:"featured_linux"`
}
