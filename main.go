package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// App wires the clients, caches and stores built from one Config
type App struct {
	cfg     Config
	catalog *Catalog
	store   SnapshotStore
	labels  PriceLabels
}

// NewApp builds the whole stack from cfg
func NewApp(ctx context.Context, cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	stats := NewStatsClient(cfg, httpClient)
	storeClient := NewStoreClient(cfg, httpClient)
	labels := LabelsFromConfig(cfg)

	detailCache := NewTTLCache(cfg.ResultTTL)
	enricher := NewEnricher(storeClient, stats, labels, NewRandomSource(cfg.Seed), detailCache)

	catalog, err := NewCatalog(cfg, CatalogDeps{
		Ranking:     stats,
		Store:       storeClient,
		News:        stats,
		Apps:        stats,
		Enricher:    enricher,
		ExtraCaches: []*TTLCache{detailCache},
	})
	if err != nil {
		return nil, err
	}

	store, err := openSnapshotStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &App{cfg: cfg, catalog: catalog, store: store, labels: labels}, nil
}

// openSnapshotStore uses Redis when an address is configured, SQLite otherwise
func openSnapshotStore(ctx context.Context, cfg Config) (SnapshotStore, error) {
	if cfg.RedisAddr != "" {
		log.WithField("addr", cfg.RedisAddr).Debug("Using Redis snapshot store")
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.ResultTTL*6)
	}
	return OpenSQLiteStore(cfg.DBPath)
}

// Close releases the snapshot store
func (a *App) Close() error {
	return a.store.Close()
}

// cachedOrFetch returns a fresh enough snapshot for key, or runs fetch and saves its result
func (a *App) cachedOrFetch(ctx context.Context, query, key string, maxAge time.Duration, force bool, fetch func() ([]GameSummary, error)) ([]GameSummary, error) {
	if !force && maxAge > 0 {
		snapshot, err := a.store.Latest(ctx, key, maxAge)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("Failed to read snapshot")
		} else if snapshot != nil {
			log.WithFields(log.Fields{
				"key":   key,
				"age":   calculateSnapshotAge(snapshot.FetchedAt),
				"games": len(snapshot.Games),
			}).Info("Using stored snapshot")
			return snapshot.Games, nil
		}
	}

	games, err := fetch()
	if err != nil {
		return nil, err
	}

	if err := a.store.Save(ctx, NewSnapshot(query, key, games)); err != nil {
		log.WithError(err).WithField("key", key).Warn("Failed to save snapshot")
	}
	return games, nil
}

// progressLogger reports batch progress at debug level
func progressLogger(query string) func(Progress) {
	return func(p Progress) {
		log.WithFields(log.Fields{
			"query":   query,
			"current": p.Current,
			"total":   p.Total,
		}).Debug("Progress")
	}
}

// writeFeed renders games as an Atom feed into the output directory
func (a *App) writeFeed(info FeedInfo, games []GameSummary) error {
	if err := os.MkdirAll(a.cfg.OutDir, 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	atom, err := generateFeed(info, games, a.labels, time.Now())
	if err != nil {
		return err
	}

	filename := filepath.Join(a.cfg.OutDir, info.Name+".xml")
	if err := os.WriteFile(filename, []byte(atom), 0644); err != nil {
		return fmt.Errorf("error writing feed to file: %w", err)
	}
	log.WithFields(log.Fields{
		"count":    len(games),
		"filename": filename,
	}).Info("Feed saved")
	return nil
}

// runOptions are the per-run switches taken from flags
type runOptions struct {
	limit       int
	offersLimit int
	search      string
	newsAppID   int
	print       bool
	maxAge      time.Duration
	force       bool
}

// run executes the one-shot mode: feeds, search or news
func (a *App) run(ctx context.Context, opts runOptions) error {
	queryOpts := QueryOptions{ForceRefresh: opts.force}

	switch {
	case opts.search != "":
		searchOpts := DefaultSearchOptions()
		searchOpts.QueryOptions = queryOpts
		searchOpts.QueryOptions.OnProgress = progressLogger("search")
		searchOpts.Limit = opts.limit
		searchOpts.IncludeDetails = true
		games, err := a.catalog.Search(ctx, opts.search, searchOpts)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		printGames(os.Stdout, fmt.Sprintf("Search: %s", opts.search), games)
		return nil

	case opts.newsAppID > 0:
		items, err := a.catalog.News(ctx, opts.newsAppID, 10, queryOpts)
		if err != nil {
			return fmt.Errorf("news failed: %w", err)
		}
		printNews(os.Stdout, opts.newsAppID, items)
		return nil
	}

	mostPlayedKey := BuildCacheKey("most-played", opts.limit)
	mostPlayed, err := a.cachedOrFetch(ctx, "most-played", mostPlayedKey, opts.maxAge, opts.force, func() ([]GameSummary, error) {
		q := queryOpts
		q.OnProgress = progressLogger("most-played")
		return a.catalog.MostPlayed(ctx, opts.limit, q)
	})
	if err != nil {
		return fmt.Errorf("most played failed: %w", err)
	}
	if err := a.writeFeed(mostPlayedFeed, mostPlayed); err != nil {
		return err
	}

	var offers []GameSummary
	if opts.offersLimit > 0 {
		offersKey := BuildCacheKey("offers", opts.offersLimit)
		offers, err = a.cachedOrFetch(ctx, "offers", offersKey, opts.maxAge, opts.force, func() ([]GameSummary, error) {
			q := queryOpts
			q.OnProgress = progressLogger("offers")
			result, err := a.catalog.Offers(ctx, opts.offersLimit, q)
			if result.Message != "" {
				log.WithField("message", result.Message).Info("Offers query finished")
			}
			return result.Games, err
		})
		if err != nil {
			return fmt.Errorf("offers failed: %w", err)
		}
		if err := a.writeFeed(offersFeed, offers); err != nil {
			return err
		}
	}

	if deleted, err := a.store.Cleanup(ctx, 30*24*time.Hour); err != nil {
		log.WithError(err).Warn("Failed to clean up old snapshots")
	} else if deleted > 0 {
		log.WithField("deleted", deleted).Info("Cleaned up old snapshots")
	}

	if opts.print {
		printGames(os.Stdout, mostPlayedFeed.Title, mostPlayed)
		if opts.offersLimit > 0 {
			fmt.Fprintln(os.Stdout)
			printGames(os.Stdout, offersFeed.Title, offers)
		}
	}
	return nil
}

// serve runs the HTTP service until ctx is done
func (a *App) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           NewServer(a.catalog, a.cfg).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": a.cfg.Listen, "env": a.cfg.Env}).Info("HTTP service listening")
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("Shutting down HTTP service")
		return srv.Shutdown(shutdownCtx)
	}
}

// setupLogging configures both loggers: logrus for the command itself,
// slog for the clients, caches and stores it drives
func setupLogging(debug, verbose bool) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	log.SetLevel(log.WarnLevel) // Only show warnings and above by default

	level := slog.LevelWarn
	switch {
	case debug:
		log.SetLevel(log.DebugLevel)
		level = slog.LevelDebug
	case verbose:
		log.SetLevel(log.InfoLevel)
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	configPath := flag.String("config", "", "path to a JSON configuration file")
	outDir := flag.String("outdir", "", "directory where the feed files will be saved")
	limit := flag.Int("limit", 20, "number of most played games to include")
	offersLimit := flag.Int("offers", 50, "number of discounted games to include, 0 to skip")
	search := flag.String("search", "", "search the store and print the results")
	news := flag.String("news", "", "print recent news for an app id")
	serveMode := flag.Bool("serve", false, "run the HTTP service instead of writing feeds")
	printResults := flag.Bool("print", false, "print the results to the terminal")
	debug := flag.Bool("debug", false, "enable debug logging")
	verbose := flag.Bool("verbose", false, "enable info logging")
	env := flag.String("env", "", "upstream environment: prod or dev")
	concurrency := flag.Int("concurrency", 0, "maximum concurrent detail lookups")
	maxAge := flag.Duration("max-age", 30*time.Minute, "reuse stored snapshots younger than this")
	dbPath := flag.String("db", "", "path to the SQLite snapshot database")
	redisAddr := flag.String("redis", "", "Redis address for snapshots instead of SQLite")
	seed := flag.Uint64("seed", 0, "seed for rating estimates, 0 for random")
	force := flag.Bool("force", false, "ignore caches and snapshots")
	flag.Parse()

	setupLogging(*debug, *verbose)

	cfg := LoadConfig(*configPath)
	if *env != "" {
		cfg.applyEnvironment(Environment(*env))
	}
	overlayString(&cfg.OutDir, *outDir)
	overlayString(&cfg.DBPath, *dbPath)
	overlayString(&cfg.RedisAddr, *redisAddr)
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	newsAppID := 0
	if *news != "" {
		id, err := strconv.Atoi(*news)
		if err != nil || id <= 0 {
			log.WithField("value", *news).Error("Invalid app id for -news")
			os.Exit(2)
		}
		newsAppID = id
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize")
	}
	defer app.Close()

	if *serveMode {
		err = app.serve(ctx)
	} else {
		err = app.run(ctx, runOptions{
			limit:       *limit,
			offersLimit: *offersLimit,
			search:      *search,
			newsAppID:   newsAppID,
			print:       *printResults,
			maxAge:      *maxAge,
			force:       *force,
		})
	}
	if err != nil {
		log.WithError(err).Error("Run failed")
		app.Close()
		os.Exit(1)
	}
}
