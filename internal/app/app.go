package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/watchlist/internal/auth"
	"github.com/MrSnakeDoc/watchlist/internal/bookmarks"
	"github.com/MrSnakeDoc/watchlist/internal/catalog"
	"github.com/MrSnakeDoc/watchlist/internal/config"
	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver"
	"github.com/MrSnakeDoc/watchlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/watchlist/internal/identity"
	"github.com/MrSnakeDoc/watchlist/internal/localcache"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
	"github.com/MrSnakeDoc/watchlist/internal/redis"
	"github.com/MrSnakeDoc/watchlist/internal/scheduler"
	"github.com/MrSnakeDoc/watchlist/internal/search"
	redisstore "github.com/MrSnakeDoc/watchlist/internal/store/redis"
	"github.com/MrSnakeDoc/watchlist/internal/utils"
	"github.com/MrSnakeDoc/watchlist/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	gate        *identity.Gate
	pipeline    *search.Pipeline
	flusher     *scheduler.BookmarkFlusher
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	store := redisstore.NewStore(redisClient)

	local, err := localcache.Open(cfg.LocalCacheFile)
	if err != nil {
		// A corrupt local record only costs the stored session and mirrors.
		loggerClient.Warn("failed to read local cache, starting empty",
			logger.String("file", cfg.LocalCacheFile), logger.Error(err))
	}

	catalogClient := catalog.NewClient(catalog.Options{
		BaseURL:         cfg.OMDbBaseURL,
		APIKey:          cfg.OMDbAPIKey,
		Timeout:         cfg.CatalogTimeout,
		DetailCacheSize: cfg.DetailCacheSize,
		DetailCacheTTL:  cfg.DetailCacheTTL,
		PageCache:       store,
		PageCacheTTL:    cfg.SearchCacheTTL,
	}, loggerClient)

	pipeline := search.NewPipeline(catalogClient, loggerClient)

	bookmarkStore := bookmarks.NewStore(store, local, bookmarks.Options{
		Retries:    cfg.PersistRetries,
		RetryDelay: 200 * time.Millisecond,
	}, loggerClient)

	authService := auth.NewService(store, auth.Options{
		Secret:     cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
	}, loggerClient)

	gate := identity.NewGate(authService, local, bookmarkStore, loggerClient)
	gate.Subscribe(identity.ListenerFunc(func(_ context.Context, id domain.Identity) error {
		loggerClient.Info("active identity changed",
			logger.String("identity", id.String()),
			logger.Int("bookmarks", len(bookmarkStore.ActiveSet())))
		return nil
	}))

	flushTrigger := make(chan struct{}, 1)
	flusher := scheduler.NewBookmarkFlusher(bookmarkStore, loggerClient, cfg.FlushInterval, flushTrigger)

	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		AllowedHosts:      cfg.AllowedHosts,
		AllowedNetworks:   utils.NewIPMatcher(cfg.AllowedCIDRS),
		AllowedOrigins:    cfg.AllowedOrigins,
		TrustProxy:        cfg.TrustProxy,
		RedisClient:       redisClient,
		Records:           store,
		Catalog:           catalogClient,
		Search:            pipeline,
		Bookmarks:         bookmarkStore,
		Identity:          gate,
		PosterPlaceholder: cfg.PosterFallback,
		FlushTrigger:      flushTrigger,
		PageBurst:         cfg.PageBurst,
		PageRefillPerMin:  cfg.PageRefillPerMin,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		gate:        gate,
		pipeline:    pipeline,
		flusher:     flusher,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Watchlist v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Watchlist %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resolve identity before accepting bookmark actions
	id, err := a.gate.Resolve(ctx)
	if err != nil {
		a.logger.Warn("bookmarks loaded from local mirror", logger.Error(err))
	}
	a.logger.Info("identity ready", logger.String("identity", id.String()))

	if a.cfg.DefaultQuery != "" {
		if _, err := a.pipeline.Search(ctx, a.cfg.DefaultQuery); err != nil {
			a.logger.Warn("initial search failed",
				logger.String("query", a.cfg.DefaultQuery), logger.Error(err))
		}
	}

	if err := a.flusher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bookmark flusher: %w", err)
	}
	a.logger.Info("bookmark flusher started",
		logger.Duration("interval", a.cfg.FlushInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Last chance for writes that failed while running
	a.flusher.Stop(shutdownCtx)

	if a.redisClient != nil {
		utils.MustClose(a.redisClient, "redis", a.logger)
	}

	a.logger.Info("✅ Watchlist stopped cleanly")
	return nil
}
