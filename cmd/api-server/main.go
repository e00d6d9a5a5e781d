package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"newslens/internal/articles"
	"newslens/internal/auth"
	"newslens/internal/events"
	"newslens/internal/headlines"
	"newslens/internal/ingest"
	"newslens/internal/notify"
	"newslens/internal/scheduler"
	"newslens/internal/users"
	"newslens/pkg/database"
	"newslens/pkg/utils"
)

func main() {
	logger := utils.NewLogger(utils.DefaultConfig().Log, os.Stderr)
	cfg, err := utils.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	logger = utils.NewLogger(cfg.Log, os.Stderr)

	dbCfg := database.DefaultConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		logger.Fatal().Err(err).Str("path", dbCfg.Path).Msg("open db")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("db migrate failed")
	}

	// events: websocket + tcp stream, optionally mirrored to nats
	hub := events.NewHub()
	publishers := events.Fanout{hub}

	var natsPub *events.NATSPublisher
	if cfg.NATSURL != "" {
		natsPub, err = events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, events stay local")
		} else {
			publishers = append(publishers, natsPub)
			logger.Info().Str("url", cfg.NATSURL).Msg("publishing events to nats")
		}
	}

	var tcpSrv *events.Server
	if cfg.EventsAddr != "" {
		tcpSrv = events.NewServer(cfg.EventsAddr, hub, logger)
	}

	var udpSrv *notify.Server
	if cfg.NotifyAddr != "" {
		udpSrv = notify.NewServer(cfg.NotifyAddr, nil, logger)
		publishers = append(publishers, udpSrv)
	}

	// repositories
	articleRepo := articles.NewRepo(db)
	userRepo := users.NewRepo(db, articleRepo)
	authRepo := auth.NewRepo(db)

	var seen *articles.SeenCache
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		seen, err = articles.NewSeenCacheFromURL(ctx, cfg.RedisURL, 0)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, seen cache disabled")
			seen = nil
		}
	}

	// ingestion
	source := headlines.FromConfig(cfg, logger)
	if source == nil {
		logger.Warn().Msg("NEWS_API_KEY not set and no rss feeds configured; fetches return sample articles")
	}
	ingestCfg := ingest.Config{
		Source:    source,
		Publisher: publishers,
		Country:   cfg.NewsAPI.Country,
		Workers:   cfg.Fetch.Workers,
	}
	if seen != nil {
		ingestCfg.Seen = seen
	}
	orchestrator := ingest.New(ingestCfg, articleRepo, logger)

	sched := scheduler.New(scheduler.Config{
		Categories:   cfg.Fetch.CategoryValues(),
		TargetTotal:  cfg.Fetch.TargetTotal,
		Period:       cfg.Fetch.Period,
		CycleTimeout: cfg.Fetch.CycleTimeout,
	}, orchestrator, articleRepo, logger)

	// auth
	tokenSvc := auth.NewTokenService(utils.LoadAuthConfig())
	requireAuth := auth.AuthMiddleware(tokenSvc, authRepo)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := (&app{
		db:          db,
		dbPath:      dbCfg.Path,
		hub:         hub,
		publishers:  publishers,
		articles:    articleRepo,
		users:       userRepo,
		authRepo:    authRepo,
		tokens:      tokenSvc,
		refresher:   orchestrator,
		sched:       sched,
		requireAuth: requireAuth,
		logger:      logger,
	}).routes()

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	if tcpSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tcpSrv.Run(); err != nil {
				errCh <- err
			}
		}()
	}

	if udpSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := udpSrv.Run(); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Str("addr", cfg.Addr).Msg("HTTP API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.EnableScheduler {
		if err := sched.Start(); err != nil {
			logger.Error().Err(err).Msg("start scheduler")
		}
	} else {
		logger.Info().Msg("scheduler disabled via ENABLE_SCHEDULER=false")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	logger.Info().Msg("shutting down servers")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if tcpSrv != nil {
		if err := tcpSrv.Close(); err != nil {
			logger.Error().Err(err).Msg("tcp shutdown")
		}
	}
	if udpSrv != nil {
		if err := udpSrv.Close(); err != nil {
			logger.Error().Err(err).Msg("udp shutdown")
		}
	}
	if natsPub != nil {
		natsPub.Close()
	}
	if seen != nil {
		_ = seen.Close()
	}

	wg.Wait()
	logger.Info().Msg("servers stopped")
}

// app holds what the HTTP routes need.
type app struct {
	db          *sql.DB
	dbPath      string
	hub         *events.Hub
	publishers  events.Publisher
	articles    *articles.Repo
	users       *users.Repo
	authRepo    *auth.Repo
	tokens      auth.TokenService
	refresher   articles.Refresher
	sched       *scheduler.Scheduler
	requireAuth gin.HandlerFunc
	logger      zerolog.Logger
}

func (a *app) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(a.logger))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/ws", events.WSHandler(a.hub, a.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": a.dbPath})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := a.hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := a.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
			"scheduler":   a.sched.Status(),
		})
	})

	api := router.Group("/api")

	auth.NewHandler(a.authRepo, a.tokens, a.users, a.logger).RegisterRoutes(api.Group("/auth"))
	articles.NewHandler(a.articles, a.users, a.refresher, a.requireAuth, a.logger).RegisterRoutes(api.Group("/news"))
	scheduler.NewHandler(a.sched, a.requireAuth, a.logger).RegisterRoutes(api.Group("/scheduler"))

	protected := api.Group("/users")
	protected.Use(a.requireAuth)
	users.NewHandler(a.users, a.publishers, a.logger).RegisterRoutes(protected)

	return router
}

// requestLogger logs one line per request through zerolog.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	logger = logger.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
