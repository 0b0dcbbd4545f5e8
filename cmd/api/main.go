package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "place_reviews/internal/adapters/http_server"
	"place_reviews/internal/adapters/mailer"
	minioad "place_reviews/internal/adapters/minio"
	"place_reviews/internal/adapters/observability"
	"place_reviews/internal/adapters/places"
	redisad "place_reviews/internal/adapters/redis"
	"place_reviews/internal/adapters/scrapingdog"
	"place_reviews/internal/adapters/serpapi"
	"place_reviews/internal/app"
	"place_reviews/internal/domain"
	"place_reviews/internal/scheduler"
	"place_reviews/internal/shared"
	mysqlrepo "place_reviews/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	settings, err := shared.LoadSettings(cfg.SettingsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("settings load failed")
	}

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	reviews := mysqlrepo.NewReviews(db)
	locations := mysqlrepo.NewLocations(db)
	state := mysqlrepo.NewState(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	var images domain.ImageStore
	if cfg.MinioAccess != "" {
		images, err = minioad.New(cfg.MinioAddr, cfg.MinioAccess, cfg.MinioSecret, cfg.MinioBucket, cfg.MinioSSL)
		if err != nil {
			log.Fatal().Err(err).Msg("minio init failed")
		}
	}
	sideloader := app.NewSideloader(images, reviews, 4)

	providers := domain.NewProviders(
		places.New("", settings.GoogleAPIKey, settings.Locale),
		serpapi.New("", settings.SerpAPIKey, settings.Locale, settings.MaxPages),
		scrapingdog.New("", settings.ScrapingDogAPIKey, settings.Locale, settings.MaxPages),
	)
	notifier := mailer.New(cfg.SMTPAddr, cfg.SMTPFrom, settings.NotificationEmail)

	sync := app.NewSyncService(providers, reviews, locations, state, notifier, cache, sideloader, app.SyncConfig{
		Source:          settings.DataSource,
		FallbackPlaceID: settings.PlaceID,
		FallbackFetchID: settings.SerpAPIDataID,
		EmailAlerts:     settings.EmailAlerts,
	})
	q := app.NewQueryService(reviews, locations, state, cache, cfg.CacheTTL)

	// periodic sync
	sched := scheduler.New(func(ctx context.Context) error {
		_, err := sync.Run(ctx)
		return err
	}, cfg.SyncTimeout)
	sched.Apply(settings.AutoSync, settings.SyncFrequency)
	defer sched.Stop()

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Sync: sync, Q: q, Defaults: server.ListDefaults{
		Limit:     settings.ListLimit,
		Sort:      settings.SortOrder,
		MinRating: float64(settings.MinRating),
	}})

	log.Info().Str("addr", cfg.HTTPAddr).Str("source", settings.DataSource).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
