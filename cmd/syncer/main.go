package main

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"place_reviews/internal/adapters/mailer"
	minioad "place_reviews/internal/adapters/minio"
	"place_reviews/internal/adapters/observability"
	"place_reviews/internal/adapters/places"
	redisad "place_reviews/internal/adapters/redis"
	"place_reviews/internal/adapters/scrapingdog"
	"place_reviews/internal/adapters/serpapi"
	"place_reviews/internal/app"
	"place_reviews/internal/domain"
	"place_reviews/internal/shared"
	mysqlrepo "place_reviews/internal/storage/mysql"
)

// One-shot sync pass, meant for cron jobs and manual runs.
func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)

	settings, err := shared.LoadSettings(cfg.SettingsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("settings load failed")
	}
	log.Info().Str("source", settings.DataSource).Msg("syncer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SyncTimeout)
	defer cancel()

	res, err := sync.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("run_id", res.RunID).Msg("sync failed")
	}
	log.Info().
		Str("run_id", res.RunID).
		Bool("manual", res.Manual).
		Int("inserted", res.TotalInserted()).
		Int("updated", res.TotalUpdated()).
		Msg("sync completed")
}
