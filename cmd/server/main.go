// Command server runs the Slack completion bot: the Events API webhook, the
// deferred job endpoints and the in-process job poller.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-slack-bot/internal/completion"
	"github.com/tbourn/go-slack-bot/internal/config"
	"github.com/tbourn/go-slack-bot/internal/events"
	httpapi "github.com/tbourn/go-slack-bot/internal/http"
	"github.com/tbourn/go-slack-bot/internal/jobs"
	"github.com/tbourn/go-slack-bot/internal/observability"
	"github.com/tbourn/go-slack-bot/internal/repo"
	"github.com/tbourn/go-slack-bot/internal/services"
	"github.com/tbourn/go-slack-bot/internal/slackapi"
	"github.com/tbourn/go-slack-bot/internal/sysutil"
	"github.com/tbourn/go-slack-bot/internal/thread"
	"github.com/tbourn/go-slack-bot/internal/vault"
)

const serviceName = "go-slack-bot"

// @title                      Slack completion bot
// @version                    1.0
// @description                Slack Events API webhook plus the operator endpoints of the deferred job queue.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                "Bearer " followed by JOBS_TRIGGER_TOKEN.
func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	version := sysutil.Version()
	sysutil.SetupLogger(os.Stderr, cfg.LogPretty, serviceName, version)
	sysutil.SetLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, observability.SlackAppID(cfg.Slack.AppID))
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if cfg.OTEL.Enabled {
		if err := observability.InstrumentDB(db); err != nil {
			log.Fatal().Err(err).Msg("instrument database")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	slackClient := slackapi.New(cfg.Slack.BotToken, cfg.Slack.APIURL, &http.Client{Timeout: 10 * time.Second})
	store := vault.NewStore(db, cfg.Slack.ClientID, cfg.Slack.ClientSecret)
	models := completion.NewOpenAIClient(
		cfg.Completion.APIURL,
		cfg.Completion.Model,
		cfg.Completion.ChatModel,
		cfg.Completion.MaxTokens,
		cfg.Completion.Timeout,
	)
	handoff := jobs.NewHandoff(db, cfg.Jobs.MaxAttempts, cfg.Jobs.Lease, cfg.Jobs.BatchSize)

	bot := &services.BotService{
		DB:    db,
		Slack: slackClient,
		Vault: store,
		Threads: &thread.Reconstructor{
			Slack:       slackClient,
			Credentials: store,
			AppID:       cfg.Slack.AppID,
		},
		Jobs: handoff,
		Completion: &completion.Gateway{
			Client:   models,
			Persona:  cfg.Completion.Persona,
			Fallback: cfg.Completion.Fallback,
		},
		Models:        models,
		StartReaction: cfg.Slack.StartReaction,
		Apology:       cfg.Completion.Apology,
		Log:           log.With().Str("component", "bot").Logger(),
	}

	registry := jobs.NewRegistry()
	bot.RegisterConsumers(registry)

	dispatcher := events.NewDispatcher(
		cfg.Slack.VerificationToken,
		&events.StoreDedup{DB: db, TTL: cfg.DedupTTL},
		bot.Handlers(),
	)

	poller := &jobs.Poller{
		Handoff:  handoff,
		Registry: registry,
		Interval: cfg.Jobs.PollInterval,
		Log:      log.With().Str("component", "poller").Logger(),
	}
	poller.Start(ctx)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:         db,
		Dispatcher: dispatcher,
		Handoff:    handoff,
		Registry:   registry,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("base_path", cfg.APIBasePath).
			Dur("poll_interval", cfg.Jobs.PollInterval).
			Strs("jobs", registry.Names()).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	poller.Wait()
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}
