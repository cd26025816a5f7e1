package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	telegoBot "susninja-bot/bot"
	"susninja-bot/internal/audience"
	"susninja-bot/internal/auth"
	"susninja-bot/internal/broadcast"
	"susninja-bot/internal/cache"
	"susninja-bot/internal/config"
	"susninja-bot/internal/database"
	"susninja-bot/internal/edits"
	"susninja-bot/internal/handlers"
	"susninja-bot/internal/health"
	"susninja-bot/internal/locales"
	"susninja-bot/internal/logging"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration error")
	}
	logging.Setup(cfg.LogLevel, cfg.Debug)

	// Initialize localization bundle
	locales.Init(cfg.DefaultLanguage)

	// Initialize Sentry (an empty DSN disables sending)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("sentry.Init failed")
	}
	defer sentry.Flush(2 * time.Second)

	// Creating context for application lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audience persistence is optional
	var (
		actionLogger database.UserActionLogger = database.Nop{}
		audienceRepo database.AudienceRepository
	)
	if cfg.MongoDBURI != "" {
		client, db, err := database.ConnectDB(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase)
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error().Err(err).Msg("Error disconnecting from MongoDB")
				sentry.CaptureException(err)
			} else {
				log.Info().Msg("Disconnected from MongoDB")
			}
		}()
		repo := database.NewMongoAudience(db)
		actionLogger = repo
		audienceRepo = repo
	}

	// --- Bot Initialization ---
	// 1. Create the raw telego bot instance first
	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Failed to create telego bot")
	}

	// 2. Create the Admin Checker
	adminChecker, err := auth.NewAdminChecker(bot, cfg.OwnerID)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Failed to create admin checker")
	}

	// 3. Core state
	messages := cache.New(cache.Config{
		MaxPerChat:      cfg.CacheMaxPerChat,
		TTL:             cfg.CacheTTL,
		CleanupInterval: cfg.CacheCleanupInterval,
	})
	sessions := edits.NewStore(cfg.EditSessionTTL, cfg.EditSessionMax)
	tracker := audience.NewTracker(audienceRepo)
	if err := tracker.Load(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to load audience")
		sentry.CaptureException(err)
	}
	broadcaster := broadcast.NewManager(bot, tracker, cfg.BroadcastPerSecond)

	// 4. Create message handler with dependencies
	messageHandler, err := handlers.NewMessageHandler(handlers.Deps{
		Messages:     messages,
		Detector:     edits.NewDetector(messages, sessions),
		Sessions:     sessions,
		Audience:     tracker,
		Broadcaster:  broadcaster,
		AdminChecker: adminChecker,
		ActionLogger: actionLogger,
		ChannelURL:   cfg.ChannelURL,
		GroupURL:     cfg.GroupURL,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Failed to create message handler")
	}

	// 5. Start receiving updates
	updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		AllowedUpdates: []string{"message", "edited_message", "callback_query"},
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Failed to start long polling")
	}

	// 6. Create the bot wrapper
	appBot, err := telegoBot.New(telegoBot.BotDeps{
		Bot:              bot,
		UpdatesChan:      updates,
		Handler:          messageHandler,
		Cache:            messages,
		Sessions:         sessions,
		ActiveChats:      tracker,
		Debug:            cfg.Debug,
		UpdatesPerSecond: cfg.UpdatesPerSecond,
		CleanupInterval:  cfg.CacheCleanupInterval,
		TrackingWindow:   cfg.TrackingWindow,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Health server runs beside the bot
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	go func() {
		if err := health.Run(ctx, net.JoinHostPort("", cfg.Port), health.NewRouter(messages)); err != nil {
			log.Error().Err(err).Msg("Health server failed")
			sentry.CaptureException(err)
		}
	}()

	log.Info().Str("env", cfg.AppEnv).Str("version", cfg.Version).Msg("Sus Ninja Bot started")

	// Blocks until ctx is cancelled (SIGINT, SIGTERM) or polling stops
	appBot.Start(ctx)

	log.Info().Msg("Bot shutdown complete")
}
