package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clipback/discord-clip-bot/internal/bot"
	"github.com/clipback/discord-clip-bot/internal/config"
	"github.com/clipback/discord-clip-bot/internal/engine"
	"github.com/clipback/discord-clip-bot/internal/mcp"
	"github.com/clipback/discord-clip-bot/internal/playback"
	"github.com/clipback/discord-clip-bot/internal/tagstore"
	"github.com/clipback/discord-clip-bot/internal/voice"
)

var tokenFlag string

func init() {
	flag.StringVar(&tokenFlag, "token", "", "Discord Bot Token (overrides DISCORD_TOKEN)")
	flag.Parse()
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	if tokenFlag != "" {
		os.Setenv("DISCORD_TOKEN", tokenFlag)
	}
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Configuration error")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	// Tag store: PostgreSQL when configured, in-memory otherwise.
	var tags tagstore.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logrus.WithError(err).Fatal("Error creating database pool")
		}
		defer pool.Close()

		store := tagstore.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			logrus.WithError(err).Fatal("Error migrating tag schema")
		}
		tags = store
		logrus.Info("Using PostgreSQL tag store")
	} else {
		tags = tagstore.NewMemoryStore()
		logrus.Info("No DATABASE_URL set, tags are kept in memory")
	}

	discord, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logrus.WithError(err).Fatal("Error creating Discord session")
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.JoinTimeout = cfg.JoinTimeout

	coordinator := engine.New(voice.NewTransport(discord), playback.NewEncoderPool(), engineCfg)
	defer coordinator.Shutdown()

	bot.New(discord, coordinator, tags, cfg.CommandPrefix, cfg.PlayCooldown)

	controlServer := mcp.NewServer(coordinator, cfg.ClipDir)
	go func() {
		if err := controlServer.Start(ctx); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Error("Control server error")
		}
	}()

	if err := discord.Open(); err != nil {
		logrus.WithError(err).Fatal("Error connecting to Discord")
	}
	defer func() {
		if err := discord.Close(); err != nil {
			logrus.WithError(err).Warn("Error closing Discord session")
		}
	}()

	logrus.WithField("prefix", cfg.CommandPrefix).Info("Bot is running. Press CTRL-C to exit.")
	<-ctx.Done()

	logrus.Info("Shutting down gracefully...")
}
