// Package config loads bot configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bot.
type Config struct {
	DiscordToken  string
	CommandPrefix string

	// DatabaseURL is the PostgreSQL connection string for the tag store.
	// Empty means tags are kept in memory only.
	DatabaseURL string

	// ClipDir is where the control server exports recorded clips.
	ClipDir string

	JoinTimeout  time.Duration
	PlayCooldown time.Duration
}

// Load loads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN not set in environment")
	}

	prefix := os.Getenv("COMMAND_PREFIX")
	if prefix == "" {
		prefix = "!audio"
	}

	clipDir := os.Getenv("CLIP_DIR")
	if clipDir == "" {
		clipDir = "clips"
	}

	cfg := &Config{
		DiscordToken:  token,
		CommandPrefix: prefix,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		ClipDir:       clipDir,
		JoinTimeout:   30 * time.Second,
		PlayCooldown:  5 * time.Second,
	}

	if val := os.Getenv("JOIN_TIMEOUT_SEC"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			cfg.JoinTimeout = time.Duration(parsed) * time.Second
		}
	}
	if val := os.Getenv("PLAY_COOLDOWN_SEC"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			cfg.PlayCooldown = time.Duration(parsed) * time.Second
		}
	}

	return cfg, nil
}
