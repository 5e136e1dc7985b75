// Package bot is the Discord-facing command surface: it routes prefix
// commands from text channels into the voice engine and the tag store, and
// uploads recorded clips back to the requesting channel.
package bot

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/clipback/discord-clip-bot/internal/engine"
	"github.com/clipback/discord-clip-bot/internal/tagstore"
)

// Bot wires Discord message events to voice-engine operations.
type Bot struct {
	discord *discordgo.Session
	engine  *engine.Coordinator
	tags    tagstore.Store
	client  *http.Client

	prefix   string
	cooldown time.Duration

	mu       sync.Mutex
	lastPlay map[string]time.Time
}

// New registers the bot's handlers on an existing Discord session. The
// session is opened and closed by the caller.
func New(discord *discordgo.Session, eng *engine.Coordinator, tags tagstore.Store, prefix string, cooldown time.Duration) *Bot {
	b := &Bot{
		discord:  discord,
		engine:   eng,
		tags:     tags,
		client:   &http.Client{Timeout: 60 * time.Second},
		prefix:   prefix,
		cooldown: cooldown,
		lastPlay: make(map[string]time.Time),
	}

	discord.AddHandler(b.ready)
	discord.AddHandler(b.messageCreate)

	discord.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return b
}

func (b *Bot) ready(s *discordgo.Session, _ *discordgo.Ready) {
	logrus.WithField("username", s.State.User.Username).Info("Bot is ready")
}

func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	cmd, args, ok := splitCommand(m.Content, b.prefix)
	if !ok {
		return
	}
	if m.GuildID == "" {
		b.reply(m.ChannelID, "Voice commands only work in a server.")
		return
	}

	switch cmd {
	case "join":
		b.handleJoin(s, m)
	case "leave":
		b.handleLeave(m)
	case "play":
		b.handlePlay(m, args)
	case "skip":
		b.handleSkip(m)
	case "replay":
		b.handleReplay(m)
	case "record":
		b.handleRecord(m, args)
	case "tag":
		b.handleTag(m, args)
	case "status":
		b.handleStatus(m)
	case "help", "":
		b.reply(m.ChannelID, helpText(b.prefix))
	default:
		b.reply(m.ChannelID, fmt.Sprintf("Unknown command. Try `%s help`.", b.prefix))
	}
}

// splitCommand strips the prefix and splits the remainder into the command
// word and its arguments. ok is false when the message is not for the bot.
func splitCommand(content, prefix string) (cmd string, args []string, ok bool) {
	if !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	rest := strings.TrimPrefix(content, prefix)
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return "", nil, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, true
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// cooldownRemaining reports how long the guild must still wait before the
// next play.
func (b *Bot) cooldownRemaining(guildID string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := time.Since(b.lastPlay[guildID])
	if elapsed >= b.cooldown {
		return 0
	}
	return b.cooldown - elapsed
}

// markPlayed starts the guild's post-play cooldown.
func (b *Bot) markPlayed(guildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastPlay[guildID] = time.Now()
}

func (b *Bot) reply(channelID, msg string) {
	if _, err := b.discord.ChannelMessageSend(channelID, msg); err != nil {
		logrus.WithError(err).WithField("channel_id", channelID).Debug("Failed to send reply")
	}
}

func helpText(prefix string) string {
	var sb strings.Builder
	sb.WriteString("**Voice commands**\n")
	for _, line := range []string{
		"join - join your current voice channel",
		"leave - leave the voice channel",
		"play <url|tag> - play an audio clip (or attach a file)",
		"skip - stop the current clip",
		"replay - save the last 30 seconds as a clip",
		"record start / record stop - record an open-ended clip",
		"tag add <name> <url> / tag remove <name> / tag list",
		"status - show the current session",
	} {
		fmt.Fprintf(&sb, "`%s %s`\n", prefix, line)
	}
	return sb.String()
}
