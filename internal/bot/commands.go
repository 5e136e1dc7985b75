package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/clipback/discord-clip-bot/internal/audio"
	"github.com/clipback/discord-clip-bot/internal/engine"
	"github.com/clipback/discord-clip-bot/internal/playback"
	"github.com/clipback/discord-clip-bot/internal/recorder"
	"github.com/clipback/discord-clip-bot/internal/tagstore"
)

func (b *Bot) handleJoin(s *discordgo.Session, m *discordgo.MessageCreate) {
	vs, err := s.State.VoiceState(m.GuildID, m.Author.ID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		b.reply(m.ChannelID, "You need to be in a voice channel!")
		return
	}

	if err := b.engine.Connect(context.Background(), m.GuildID, vs.ChannelID); err != nil {
		logrus.WithError(err).WithField("guild_id", m.GuildID).Error("Join failed")
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}
	b.reply(m.ChannelID, "Joined your voice channel!")
}

func (b *Bot) handleLeave(m *discordgo.MessageCreate) {
	if err := b.engine.Disconnect(m.GuildID); err != nil {
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}
	b.reply(m.ChannelID, "Left the voice channel.")
}

func (b *Bot) handlePlay(m *discordgo.MessageCreate, args []string) {
	filename, sourceURL, err := b.resolveSourceRef(m, args)
	if err != nil {
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}

	if remaining := b.cooldownRemaining(m.GuildID); remaining > 0 {
		b.reply(m.ChannelID, fmt.Sprintf("Hold on, try again in %.0f seconds.", remaining.Seconds()))
		return
	}

	src, err := playback.FromURL(context.Background(), b.client, filename, sourceURL)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"guild_id": m.GuildID,
			"url":      sourceURL,
		}).Warn("Could not load playback source")
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}

	if err := b.engine.DispatchPlay(context.Background(), m.GuildID, m.ChannelID, src); err != nil {
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}
	b.markPlayed(m.GuildID)
}

// resolveSourceRef turns a play/tag argument into a filename and URL. An
// attachment wins over arguments; a bare word is a tag lookup.
func (b *Bot) resolveSourceRef(m *discordgo.MessageCreate, args []string) (filename, sourceURL string, err error) {
	if len(m.Attachments) > 0 {
		att := m.Attachments[0]
		return att.Filename, att.URL, nil
	}
	if len(args) == 0 {
		return "", "", errMissingSource
	}

	ref := args[0]
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return filenameFromURL(ref), ref, nil
	}

	tag, err := b.tags.Get(context.Background(), m.GuildID, ref)
	if err != nil {
		return "", "", err
	}
	return filenameFromURL(tag.AudioURL), tag.AudioURL, nil
}

func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return path.Base(u.Path)
}

func (b *Bot) handleSkip(m *discordgo.MessageCreate) {
	if !b.engine.Skip(m.GuildID, m.ChannelID) {
		b.reply(m.ChannelID, "Nothing is playing from this channel.")
		return
	}
	b.reply(m.ChannelID, "Skipped.")
}

func (b *Bot) handleReplay(m *discordgo.MessageCreate) {
	clip, err := b.engine.Replay(m.GuildID)
	if err != nil {
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}
	b.uploadClip(m.ChannelID, clip.Filename(), clip)
}

func (b *Bot) handleRecord(m *discordgo.MessageCreate, args []string) {
	sub := ""
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	switch sub {
	case "start":
		if err := b.engine.StartRecording(m.GuildID); err != nil {
			b.reply(m.ChannelID, userErrorMessage(err))
			return
		}
		b.reply(m.ChannelID, "Recording. Use `record stop` to finish.")
	case "stop":
		clip, err := b.engine.StopRecording(m.GuildID)
		if err != nil {
			b.reply(m.ChannelID, userErrorMessage(err))
			return
		}
		b.uploadClip(m.ChannelID, clip.Filename(), clip)
	default:
		b.reply(m.ChannelID, fmt.Sprintf("Usage: `%s record start` or `%s record stop`", b.prefix, b.prefix))
	}
}

func (b *Bot) handleTag(m *discordgo.MessageCreate, args []string) {
	sub := ""
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	switch sub {
	case "add":
		b.handleTagAdd(m, args[1:])
	case "remove":
		if len(args) < 2 {
			b.reply(m.ChannelID, fmt.Sprintf("Usage: `%s tag remove <name>`", b.prefix))
			return
		}
		if err := b.tags.Delete(context.Background(), m.GuildID, args[1]); err != nil {
			b.reply(m.ChannelID, userErrorMessage(err))
			return
		}
		b.reply(m.ChannelID, "Tag removed.")
	case "list":
		b.handleTagList(m)
	default:
		b.reply(m.ChannelID, fmt.Sprintf("Usage: `%s tag add|remove|list`", b.prefix))
	}
}

func (b *Bot) handleTagAdd(m *discordgo.MessageCreate, args []string) {
	if len(args) < 1 {
		b.reply(m.ChannelID, fmt.Sprintf("Usage: `%s tag add <name> <url>` (or attach a file)", b.prefix))
		return
	}
	name := args[0]

	var audioURL string
	switch {
	case len(m.Attachments) > 0:
		audioURL = m.Attachments[0].URL
	case len(args) >= 2:
		audioURL = args[1]
	default:
		b.reply(m.ChannelID, fmt.Sprintf("Usage: `%s tag add <name> <url>` (or attach a file)", b.prefix))
		return
	}

	if !playableExtension(audioURL) {
		b.reply(m.ChannelID, "Only .mp3 and .wav files can be tagged.")
		return
	}

	ctx := context.Background()
	count, err := b.tags.Count(ctx, m.GuildID)
	if err != nil {
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}
	limit, err := b.tags.TagLimit(ctx, m.GuildID)
	if err != nil {
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}
	if count >= limit {
		b.reply(m.ChannelID, fmt.Sprintf("This server already has %d tags (limit %d).", count, limit))
		return
	}

	err = b.tags.Create(ctx, &tagstore.Tag{
		GuildID:  m.GuildID,
		Name:     name,
		AudioURL: audioURL,
		OwnerID:  m.Author.ID,
	})
	if err != nil {
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf("Tag `%s` saved.", strings.ToLower(name)))
}

func (b *Bot) handleTagList(m *discordgo.MessageCreate) {
	tags, err := b.tags.List(context.Background(), m.GuildID)
	if err != nil {
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}
	if len(tags) == 0 {
		b.reply(m.ChannelID, "No tags yet.")
		return
	}

	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = "`" + tag.Name + "`"
	}
	b.reply(m.ChannelID, "Tags: "+strings.Join(names, ", "))
}

func (b *Bot) handleStatus(m *discordgo.MessageCreate) {
	st, err := b.engine.Status(m.GuildID)
	if err != nil {
		b.reply(m.ChannelID, userErrorMessage(err))
		return
	}
	b.reply(m.ChannelID, fmt.Sprintf(
		"State: %s, channel: <#%s>, recording: %v, buffered: %s",
		st.State, st.ChannelID, st.Recording, st.Buffered.Round(time.Second),
	))
}

// uploadClip sends a WAV clip as a file attachment.
func (b *Bot) uploadClip(channelID, filename string, clip *audio.Clip) {
	if _, err := b.discord.ChannelFileSend(channelID, filename, clip.Reader()); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"channel_id": channelID,
			"size":       clip.Size(),
		}).Error("Failed to upload clip")
		b.reply(channelID, "Couldn't upload the clip.")
	}
}

func playableExtension(ref string) bool {
	base := strings.ToLower(filenameFromURL(ref))
	return strings.HasSuffix(base, ".mp3") || strings.HasSuffix(base, ".wav")
}

var errMissingSource = errors.New("bot: no audio source given")

// userErrorMessage translates engine errors into user-facing replies. Every
// failure kind the engine reports gets its own message.
func userErrorMessage(err error) string {
	switch {
	case errors.Is(err, errMissingSource):
		return "Give me a URL, a tag name, or attach a file."
	case errors.Is(err, engine.ErrAlreadyConnecting):
		return "Still connecting, hang on."
	case errors.Is(err, engine.ErrAlreadyConnected):
		return "I'm already in a voice channel here. Use `leave` first."
	case errors.Is(err, engine.ErrNotConnected):
		return "I'm not in a voice channel. Use `join` first."
	case errors.Is(err, engine.ErrConnectFailed):
		return "Couldn't join the voice channel. Try again."
	case errors.Is(err, recorder.ErrRecordingInProgress):
		return "A recording is already running."
	case errors.Is(err, recorder.ErrNoActiveRecording):
		return "No recording is running."
	case errors.Is(err, recorder.ErrEmptySession):
		return "I haven't heard anything yet."
	case errors.Is(err, playback.ErrUnsupportedFormat):
		return "I can only play 48kHz .mp3 and .wav files."
	case errors.Is(err, playback.ErrSizeLimitExceeded):
		return "That file is too big (25MB max)."
	case errors.Is(err, playback.ErrFetchFailed):
		return "Couldn't download that file."
	case errors.Is(err, tagstore.ErrTagNotFound):
		return "No such tag."
	case errors.Is(err, tagstore.ErrTagExists):
		return "That tag name is taken."
	default:
		return "Something went wrong."
	}
}
