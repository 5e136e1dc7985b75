// Package engine owns per-guild voice sessions: the connect/disconnect state
// machine, playback dispatch, and the capture operations exposed to the
// command layer.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clipback/discord-clip-bot/internal/audio"
	"github.com/clipback/discord-clip-bot/internal/playback"
	"github.com/clipback/discord-clip-bot/internal/recorder"
)

// Conn is an established bidirectional voice stream. The transport pushes
// decoded frames through Frames and accepts encoded playback audio.
type Conn interface {
	// Frames delivers received audio in strict arrival order. The channel
	// is closed when the transport tears down.
	Frames() <-chan audio.Frame
	Speaking(bool) error
	SendOpus(ctx context.Context, packet []byte) error
	Close() error
}

// Transport joins voice channels. Join blocks until the connection is ready
// or ctx expires.
type Transport interface {
	Join(ctx context.Context, guildID, channelID string) (Conn, error)
}

// Config carries the coordinator's tunables.
type Config struct {
	JoinTimeout     time.Duration
	RetentionWindow time.Duration
	FrameDuration   time.Duration
}

// DefaultConfig returns the standard production settings.
func DefaultConfig() Config {
	return Config{
		JoinTimeout:     30 * time.Second,
		RetentionWindow: audio.RetentionWindow,
		FrameDuration:   audio.FrameDuration,
	}
}

// Coordinator is the session registry and state machine. All session
// lifecycle transitions go through it; there is no session state outside the
// registry.
type Coordinator struct {
	transport Transport
	player    *playback.Player
	encoders  *playback.EncoderPool
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*VoiceSession
}

// New creates a coordinator over the given transport.
func New(transport Transport, encoders *playback.EncoderPool, cfg Config) *Coordinator {
	return &Coordinator{
		transport: transport,
		player:    playback.NewPlayer(encoders),
		encoders:  encoders,
		cfg:       cfg,
		sessions:  make(map[string]*VoiceSession),
	}
}

// Connect joins the guild's voice channel and allocates a fresh session with
// an empty frame buffer; no stale frames carry over from prior sessions.
func (c *Coordinator) Connect(ctx context.Context, guildID, channelID string) error {
	c.mu.Lock()
	if existing, ok := c.sessions[guildID]; ok {
		connecting := existing.state == StateConnecting
		c.mu.Unlock()
		if connecting {
			return ErrAlreadyConnecting
		}
		return ErrAlreadyConnected
	}
	placeholder := &VoiceSession{
		GuildID:   guildID,
		ChannelID: channelID,
		StartedAt: time.Now(),
		state:     StateConnecting,
	}
	c.sessions[guildID] = placeholder
	c.mu.Unlock()

	joinCtx, cancel := context.WithTimeout(ctx, c.cfg.JoinTimeout)
	defer cancel()

	conn, err := c.transport.Join(joinCtx, guildID, channelID)
	if err != nil {
		c.mu.Lock()
		delete(c.sessions, guildID)
		c.mu.Unlock()
		logrus.WithError(err).WithFields(logrus.Fields{
			"guild_id":   guildID,
			"channel_id": channelID,
		}).Error("Voice channel join failed")
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	buffer := audio.NewFrameBuffer(c.cfg.RetentionWindow, c.cfg.FrameDuration)

	c.mu.Lock()
	placeholder.conn = conn
	placeholder.buffer = buffer
	placeholder.recorder = recorder.New(buffer, c.cfg.RetentionWindow)
	placeholder.state = StateConnected
	c.mu.Unlock()

	go c.pump(placeholder)

	logrus.WithFields(logrus.Fields{
		"guild_id":   guildID,
		"channel_id": channelID,
	}).Info("Voice session established")
	return nil
}

// pump drains the transport frame feed into the session buffer. It is the
// buffer's sole producer. When the feed closes without a prior disconnect,
// the transport failed: roll the session back to a safe state.
func (c *Coordinator) pump(sess *VoiceSession) {
	for frame := range sess.conn.Frames() {
		sess.buffer.Push(frame)
	}

	c.mu.Lock()
	abandoned := c.sessions[sess.GuildID] == sess
	if abandoned {
		delete(c.sessions, sess.GuildID)
	}
	c.mu.Unlock()

	if abandoned {
		logrus.WithField("guild_id", sess.GuildID).Warn("Voice transport closed unexpectedly")
		c.teardown(sess)
	}
}

// Disconnect tears the guild's session down: stops playback, fails any
// active recording (no clip is delivered), and releases the buffer.
func (c *Coordinator) Disconnect(guildID string) error {
	c.mu.Lock()
	sess, ok := c.sessions[guildID]
	if !ok || sess.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	delete(c.sessions, guildID)
	c.mu.Unlock()

	c.teardown(sess)
	if err := sess.conn.Close(); err != nil {
		logrus.WithError(err).WithField("guild_id", guildID).Debug("Error closing voice connection")
	}

	logrus.WithField("guild_id", guildID).Info("Voice session closed")
	return nil
}

// teardown releases a session's resources after it has left the registry.
func (c *Coordinator) teardown(sess *VoiceSession) {
	sess.stopPlayback()
	sess.recorder.Abort()
	sess.buffer.Release()
	c.encoders.Remove(sess.GuildID)
}

// DispatchPlay plays a resolved source into the guild's voice channel. Plays
// are serialized per guild: a second dispatch blocks until the first
// finishes, it does not error. The call returns when playback completes
// naturally or a skip scoped to `channelID` arrives, whichever happens first.
func (c *Coordinator) DispatchPlay(ctx context.Context, guildID, channelID string, src playback.FrameSource) error {
	sess, err := c.session(guildID)
	if err != nil {
		return err
	}

	sess.playMu.Lock()
	defer sess.playMu.Unlock()

	// The session may have been torn down while we waited on the lock.
	if current, err := c.session(guildID); err != nil || current != sess {
		return ErrNotConnected
	}

	pb := &activePlayback{channelID: channelID, skip: make(chan struct{})}
	sess.setPlayback(pb)
	defer sess.clearPlayback(pb)

	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.player.Play(playCtx, sess.conn, guildID, src)
	}()

	select {
	case err := <-done:
		return err
	case <-pb.skip:
		cancel()
		<-done
		return nil
	}
}

// Skip stops the guild's in-flight playback if it was dispatched from the
// same channel. Reports whether a playback was skipped.
func (c *Coordinator) Skip(guildID, channelID string) bool {
	sess, err := c.session(guildID)
	if err != nil {
		return false
	}
	return sess.skipPlayback(channelID)
}

// Replay extracts the trailing retention window into a clip.
func (c *Coordinator) Replay(guildID string) (*audio.Clip, error) {
	sess, err := c.session(guildID)
	if err != nil {
		return nil, err
	}
	return sess.recorder.Replay()
}

// StartRecording begins an open-ended capture on the guild's session.
func (c *Coordinator) StartRecording(guildID string) error {
	sess, err := c.session(guildID)
	if err != nil {
		return err
	}
	_, err = sess.recorder.Start()
	return err
}

// StopRecording ends the guild's capture and returns the recorded clip.
func (c *Coordinator) StopRecording(guildID string) (*audio.Clip, error) {
	sess, err := c.session(guildID)
	if err != nil {
		return nil, err
	}
	return sess.recorder.Stop()
}

// Status returns the guild's session snapshot, or ErrNotConnected.
func (c *Coordinator) Status(guildID string) (SessionStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[guildID]
	if !ok {
		return SessionStatus{}, ErrNotConnected
	}
	return sess.status(), nil
}

// Sessions lists snapshots of every live session.
func (c *Coordinator) Sessions() []SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SessionStatus, 0, len(c.sessions))
	for _, sess := range c.sessions {
		out = append(out, sess.status())
	}
	return out
}

// Shutdown disconnects every live session; used on process exit.
func (c *Coordinator) Shutdown() {
	for _, st := range c.Sessions() {
		if err := c.Disconnect(st.GuildID); err != nil {
			logrus.WithError(err).WithField("guild_id", st.GuildID).Debug("Error disconnecting session during shutdown")
		}
	}
}

// session returns the guild's connected session.
func (c *Coordinator) session(guildID string) (*VoiceSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[guildID]
	if !ok || sess.state != StateConnected {
		return nil, ErrNotConnected
	}
	return sess, nil
}
