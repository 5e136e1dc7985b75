package engine

import (
	"sync"
	"time"

	"github.com/clipback/discord-clip-bot/internal/audio"
	"github.com/clipback/discord-clip-bot/internal/recorder"
)

// State is a session's connection lifecycle state. A guild with no registry
// entry is Disconnected.
type State int

const (
	StateConnecting State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// VoiceSession is the per-guild voice connection and its in-memory capture
// state. At most one exists per guild; it lives from a successful connect
// until disconnect.
type VoiceSession struct {
	GuildID   string
	ChannelID string
	StartedAt time.Time

	state    State
	conn     Conn
	buffer   *audio.FrameBuffer
	recorder *recorder.Recorder

	// playMu serializes playback dispatch only. Recording exclusivity is a
	// separate invariant owned by the recorder.
	playMu sync.Mutex

	mu      sync.Mutex
	playing *activePlayback
}

// activePlayback is the one-shot completion signal for an in-flight play:
// natural completion and a channel-scoped skip both resolve the same wait,
// whichever comes first.
type activePlayback struct {
	channelID string
	skip      chan struct{}
	once      sync.Once
}

func (p *activePlayback) resolve() {
	p.once.Do(func() { close(p.skip) })
}

func (s *VoiceSession) setPlayback(p *activePlayback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = p
}

func (s *VoiceSession) clearPlayback(p *activePlayback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing == p {
		s.playing = nil
	}
}

// stopPlayback resolves any in-flight playback wait regardless of origin
// channel; used by disconnect and transport teardown.
func (s *VoiceSession) stopPlayback() {
	s.mu.Lock()
	p := s.playing
	s.mu.Unlock()
	if p != nil {
		p.resolve()
	}
}

// skipPlayback resolves the playback wait only when the skip originates from
// the same channel the play was requested in.
func (s *VoiceSession) skipPlayback(channelID string) bool {
	s.mu.Lock()
	p := s.playing
	s.mu.Unlock()
	if p == nil || p.channelID != channelID {
		return false
	}
	p.resolve()
	return true
}

// SessionStatus is a point-in-time snapshot of a session for status surfaces.
type SessionStatus struct {
	GuildID   string        `json:"guildId"`
	ChannelID string        `json:"channelId"`
	State     string        `json:"state"`
	Recording bool          `json:"recording"`
	Buffered  time.Duration `json:"buffered"`
	StartedAt time.Time     `json:"startedAt"`
}

func (s *VoiceSession) status() SessionStatus {
	st := SessionStatus{
		GuildID:   s.GuildID,
		ChannelID: s.ChannelID,
		State:     s.state.String(),
		StartedAt: s.StartedAt,
	}
	if s.state == StateConnected {
		st.Recording = s.recorder.Active()
		st.Buffered = s.buffer.Duration()
	}
	return st
}
