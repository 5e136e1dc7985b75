// Package voice adapts a Discord gateway session into the engine's transport
// interface: joining voice channels, decoding received opus into PCM frames,
// and carrying encoded playback audio back out.
package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"layeh.com/gopus"

	"github.com/clipback/discord-clip-bot/internal/audio"
	"github.com/clipback/discord-clip-bot/internal/engine"
)

// frameBacklog is the receive channel capacity. The consumer only appends to
// an in-memory buffer, so a backlog this deep means it has stalled; further
// frames are dropped rather than blocking the decode loop.
const frameBacklog = 256

var errConnClosed = errors.New("voice: connection closed")

// Transport joins Discord voice channels over an open gateway session.
type Transport struct {
	session *discordgo.Session
}

// NewTransport wraps an open Discord session.
func NewTransport(s *discordgo.Session) *Transport {
	return &Transport{session: s}
}

// Join connects to a voice channel and starts the receive pipeline. The
// gateway handshake does not take a context, so it runs in a goroutine and a
// late success after ctx expires is disconnected immediately.
func (t *Transport) Join(ctx context.Context, guildID, channelID string) (engine.Conn, error) {
	type joinResult struct {
		vc  *discordgo.VoiceConnection
		err error
	}

	results := make(chan joinResult, 1)
	go func() {
		vc, err := t.session.ChannelVoiceJoin(guildID, channelID, false, false)
		results <- joinResult{vc: vc, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-results; r.err == nil {
				if err := r.vc.Disconnect(); err != nil {
					logrus.WithError(err).Debug("Error disconnecting late voice join")
				}
			}
		}()
		return nil, ctx.Err()
	case r := <-results:
		if r.err != nil {
			return nil, r.err
		}
		return newConn(r.vc)
	}
}

// conn is an established voice connection. A single receive goroutine owns
// the opus decoder and is the sole closer of the frames channel.
type conn struct {
	vc       *discordgo.VoiceConnection
	speakers *SpeakerMap
	frames   chan audio.Frame

	done      chan struct{}
	closeOnce sync.Once

	seq     uint64
	dropped atomic.Uint64
}

func newConn(vc *discordgo.VoiceConnection) (*conn, error) {
	decoder, err := gopus.NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		if derr := vc.Disconnect(); derr != nil {
			logrus.WithError(derr).Debug("Error disconnecting after decoder failure")
		}
		return nil, err
	}

	c := &conn{
		vc:       vc,
		speakers: NewSpeakerMap(),
		frames:   make(chan audio.Frame, frameBacklog),
		done:     make(chan struct{}),
	}

	vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		if vs.Speaking {
			c.speakers.Map(uint32(vs.SSRC), vs.UserID)
		}
	})

	go c.receive(decoder)
	return c, nil
}

// receive drains the opus feed until the connection closes, decoding each
// packet and tagging it with its speaker. Frames from concurrent speakers
// interleave in arrival order; they are not mixed.
func (c *conn) receive(decoder *gopus.Decoder) {
	defer close(c.frames)

	for {
		select {
		case <-c.done:
			return
		case packet, ok := <-c.vc.OpusRecv:
			if !ok {
				return
			}
			// Packets of 3 bytes or fewer are keepalive silence.
			if len(packet.Opus) <= 3 {
				continue
			}

			pcm, err := decoder.Decode(packet.Opus, audio.FrameSize, false)
			if err != nil {
				logrus.WithError(err).Debug("Error decoding opus packet")
				continue
			}

			c.seq++
			frame := audio.Frame{
				Seq:       c.seq,
				Timestamp: time.Now(),
				SSRC:      packet.SSRC,
				UserID:    c.speakers.UserID(packet.SSRC),
				PCM:       pcm,
			}

			select {
			case c.frames <- frame:
			default:
				if n := c.dropped.Add(1); n%100 == 1 {
					logrus.WithFields(logrus.Fields{
						"dropped": n,
						"ssrc":    packet.SSRC,
					}).Warn("Frame consumer stalled, dropping audio")
				}
			}
		}
	}
}

// Frames delivers decoded audio in arrival order. Closed on teardown.
func (c *conn) Frames() <-chan audio.Frame {
	return c.frames
}

// Speaking toggles the speaking indicator on the gateway.
func (c *conn) Speaking(b bool) error {
	return c.vc.Speaking(b)
}

// SendOpus queues an encoded packet for transmission.
func (c *conn) SendOpus(ctx context.Context, packet []byte) error {
	select {
	case c.vc.OpusSend <- packet:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errConnClosed
	}
}

// Close stops the receive loop and leaves the voice channel. Safe to call
// more than once.
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.vc.Disconnect()
	})
	return err
}
