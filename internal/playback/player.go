package playback

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// opusPacketCeiling is the worst-case encoded size of one frame.
const opusPacketCeiling = 4000

// OpusWriter is the transport-side sink for encoded playback audio. The
// engine's voice connection satisfies it.
type OpusWriter interface {
	Speaking(bool) error
	SendOpus(ctx context.Context, packet []byte) error
}

// FrameSource yields fixed-size PCM frames; io.EOF ends the stream.
type FrameSource interface {
	ReadFrame() ([]int16, error)
}

// Player streams a frame source into a voice connection, encoding each frame
// to opus. One Play call runs one complete playback.
type Player struct {
	encoders *EncoderPool
}

// NewPlayer creates a player over the shared encoder pool.
func NewPlayer(encoders *EncoderPool) *Player {
	return &Player{encoders: encoders}
}

// Play streams src into w until the source is exhausted or ctx is cancelled.
// Cancellation is the stop path (skip, disconnect) and is not an error.
func (p *Player) Play(ctx context.Context, w OpusWriter, guildID string, src FrameSource) error {
	enc, err := p.encoders.GetOrCreate(guildID)
	if err != nil {
		return err
	}

	if err := w.Speaking(true); err != nil {
		return fmt.Errorf("failed to set speaking: %w", err)
	}
	defer func() {
		if err := w.Speaking(false); err != nil {
			logrus.WithError(err).WithField("guild_id", guildID).Debug("Failed to clear speaking state")
		}
	}()

	packet := make([]byte, opusPacketCeiling)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pcm, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading audio frame: %w", err)
		}

		n, err := enc.Encode(pcm, packet)
		if err != nil {
			return fmt.Errorf("failed to encode opus: %w", err)
		}
		if err := w.SendOpus(ctx, packet[:n]); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("error sending audio frame: %w", err)
		}
	}
}
