package playback

import (
	"fmt"
	"sync"

	"github.com/hraban/opus"

	"github.com/clipback/discord-clip-bot/internal/audio"
)

// EncoderPool manages per-guild opus encoders. Encoders are stateful, so each
// guild's playback stream keeps its own.
type EncoderPool struct {
	mu       sync.RWMutex
	encoders map[string]*opus.Encoder
}

// NewEncoderPool creates an empty encoder pool.
func NewEncoderPool() *EncoderPool {
	return &EncoderPool{encoders: make(map[string]*opus.Encoder)}
}

// GetOrCreate returns the guild's encoder, creating it on first use.
func (p *EncoderPool) GetOrCreate(guildID string) (*opus.Encoder, error) {
	p.mu.RLock()
	enc, exists := p.encoders[guildID]
	p.mu.RUnlock()
	if exists && enc != nil {
		return enc, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring the write lock.
	if enc, exists := p.encoders[guildID]; exists && enc != nil {
		return enc, nil
	}

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	p.encoders[guildID] = enc
	return enc, nil
}

// Remove drops the guild's encoder; called when the guild disconnects.
func (p *EncoderPool) Remove(guildID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.encoders, guildID)
}
