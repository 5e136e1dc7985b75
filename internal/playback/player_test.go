package playback

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipback/discord-clip-bot/internal/audio"
)

// fakeWriter records everything the player sends.
type fakeWriter struct {
	mu       sync.Mutex
	speaking []bool
	packets  int
}

func (w *fakeWriter) Speaking(b bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.speaking = append(w.speaking, b)
	return nil
}

func (w *fakeWriter) SendOpus(ctx context.Context, packet []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.packets++
	return nil
}

func (w *fakeWriter) sent() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.packets
}

// silenceSource yields n silent frames then EOF; n < 0 means endless.
type silenceSource struct {
	remaining int
}

func (s *silenceSource) ReadFrame() ([]int16, error) {
	if s.remaining == 0 {
		return nil, io.EOF
	}
	if s.remaining > 0 {
		s.remaining--
	}
	return make([]int16, audio.FrameSize*audio.Channels), nil
}

func TestEncoderPoolCachesPerGuild(t *testing.T) {
	pool := NewEncoderPool()

	a, err := pool.GetOrCreate("guild-a")
	require.NoError(t, err)
	b, err := pool.GetOrCreate("guild-b")
	require.NoError(t, err)
	again, err := pool.GetOrCreate("guild-a")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)

	pool.Remove("guild-a")
	fresh, err := pool.GetOrCreate("guild-a")
	require.NoError(t, err)
	assert.NotSame(t, a, fresh)
}

func TestPlayerPlaysToCompletion(t *testing.T) {
	player := NewPlayer(NewEncoderPool())
	w := &fakeWriter{}

	err := player.Play(context.Background(), w, "guild", &silenceSource{remaining: 5})
	require.NoError(t, err)

	assert.Equal(t, 5, w.sent())
	assert.Equal(t, []bool{true, false}, w.speaking, "speaking bracketed around playback")
}

func TestPlayerEmptySource(t *testing.T) {
	player := NewPlayer(NewEncoderPool())
	w := &fakeWriter{}

	err := player.Play(context.Background(), w, "guild", &silenceSource{remaining: 0})
	require.NoError(t, err)
	assert.Zero(t, w.sent())
}

func TestPlayerStopsOnCancel(t *testing.T) {
	player := NewPlayer(NewEncoderPool())
	w := &fakeWriter{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- player.Play(ctx, w, "guild", &silenceSource{remaining: -1})
	}()

	// Let a few frames through, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation is the stop path, not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("player did not stop after cancellation")
	}
	assert.Equal(t, []bool{true, false}, w.speaking)
}
