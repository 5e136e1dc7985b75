package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeWAV(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 100, -100}
	data := EncodeWAV(samples, SampleRate, Channels)

	decoded, rate, channels, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, SampleRate, rate)
	assert.Equal(t, Channels, channels)
	assert.Equal(t, samples, decoded)
}

func TestEncodeWAVEmpty(t *testing.T) {
	data := EncodeWAV(nil, SampleRate, Channels)
	assert.Len(t, data, 44, "empty clip is a bare header")

	decoded, rate, channels, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Empty(t, decoded)
	assert.Equal(t, SampleRate, rate)
	assert.Equal(t, Channels, channels)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, _, err := DecodeWAV([]byte("not a wav file at all"))
	assert.ErrorIs(t, err, ErrMalformedWAV)

	_, _, _, err = DecodeWAV(nil)
	assert.ErrorIs(t, err, ErrMalformedWAV)
}

func TestDecodeWAVRejectsCompressed(t *testing.T) {
	data := EncodeWAV([]int16{1, 2, 3}, SampleRate, Channels)
	// Flip the format tag to something non-PCM.
	data[20] = 0x55
	_, _, _, err := DecodeWAV(data)
	assert.ErrorIs(t, err, ErrMalformedWAV)
}

func TestDecodeWAVTruncatedChunk(t *testing.T) {
	data := EncodeWAV([]int16{1, 2, 3, 4}, SampleRate, Channels)
	_, _, _, err := DecodeWAV(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrMalformedWAV)
}

func TestNewClip(t *testing.T) {
	frames := []Frame{
		{Seq: 1, PCM: []int16{1, 2, 3, 4}},
		{Seq: 2, PCM: []int16{5, 6, 7, 8}},
	}
	clip := NewClip(frames, 2, 2) // 2Hz stereo: 8 samples = 2 seconds

	assert.NotEmpty(t, clip.ID)
	assert.Equal(t, 2*time.Second, clip.Duration)
	assert.WithinDuration(t, time.Now(), clip.CreatedAt, time.Minute)

	decoded, rate, channels, err := DecodeWAV(clip.Data)
	require.NoError(t, err)
	assert.Equal(t, 2, rate)
	assert.Equal(t, 2, channels)
	assert.Equal(t, []int16{1, 2, 3, 4, 5, 6, 7, 8}, decoded)
}

func TestNewClipEmptySpan(t *testing.T) {
	// Zero captured frames still produce a valid (empty) clip.
	clip := NewClip(nil, SampleRate, Channels)
	assert.Zero(t, clip.Duration)
	assert.Equal(t, 44, clip.Size())

	decoded, _, _, err := DecodeWAV(clip.Data)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestClipFilename(t *testing.T) {
	clip := NewClip(nil, SampleRate, Channels)
	assert.Regexp(t, `^\d+\.wav$`, clip.Filename())
}
