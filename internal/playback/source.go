// Package playback turns user-supplied audio (uploads, URLs, stored tags)
// into a PCM frame stream and drives it through the voice transport.
package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/clipback/discord-clip-bot/internal/audio"
)

// MaxSourceBytes is the ceiling on a resolved audio source (25 MB).
const MaxSourceBytes = 25_000_000

var (
	// ErrUnsupportedFormat is returned for extensions other than .mp3/.wav,
	// for undecodable payloads, and for sources whose decoded format does
	// not match the transport's 48kHz stereo frame format (the engine does
	// no resampling).
	ErrUnsupportedFormat = errors.New("playback: unsupported audio format")
	// ErrSizeLimitExceeded is returned when a source exceeds MaxSourceBytes.
	ErrSizeLimitExceeded = errors.New("playback: source exceeds size limit")
	// ErrFetchFailed is returned when a remote fetch errors, times out, or
	// answers with a non-success status.
	ErrFetchFailed = errors.New("playback: failed to fetch remote audio")
)

// Source is a resolved, decodable audio stream plus display metadata. It
// yields fixed 20ms stereo PCM frames for the player.
type Source struct {
	Filename string
	URL      string

	samples []int16
	pos     int
}

// NewSource decodes raw audio bytes into a playable source. The extension of
// `filename` selects the container; `url` is display metadata only.
func NewSource(filename, url string, data []byte) (*Source, error) {
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrSizeLimitExceeded, len(data))
	}

	var (
		samples  []int16
		rate     int
		channels int
		err      error
	)
	switch strings.ToLower(path.Ext(filename)) {
	case ".wav":
		samples, rate, channels, err = audio.DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
	case ".mp3":
		samples, rate, err = decodeMP3(data)
		channels = 2 // go-mp3 always emits stereo
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}

	if channels == 1 {
		samples = monoToStereo(samples)
		channels = 2
	}
	if rate != audio.SampleRate || channels != audio.Channels {
		return nil, fmt.Errorf("%w: %dHz/%dch (need %dHz/%dch)",
			ErrUnsupportedFormat, rate, channels, audio.SampleRate, audio.Channels)
	}

	return &Source{Filename: filename, URL: url, samples: samples}, nil
}

// FromURL fetches a remote audio file and resolves it into a source. Used
// for both direct URL playback and stored tag references.
func FromURL(ctx context.Context, client *http.Client, filename, url string) (*Source, error) {
	data, err := Fetch(ctx, client, url)
	if err != nil {
		return nil, err
	}
	return NewSource(filename, url, data)
}

// Fetch downloads a remote audio payload, enforcing the size ceiling while
// streaming so an oversized body is abandoned early. Results are not cached.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("%w: body larger than %d bytes", ErrSizeLimitExceeded, MaxSourceBytes)
	}
	return data, nil
}

// Duration returns the total playable duration of the source.
func (s *Source) Duration() time.Duration {
	seconds := float64(len(s.samples)) / float64(audio.SampleRate*audio.Channels)
	return time.Duration(seconds * float64(time.Second))
}

// ReadFrame returns the next 20ms stereo frame, zero-padding the final short
// frame. io.EOF marks the end of the stream.
func (s *Source) ReadFrame() ([]int16, error) {
	const frameSamples = audio.FrameSize * audio.Channels
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}

	frame := make([]int16, frameSamples)
	n := copy(frame, s.samples[s.pos:])
	s.pos += n
	return frame, nil
}

func decodeMP3(data []byte) (samples []int16, rate int, err error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, err
	}
	samples = make([]int16, len(raw)/2)
	for i := range samples {
		// #nosec G115 - bit reinterpretation of the sample
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples, dec.SampleRate(), nil
}

// monoToStereo duplicates each sample across both channels. This is channel
// layout adjustment, not resampling.
func monoToStereo(mono []int16) []int16 {
	stereo := make([]int16, len(mono)*2)
	for i, s := range mono {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}
	return stereo
}
