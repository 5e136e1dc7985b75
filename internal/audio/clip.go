package audio

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clip is a finalized, deliverable recording: a WAV container ready to be
// handed to the command layer. The engine retains no reference to a clip
// after returning it.
type Clip struct {
	ID        string
	Data      []byte
	Duration  time.Duration
	CreatedAt time.Time
}

// NewClip encodes the ordered frame span into a WAV clip. A span of zero
// frames yields a valid, empty clip.
func NewClip(frames []Frame, sampleRate, channels int) *Clip {
	total := 0
	for _, f := range frames {
		total += len(f.PCM)
	}
	samples := make([]int16, 0, total)
	for _, f := range frames {
		samples = append(samples, f.PCM...)
	}

	var duration time.Duration
	if sampleRate > 0 && channels > 0 {
		seconds := float64(total) / float64(sampleRate*channels)
		duration = time.Duration(seconds * float64(time.Second))
	}

	return &Clip{
		ID:        uuid.New().String(),
		Data:      EncodeWAV(samples, sampleRate, channels),
		Duration:  duration,
		CreatedAt: time.Now(),
	}
}

// Filename returns the upload name for the clip, matching the
// unix-timestamp.wav convention.
func (c *Clip) Filename() string {
	return fmt.Sprintf("%d.wav", c.CreatedAt.Unix())
}

// Reader returns a fresh reader over the clip bytes.
func (c *Clip) Reader() *bytes.Reader {
	return bytes.NewReader(c.Data)
}

// Size returns the encoded clip size in bytes.
func (c *Clip) Size() int {
	return len(c.Data)
}
