package audio

import "time"

// Frame is one decoded unit of audio received from the voice transport.
// Frames from simultaneous speakers are interleaved in arrival order into a
// single stream; the SSRC and UserID fields tag the originating speaker but
// no per-speaker track separation or mixing is performed.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	SSRC      uint32
	UserID    string
	PCM       []int16
}
