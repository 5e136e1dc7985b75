package audio

import "time"

const (
	// SampleRate is the PCM sample rate delivered by Discord voice (48kHz).
	SampleRate = 48000
	// Channels is the number of audio channels (stereo).
	Channels = 2
	// FrameSize is the number of samples per channel in one 20ms frame.
	FrameSize = 960
	// FrameDuration is the wall-clock duration of one frame.
	FrameDuration = 20 * time.Millisecond
	// RetentionWindow is how much trailing audio a session buffer keeps
	// available for replay.
	RetentionWindow = 30 * time.Second
)
