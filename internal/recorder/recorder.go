// Package recorder orchestrates capture operations against a session's
// frame buffer: trailing-window replay and open-ended start/stop recording.
package recorder

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clipback/discord-clip-bot/internal/audio"
)

var (
	// ErrRecordingInProgress is returned when a capture operation is
	// requested while another recording is active on the session.
	ErrRecordingInProgress = errors.New("recorder: recording already in progress")
	// ErrNoActiveRecording is returned by Stop when nothing is recording.
	ErrNoActiveRecording = errors.New("recorder: no active recording")
	// ErrEmptySession is returned by Replay when the buffer holds no frames.
	ErrEmptySession = errors.New("recorder: no audio buffered for this session")
)

// Mode distinguishes the two capture operations.
type Mode int

const (
	// ModeReplay extracts the trailing retention window.
	ModeReplay Mode = iota
	// ModeRecord captures an open-ended span between start and stop.
	ModeRecord
)

// Status is the lifecycle state of a Recording.
type Status int

const (
	StatusActive Status = iota
	StatusCompleted
	StatusFailed
)

// Recording represents one in-flight capture operation.
type Recording struct {
	ID        string
	Mode      Mode
	StartedAt time.Time
	status    Status
}

// Status returns the recording's lifecycle state.
func (r *Recording) Status() Status {
	return r.status
}

// Recorder manages capture operations for one voice session. At most one
// Recording is active at a time; this invariant is enforced here and is
// independent of the session's playback lock.
type Recorder struct {
	mu     sync.Mutex
	buffer *audio.FrameBuffer
	window time.Duration
	active *Recording
}

// New creates a recorder over the session's frame buffer. `window` is the
// replay lookback duration.
func New(buffer *audio.FrameBuffer, window time.Duration) *Recorder {
	return &Recorder{buffer: buffer, window: window}
}

// Replay extracts the trailing window of buffered audio into a clip. A
// session with less history than the window yields a shorter clip; a session
// with zero frames fails with ErrEmptySession.
func (r *Recorder) Replay() (*audio.Clip, error) {
	rec, err := r.begin(ModeReplay)
	if err != nil {
		return nil, err
	}

	frames := r.buffer.Snapshot(r.window)
	if len(frames) == 0 {
		r.finish(rec, StatusFailed)
		return nil, ErrEmptySession
	}

	clip := audio.NewClip(frames, audio.SampleRate, audio.Channels)
	r.finish(rec, StatusCompleted)

	logrus.WithFields(logrus.Fields{
		"recording_id": rec.ID,
		"frames":       len(frames),
		"duration":     clip.Duration,
	}).Info("Replay clip extracted")
	return clip, nil
}

// Start begins an open-ended recording and returns immediately; capture
// proceeds on the transport's frame-delivery path.
func (r *Recorder) Start() (*Recording, error) {
	rec, err := r.begin(ModeRecord)
	if err != nil {
		return nil, err
	}
	r.buffer.BeginExtendedCapture()

	logrus.WithField("recording_id", rec.ID).Info("Recording started")
	return rec, nil
}

// Stop ends the active recording and returns the captured span as a clip.
// A stop with zero captured frames still returns a valid empty clip: the
// command layer treats any non-error as "clip delivered".
func (r *Recorder) Stop() (*audio.Clip, error) {
	r.mu.Lock()
	rec := r.active
	if rec == nil || rec.Mode != ModeRecord {
		r.mu.Unlock()
		return nil, ErrNoActiveRecording
	}
	r.active = nil
	r.mu.Unlock()

	frames := r.buffer.EndExtendedCapture()
	clip := audio.NewClip(frames, audio.SampleRate, audio.Channels)
	rec.status = StatusCompleted

	logrus.WithFields(logrus.Fields{
		"recording_id": rec.ID,
		"frames":       len(frames),
		"duration":     clip.Duration,
	}).Info("Recording stopped")
	return clip, nil
}

// Abort cancels any active recording without producing a clip. The captured
// span is discarded and the recording is marked failed. Safe to call when
// nothing is active; used on disconnect and transport failure.
func (r *Recorder) Abort() {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.mu.Unlock()

	if rec == nil {
		return
	}
	rec.status = StatusFailed
	if rec.Mode == ModeRecord {
		r.buffer.EndExtendedCapture()
	}
	logrus.WithField("recording_id", rec.ID).Warn("Recording aborted")
}

// Active reports whether a recording is currently in flight.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

func (r *Recorder) begin(mode Mode) (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrRecordingInProgress
	}
	rec := &Recording{
		ID:        uuid.New().String(),
		Mode:      mode,
		StartedAt: time.Now(),
		status:    StatusActive,
	}
	r.active = rec
	return rec, nil
}

func (r *Recorder) finish(rec *Recording, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.status = status
	if r.active == rec {
		r.active = nil
	}
}
