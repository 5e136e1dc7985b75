package audio

import (
	"sync"
	"time"
)

// FrameBuffer is a bounded rolling window of received audio frames. A single
// producer (the transport's frame feed) pushes frames; eviction is FIFO once
// the retention window is full. While an extended capture is active, eviction
// is suspended and the buffer grows without bound from the capture mark, so
// an open-ended recording can outlast the retention window.
type FrameBuffer struct {
	mu            sync.Mutex
	frames        []Frame
	start         int // index of the oldest retained frame
	capacity      int // max retained frames outside extended capture
	frameDuration time.Duration
	capturing     bool
	captureMark   int // index where the current extended capture began
}

// NewFrameBuffer creates a buffer retaining `retention` worth of frames at
// one frame per `frameDuration`.
func NewFrameBuffer(retention, frameDuration time.Duration) *FrameBuffer {
	capacity := int(retention / frameDuration)
	if capacity < 1 {
		capacity = 1
	}
	return &FrameBuffer{
		frames:        make([]Frame, 0, capacity),
		capacity:      capacity,
		frameDuration: frameDuration,
	}
}

// Push appends a frame, evicting the oldest frame first when the buffer is at
// capacity. It never blocks: eviction is an index bump, and storage is
// compacted amortised so the producer path stays O(1).
func (b *FrameBuffer) Push(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = append(b.frames, f)
	if !b.capturing && len(b.frames)-b.start > b.capacity {
		b.start++
		b.compact()
	}
}

// compact reclaims the evicted prefix once it grows past one full window.
// Must be called with the lock held.
func (b *FrameBuffer) compact() {
	if b.start < b.capacity {
		return
	}
	n := copy(b.frames, b.frames[b.start:])
	b.frames = b.frames[:n]
	b.captureMark -= b.start
	b.start = 0
}

// Snapshot returns the most recent `window` worth of frames in arrival order
// without mutating buffer state. Fewer frames are returned if the session has
// been active for less than `window`.
func (b *FrameBuffer) Snapshot(window time.Duration) []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := int(window / b.frameDuration)
	if avail := len(b.frames) - b.start; n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}
	out := make([]Frame, n)
	copy(out, b.frames[len(b.frames)-n:])
	return out
}

// BeginExtendedCapture suspends eviction. Frames pushed from this point on
// are retained without bound until EndExtendedCapture.
func (b *FrameBuffer) BeginExtendedCapture() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.capturing = true
	b.captureMark = len(b.frames)
}

// EndExtendedCapture returns every frame pushed since BeginExtendedCapture,
// in order, then restores FIFO eviction with the buffer trimmed back to the
// configured retention window. Returns nil if no capture was active.
func (b *FrameBuffer) EndExtendedCapture() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.capturing {
		return nil
	}
	b.capturing = false

	captured := make([]Frame, len(b.frames)-b.captureMark)
	copy(captured, b.frames[b.captureMark:])

	if over := len(b.frames) - b.start - b.capacity; over > 0 {
		b.start += over
	}
	b.compact()
	return captured
}

// Len returns the number of frames currently retained.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames) - b.start
}

// Duration returns the buffered audio duration.
func (b *FrameBuffer) Duration() time.Duration {
	return time.Duration(b.Len()) * b.frameDuration
}

// Release drops the frame storage. The buffer must not be used afterwards;
// called when the owning session is destroyed.
func (b *FrameBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = nil
	b.start = 0
	b.capturing = false
	b.captureMark = 0
}
