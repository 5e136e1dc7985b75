package audio

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeFrame builds a one-sample frame whose payload encodes its sequence
// number, so ordering assertions can inspect the data itself.
func makeFrame(seq uint64) Frame {
	return Frame{
		Seq:       seq,
		Timestamp: time.Unix(int64(seq), 0),
		PCM:       []int16{int16(seq)},
	}
}

func pushN(b *FrameBuffer, from, to uint64) {
	for seq := from; seq <= to; seq++ {
		b.Push(makeFrame(seq))
	}
}

func seqs(frames []Frame) []uint64 {
	out := make([]uint64, len(frames))
	for i, f := range frames {
		out[i] = f.Seq
	}
	return out
}

func TestNewFrameBuffer(t *testing.T) {
	b := NewFrameBuffer(30*time.Second, 20*time.Millisecond)
	assert.Zero(t, b.Len())
	assert.Zero(t, b.Duration())
}

func TestSnapshotEmptyBuffer(t *testing.T) {
	b := NewFrameBuffer(30*time.Second, time.Second)
	assert.Nil(t, b.Snapshot(30*time.Second))
}

func TestSnapshotReturnsMostRecentWindow(t *testing.T) {
	// 30s retention at 1 frame/sec; 40 frames pushed means 1..10 are evicted.
	b := NewFrameBuffer(30*time.Second, time.Second)
	pushN(b, 1, 40)

	got := b.Snapshot(30 * time.Second)
	require.Len(t, got, 30)
	assert.EqualValues(t, 11, got[0].Seq)
	assert.EqualValues(t, 40, got[29].Seq)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1].Seq+1, got[i].Seq, "frames must stay in arrival order")
	}
}

func TestSnapshotShortHistory(t *testing.T) {
	// Fewer frames than the window is not an error: return what exists.
	b := NewFrameBuffer(30*time.Second, time.Second)
	pushN(b, 1, 5)

	got := b.Snapshot(30 * time.Second)
	require.Len(t, got, 5)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, seqs(got))
}

func TestSnapshotDoesNotMutate(t *testing.T) {
	b := NewFrameBuffer(30*time.Second, time.Second)
	pushN(b, 1, 10)

	first := b.Snapshot(3 * time.Second)
	second := b.Snapshot(3 * time.Second)
	assert.Equal(t, seqs(first), seqs(second))
	assert.Equal(t, 10, b.Len())
}

func TestEvictionIsFIFO(t *testing.T) {
	b := NewFrameBuffer(3*time.Second, time.Second)
	pushN(b, 1, 100)

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []uint64{98, 99, 100}, seqs(b.Snapshot(3*time.Second)))
}

func TestExtendedCaptureReturnsExactSpan(t *testing.T) {
	b := NewFrameBuffer(3*time.Second, time.Second)
	pushN(b, 1, 3)

	b.BeginExtendedCapture()
	// Push far past the normal capacity; eviction must stay suspended.
	pushN(b, 4, 50)
	captured := b.EndExtendedCapture()

	require.Len(t, captured, 47)
	assert.EqualValues(t, 4, captured[0].Seq)
	assert.EqualValues(t, 50, captured[46].Seq)
	for i := 1; i < len(captured); i++ {
		assert.Equal(t, captured[i-1].Seq+1, captured[i].Seq)
	}
}

func TestExtendedCaptureRestoresEviction(t *testing.T) {
	b := NewFrameBuffer(3*time.Second, time.Second)
	b.BeginExtendedCapture()
	pushN(b, 1, 10)
	b.EndExtendedCapture()

	// Capacity is back to the retention window immediately after the capture.
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []uint64{8, 9, 10}, seqs(b.Snapshot(3*time.Second)))

	// And normal FIFO behaviour resumes for subsequent pushes.
	pushN(b, 11, 12)
	assert.Equal(t, []uint64{10, 11, 12}, seqs(b.Snapshot(3*time.Second)))
}

func TestExtendedCaptureEmptySpan(t *testing.T) {
	b := NewFrameBuffer(3*time.Second, time.Second)
	pushN(b, 1, 2)

	b.BeginExtendedCapture()
	captured := b.EndExtendedCapture()
	assert.Empty(t, captured)
	assert.Equal(t, 2, b.Len())
}

func TestEndExtendedCaptureWithoutBegin(t *testing.T) {
	b := NewFrameBuffer(3*time.Second, time.Second)
	pushN(b, 1, 2)
	assert.Nil(t, b.EndExtendedCapture())
	assert.Equal(t, 2, b.Len())
}

func TestReleaseDropsFrames(t *testing.T) {
	b := NewFrameBuffer(3*time.Second, time.Second)
	pushN(b, 1, 3)
	b.Release()
	assert.Zero(t, b.Len())
	assert.Nil(t, b.Snapshot(3*time.Second))
}

func TestConcurrentPushAndSnapshot(t *testing.T) {
	b := NewFrameBuffer(30*time.Second, 20*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for seq := uint64(1); seq <= 5000; seq++ {
			b.Push(makeFrame(seq))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			got := b.Snapshot(30 * time.Second)
			// Whatever slice we observe must be strictly ordered with no
			// duplicates.
			for j := 1; j < len(got); j++ {
				assert.Equal(t, got[j-1].Seq+1, got[j].Seq)
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, 1500, b.Len(), "retention window is 1500 frames at 20ms")
}

func TestCaptureBoundaryIncludesPriorPushes(t *testing.T) {
	// A frame pushed before EndExtendedCapture is always part of the span.
	b := NewFrameBuffer(30*time.Second, 20*time.Millisecond)
	b.BeginExtendedCapture()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pushN(b, 1, 1000)
	}()
	wg.Wait()

	captured := b.EndExtendedCapture()
	require.Len(t, captured, 1000)
	assert.EqualValues(t, 1, captured[0].Seq)
	assert.EqualValues(t, 1000, captured[999].Seq)
}
