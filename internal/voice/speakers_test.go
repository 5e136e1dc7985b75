package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeakerMapExactMappings(t *testing.T) {
	m := NewSpeakerMap()

	assert.Empty(t, m.UserID(12345), "unmapped SSRC never guesses")

	m.Map(12345, "user-1")
	m.Map(67890, "user-2")

	assert.Equal(t, "user-1", m.UserID(12345))
	assert.Equal(t, "user-2", m.UserID(67890))
	assert.Equal(t, 2, m.Len())
}

func TestSpeakerMapRemapDropsStaleSSRC(t *testing.T) {
	m := NewSpeakerMap()

	m.Map(100, "user-1")
	m.Map(200, "user-1") // user reconnected with a new SSRC

	assert.Equal(t, "user-1", m.UserID(200))
	assert.Empty(t, m.UserID(100), "stale SSRC no longer resolves")
	assert.Equal(t, 1, m.Len())
}

func TestSpeakerMapReset(t *testing.T) {
	m := NewSpeakerMap()
	m.Map(100, "user-1")

	m.Reset()

	assert.Zero(t, m.Len())
	assert.Empty(t, m.UserID(100))
}
