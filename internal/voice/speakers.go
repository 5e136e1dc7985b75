package voice

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// SpeakerMap tracks which Discord user owns each RTP SSRC. Mappings come from
// VoiceSpeakingUpdate events only; an SSRC with no event yet resolves to an
// empty user ID rather than a guess.
type SpeakerMap struct {
	mu     sync.RWMutex
	bySSRC map[uint32]string
	byUser map[string]uint32
}

// NewSpeakerMap creates an empty speaker map.
func NewSpeakerMap() *SpeakerMap {
	return &SpeakerMap{
		bySSRC: make(map[uint32]string),
		byUser: make(map[string]uint32),
	}
}

// Map records an exact SSRC-to-user mapping. A user who reconnects gets a new
// SSRC; the stale one is dropped so frames never carry the wrong speaker.
func (m *SpeakerMap) Map(ssrc uint32, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.byUser[userID]; ok && old != ssrc {
		delete(m.bySSRC, old)
	}
	m.bySSRC[ssrc] = userID
	m.byUser[userID] = ssrc

	logrus.WithFields(logrus.Fields{
		"ssrc":    ssrc,
		"user_id": userID,
	}).Debug("SSRC mapped to user")
}

// UserID resolves an SSRC to a user ID, or "" when no mapping exists yet.
func (m *SpeakerMap) UserID(ssrc uint32) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bySSRC[ssrc]
}

// Len returns the number of known speakers.
func (m *SpeakerMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySSRC)
}

// Reset drops all mappings; used when the connection moves channels.
func (m *SpeakerMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySSRC = make(map[uint32]string)
	m.byUser = make(map[string]uint32)
}
