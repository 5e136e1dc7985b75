// Package tagstore persists per-guild audio tags: short names bound to clip
// URLs so members can replay saved sounds by name.
package tagstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTagLimit is the number of tags a guild may hold unless an operator
// raises it.
const DefaultTagLimit = 20

var (
	// ErrTagNotFound is returned when a guild has no tag under that name.
	ErrTagNotFound = errors.New("tagstore: tag not found")
	// ErrTagExists is returned by Create when the name is already taken.
	ErrTagExists = errors.New("tagstore: tag already exists")
)

// Tag binds a name to a playable audio URL within a guild.
type Tag struct {
	GuildID   string
	Name      string
	AudioURL  string
	OwnerID   string
	CreatedAt time.Time
}

// Store is the tag persistence interface. Names are matched case-insensitively
// and stored lowercased.
type Store interface {
	Create(ctx context.Context, tag *Tag) error
	Get(ctx context.Context, guildID, name string) (*Tag, error)
	Delete(ctx context.Context, guildID, name string) error
	List(ctx context.Context, guildID string) ([]Tag, error)
	Count(ctx context.Context, guildID string) (int, error)
	TagLimit(ctx context.Context, guildID string) (int, error)
	SetTagLimit(ctx context.Context, guildID string, limit int) error
}

// MemoryStore is an in-memory Store for guilds run without a database. Tags
// do not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	tags   map[string]map[string]Tag
	limits map[string]int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tags:   make(map[string]map[string]Tag),
		limits: make(map[string]int),
	}
}

func (s *MemoryStore) Create(_ context.Context, tag *Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.ToLower(tag.Name)
	guild, ok := s.tags[tag.GuildID]
	if !ok {
		guild = make(map[string]Tag)
		s.tags[tag.GuildID] = guild
	}
	if _, ok := guild[name]; ok {
		return ErrTagExists
	}

	stored := *tag
	stored.Name = name
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	guild[name] = stored
	return nil
}

func (s *MemoryStore) Get(_ context.Context, guildID, name string) (*Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tag, ok := s.tags[guildID][strings.ToLower(name)]
	if !ok {
		return nil, ErrTagNotFound
	}
	out := tag
	return &out, nil
}

func (s *MemoryStore) Delete(_ context.Context, guildID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(name)
	if _, ok := s.tags[guildID][key]; !ok {
		return ErrTagNotFound
	}
	delete(s.tags[guildID], key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, guildID string) ([]Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Tag, 0, len(s.tags[guildID]))
	for _, tag := range s.tags[guildID] {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context, guildID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tags[guildID]), nil
}

func (s *MemoryStore) TagLimit(_ context.Context, guildID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit, ok := s.limits[guildID]; ok {
		return limit, nil
	}
	return DefaultTagLimit, nil
}

func (s *MemoryStore) SetTagLimit(_ context.Context, guildID string, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[guildID] = limit
	return nil
}
