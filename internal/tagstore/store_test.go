package tagstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, &Tag{
		GuildID:  "guild-1",
		Name:     "Airhorn",
		AudioURL: "https://cdn.example.com/airhorn.mp3",
		OwnerID:  "user-1",
	}))

	// Lookup is case-insensitive; the stored name is lowercased.
	tag, err := s.Get(ctx, "guild-1", "AIRHORN")
	require.NoError(t, err)
	assert.Equal(t, "airhorn", tag.Name)
	assert.Equal(t, "https://cdn.example.com/airhorn.mp3", tag.AudioURL)
	assert.Equal(t, "user-1", tag.OwnerID)
	assert.False(t, tag.CreatedAt.IsZero())
}

func TestMemoryStoreDuplicateName(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, &Tag{GuildID: "guild-1", Name: "horn", AudioURL: "u1"}))
	err := s.Create(ctx, &Tag{GuildID: "guild-1", Name: "HORN", AudioURL: "u2"})
	assert.ErrorIs(t, err, ErrTagExists)

	// The same name in another guild is independent.
	assert.NoError(t, s.Create(ctx, &Tag{GuildID: "guild-2", Name: "horn", AudioURL: "u3"}))
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "guild-1", "nope")
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, &Tag{GuildID: "guild-1", Name: "horn", AudioURL: "u"}))
	require.NoError(t, s.Delete(ctx, "guild-1", "horn"))

	_, err := s.Get(ctx, "guild-1", "horn")
	assert.ErrorIs(t, err, ErrTagNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "guild-1", "horn"), ErrTagNotFound)
}

func TestMemoryStoreListSorted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, name := range []string{"zulu", "alpha", "mike"} {
		require.NoError(t, s.Create(ctx, &Tag{GuildID: "guild-1", Name: name, AudioURL: "u"}))
	}

	tags, err := s.List(ctx, "guild-1")
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "alpha", tags[0].Name)
	assert.Equal(t, "mike", tags[1].Name)
	assert.Equal(t, "zulu", tags[2].Name)

	n, err := s.Count(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMemoryStoreTagLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	limit, err := s.TagLimit(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultTagLimit, limit)

	require.NoError(t, s.SetTagLimit(ctx, "guild-1", 50))
	limit, err = s.TagLimit(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, 50, limit)

	// Other guilds keep the default.
	limit, err = s.TagLimit(ctx, "guild-2")
	require.NoError(t, err)
	assert.Equal(t, DefaultTagLimit, limit)
}
