package tagstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the tag tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS audio_tags (
    guild_id   TEXT NOT NULL,
    name       TEXT NOT NULL,
    audio_url  TEXT NOT NULL,
    owner_id   TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (guild_id, name)
);
CREATE TABLE IF NOT EXISTS guild_audio_settings (
    guild_id  TEXT PRIMARY KEY,
    tag_limit INTEGER NOT NULL DEFAULT 20
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over the given connection or pool. The
// caller is responsible for calling [PostgresStore.Migrate] before issuing
// queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the tables if they do not
// already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("tagstore: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, tag *Tag) error {
	const query = `
		INSERT INTO audio_tags (guild_id, name, audio_url, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query,
		tag.GuildID, strings.ToLower(tag.Name), tag.AudioURL, tag.OwnerID,
	).Scan(&tag.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrTagExists
		}
		return fmt.Errorf("tagstore: create: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, guildID, name string) (*Tag, error) {
	const query = `
		SELECT guild_id, name, audio_url, owner_id, created_at
		FROM audio_tags
		WHERE guild_id = $1 AND name = $2`

	var tag Tag
	err := s.db.QueryRow(ctx, query, guildID, strings.ToLower(name)).Scan(
		&tag.GuildID, &tag.Name, &tag.AudioURL, &tag.OwnerID, &tag.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("tagstore: get %q: %w", name, err)
	}
	return &tag, nil
}

func (s *PostgresStore) Delete(ctx context.Context, guildID, name string) error {
	const query = `DELETE FROM audio_tags WHERE guild_id = $1 AND name = $2`

	tag, err := s.db.Exec(ctx, query, guildID, strings.ToLower(name))
	if err != nil {
		return fmt.Errorf("tagstore: delete %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTagNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, guildID string) ([]Tag, error) {
	const query = `
		SELECT guild_id, name, audio_url, owner_id, created_at
		FROM audio_tags
		WHERE guild_id = $1
		ORDER BY name`

	rows, err := s.db.Query(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("tagstore: list: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.GuildID, &tag.Name, &tag.AudioURL, &tag.OwnerID, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("tagstore: list scan: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tagstore: list: %w", err)
	}
	return tags, nil
}

func (s *PostgresStore) Count(ctx context.Context, guildID string) (int, error) {
	const query = `SELECT count(*) FROM audio_tags WHERE guild_id = $1`

	var n int
	if err := s.db.QueryRow(ctx, query, guildID).Scan(&n); err != nil {
		return 0, fmt.Errorf("tagstore: count: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) TagLimit(ctx context.Context, guildID string) (int, error) {
	const query = `SELECT tag_limit FROM guild_audio_settings WHERE guild_id = $1`

	var limit int
	err := s.db.QueryRow(ctx, query, guildID).Scan(&limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultTagLimit, nil
		}
		return 0, fmt.Errorf("tagstore: tag limit: %w", err)
	}
	return limit, nil
}

func (s *PostgresStore) SetTagLimit(ctx context.Context, guildID string, limit int) error {
	const query = `
		INSERT INTO guild_audio_settings (guild_id, tag_limit)
		VALUES ($1, $2)
		ON CONFLICT (guild_id) DO UPDATE SET tag_limit = EXCLUDED.tag_limit`

	if _, err := s.db.Exec(ctx, query, guildID, limit); err != nil {
		return fmt.Errorf("tagstore: set tag limit: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
