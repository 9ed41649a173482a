package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

type Storage struct {
	db *pgxpool.Pool
}

const (
	// tables
	FilesTable = "files"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	id UUID PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	file_path TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	file_type VARCHAR(10) NOT NULL CHECK (file_type IN ('image', 'video', 'gif')),
	file_size BIGINT NOT NULL CHECK (file_size > 0),
	mime_type VARCHAR(100) NOT NULL DEFAULT '',
	tags TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS files_created_at_idx ON files (created_at DESC);
CREATE INDEX IF NOT EXISTS files_tags_idx ON files USING GIN (tags);
`

func New(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.postgresql.New"

	db, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Pool() *pgxpool.Pool {
	return s.db
}

// Migrate создает таблицы, если их еще нет
func (s *Storage) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.db)
}

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	const op = "storage.postgresql.Migrate"

	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Storage) Stop() {
	s.db.Close()
}
