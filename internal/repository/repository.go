package repository

import (
	"context"
	"fmt"
	"time"

	redisapp "design_vault/internal/storage/redis"

	"github.com/jackc/pgx/v4/pgxpool"
)

type Repository struct {
	db       *pgxpool.Pool
	Files    FileRepository
	TagCache TagCacheRepository
}

func NewRepository(ctx context.Context, dsn string, redis *redisapp.Client, tagsTTL time.Duration) (*Repository, error) {
	db, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return NewRepositoryWithPool(db, redis, tagsTTL), nil
}

// NewRepositoryWithPool без redis кэш агрегатов тегов отключен (TagCache == nil)
func NewRepositoryWithPool(db *pgxpool.Pool, redis *redisapp.Client, tagsTTL time.Duration) *Repository {
	repo := &Repository{
		db:    db,
		Files: NewFileRepository(db),
	}
	if redis != nil {
		repo.TagCache = NewRedisTagCacheRepo(redis, tagsTTL)
	}
	return repo
}

func (r *Repository) Pool() *pgxpool.Pool {
	return r.db
}

func (r *Repository) Close() {
	r.db.Close()
}
