package repository

import (
	"context"

	"design_vault/internal/domain/models"

	"github.com/google/uuid"
)

type FileRepository interface {
	CreateFile(ctx context.Context, file *models.DatabaseFile) (*models.DatabaseFile, error)
	UpdateFile(ctx context.Context, id uuid.UUID, update models.FileUpdate) (*models.DatabaseFile, error)
	DeleteFile(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DatabaseFile, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.DatabaseFile, error)
	FindByTags(ctx context.Context, tags []string, matchAll bool) ([]models.DatabaseFile, error)
	ListFiles(ctx context.Context, page, perPage int, sortBy models.SortBy, order models.SortOrder) ([]models.DatabaseFile, int, error)
	ListAllFiles(ctx context.Context, limit int) ([]models.DatabaseFile, error)
	AllTags(ctx context.Context) ([]string, error)
	NoTagCount(ctx context.Context) (int, error)
}

// TagCacheRepository кэш агрегатов по тегам. found=false означает промах.
type TagCacheRepository interface {
	GetAllTags(ctx context.Context) (tags []string, found bool, err error)
	SetAllTags(ctx context.Context, tags []string) error
	GetNoTagCount(ctx context.Context) (count int, found bool, err error)
	SetNoTagCount(ctx context.Context, count int) error
	Invalidate(ctx context.Context) error
}
