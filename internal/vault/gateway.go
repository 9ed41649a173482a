// Package vault координирует состояние галереи на стороне клиента:
// окно загруженных элементов, оптимистичные изменения с откатом и
// производное представление для отображения.
package vault

import (
	"context"
	"io"

	"design_vault/internal/domain/models"
)

type Page struct {
	Items      []models.GalleryItem
	TotalCount int
	HasMore    bool
}

type UploadRequest struct {
	Filename string
	Content  io.Reader
	Title    string
	Tags     []string
}

type Suggestion struct {
	Tags     []string
	Fallback bool
}

// Gateway удаленное хранилище элементов. Реализации не кэшируют ответы.
type Gateway interface {
	LoadPage(ctx context.Context, page, pageSize int) (Page, error)
	LoadAll(ctx context.Context) ([]models.GalleryItem, error)
	Update(ctx context.Context, id string, update models.FileUpdate) (models.GalleryItem, error)
	Delete(ctx context.Context, id string) error
	AllTags(ctx context.Context) ([]string, error)
	NoTagCount(ctx context.Context) (int, error)
	Upload(ctx context.Context, req UploadRequest) (models.GalleryItem, error)
	SuggestTags(ctx context.Context, filename, imageURL string) (Suggestion, error)
}
