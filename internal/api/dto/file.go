package dto

import (
	"mime/multipart"

	"design_vault/internal/domain/models"

	"github.com/google/uuid"
)

// FileUploadInput данные multipart-формы /api/upload-file
type FileUploadInput struct {
	File  *multipart.FileHeader `json:"-" form:"file" validate:"required"`
	Title string                `json:"title" form:"title" validate:"omitempty,max=255"`
	Tags  []string              `json:"tags" form:"tags"`
}

// UpdateFileRequest nil-поля не изменяются; tags это итоговый набор.
type UpdateFileRequest struct {
	Title *string   `json:"title,omitempty" validate:"omitempty,max=255"`
	Tags  *[]string `json:"tags,omitempty"`
}

func (r UpdateFileRequest) ToDomain() models.FileUpdate {
	return models.FileUpdate{Title: r.Title, Tags: r.Tags}
}

type GenerateTagsRequest struct {
	Filename string `json:"filename" validate:"required,max=255"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

// ExportRequest выбирает файлы для архива по id или по тегам (любой из тегов).
type ExportRequest struct {
	IDs  []uuid.UUID `json:"ids,omitempty"`
	Tags []string    `json:"tags,omitempty"`
}

type ListFilesQuery struct {
	Page      int    `query:"page" validate:"omitempty,min=1"`
	PageSize  int    `query:"page_size" validate:"omitempty,min=1,max=100"`
	SortBy    string `query:"sort_by" validate:"omitempty,oneof=title date tags size"`
	SortOrder string `query:"sort_order" validate:"omitempty,oneof=asc desc"`
}

type FilePage struct {
	Files      []models.DatabaseFile `json:"files"`
	TotalCount int                   `json:"total_count"`
	HasMore    bool                  `json:"has_more"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
}

type FileResponse struct {
	File *models.DatabaseFile `json:"file"`
}

type FilesResponse struct {
	Files []models.DatabaseFile `json:"files"`
}

type TagsResponse struct {
	Tags []string `json:"tags"`
}

type CountResponse struct {
	Count int `json:"count"`
}
