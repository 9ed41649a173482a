package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"design_vault/internal/lib/apperr"

	"github.com/google/uuid"
)

type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypeGIF   FileType = "gif"
)

const (
	MaxTitleLength    = 255
	MaxMimeTypeLength = 100
)

func (t FileType) Valid() bool {
	switch t {
	case FileTypeImage, FileTypeVideo, FileTypeGIF:
		return true
	}
	return false
}

// FileTypeFromMIME определяет тип файла по MIME; неподдерживаемые типы
// возвращают false.
func FileTypeFromMIME(mimeType string) (FileType, bool) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	switch {
	case mimeType == "image/gif":
		return FileTypeGIF, true
	case strings.HasPrefix(mimeType, "image/"):
		return FileTypeImage, true
	case strings.HasPrefix(mimeType, "video/"):
		return FileTypeVideo, true
	}

	return "", false
}

// DatabaseFile запись о медиафайле в таблице files.
// FilePath содержит полный публичный URL объекта.
type DatabaseFile struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Title      string     `json:"title" db:"title"`
	FilePath   string     `json:"file_path" db:"file_path"`
	StorageKey string     `json:"-" db:"storage_key"`
	FileType   FileType   `json:"file_type" db:"file_type"`
	FileSize   int64      `json:"file_size" db:"file_size"`
	MimeType   string     `json:"mime_type,omitempty" db:"mime_type"`
	Tags       []string   `json:"tags" db:"tags"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// NewDatabaseFile создает запись с новым ID и текущим временем.
func NewDatabaseFile(title, publicURL, key string, fileType FileType, size int64, mimeType string, tags []string) *DatabaseFile {
	return &DatabaseFile{
		ID:         uuid.New(),
		Title:      title,
		FilePath:   publicURL,
		StorageKey: key,
		FileType:   fileType,
		FileSize:   size,
		MimeType:   mimeType,
		Tags:       SanitizeTags(tags),
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate проверяет корректность записи перед сохранением
func (f *DatabaseFile) Validate() error {
	fields := make(map[string]string)

	if strings.TrimSpace(f.Title) == "" {
		fields["title"] = "title is required"
	} else if utf8.RuneCountInString(f.Title) > MaxTitleLength {
		fields["title"] = fmt.Sprintf("title must be %d characters or less", MaxTitleLength)
	}
	if f.FilePath == "" {
		fields["file_path"] = "file path is required"
	}
	if f.FileSize <= 0 {
		fields["file_size"] = "file size must be positive"
	}
	if !f.FileType.Valid() {
		fields["file_type"] = fmt.Sprintf("invalid file type '%s', must be one of: %v",
			f.FileType, []FileType{FileTypeImage, FileTypeVideo, FileTypeGIF})
	}
	if len(f.MimeType) > MaxMimeTypeLength {
		fields["mime_type"] = fmt.Sprintf("mime type must be %d characters or less", MaxMimeTypeLength)
	}

	if len(fields) > 0 {
		return apperr.Validation("models.DatabaseFile.Validate", fields)
	}

	return nil
}

// ToGalleryItem нормализует запись в элемент галереи.
func (f DatabaseFile) ToGalleryItem() GalleryItem {
	tags := SanitizeTags(f.Tags)
	if tags == nil {
		tags = []string{}
	}

	return GalleryItem{
		ID:        f.ID.String(),
		URL:       f.FilePath,
		Title:     f.Title,
		Tags:      tags,
		Type:      f.FileType,
		DateAdded: f.CreatedAt,
		FileSize:  f.FileSize,
		MimeType:  f.MimeType,
	}
}

// FileUpdate частичное обновление: nil означает "не менять".
// Tags указывает на полный итоговый набор тегов, а не на разницу.
type FileUpdate struct {
	Title *string   `json:"title,omitempty"`
	Tags  *[]string `json:"tags,omitempty"`
}

func (u FileUpdate) Empty() bool {
	return u.Title == nil && u.Tags == nil
}

// GalleryItem элемент галереи на стороне клиента.
type GalleryItem struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Type      FileType  `json:"type"`
	DateAdded time.Time `json:"date_added"`
	FileSize  int64     `json:"file_size"`
	MimeType  string    `json:"mime_type,omitempty"`
}

// Clone возвращает копию с независимым срезом тегов.
func (i GalleryItem) Clone() GalleryItem {
	c := i
	c.Tags = append([]string(nil), i.Tags...)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}

func (i GalleryItem) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TitleFromFilename заголовок по умолчанию: имя файла без расширения.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.TrimSpace(title)
	if title == "" || title == "." {
		return "untitled"
	}
	return title
}
