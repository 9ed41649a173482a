package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"design_vault/internal/api/dto"
	"design_vault/internal/domain/models"
	"design_vault/internal/lib/apperr"
	"design_vault/internal/lib/logger/sl"
	"design_vault/internal/metrics"
	"design_vault/internal/repository"
	"design_vault/internal/storage"
	filestorage "design_vault/internal/storage/filestorage"
	"design_vault/internal/transcode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	DefaultMaxSize       = 50 << 20
	DefaultFullLoadLimit = 10000
)

type Options struct {
	MaxSize       int64
	FullLoadLimit int
}

type FileService struct {
	log         *slog.Logger
	repo        repository.FileRepository
	cache       repository.TagCacheRepository
	fileStorage filestorage.FileStorage
	transcoder  transcode.Transcoder
	opts        Options
	now         func() time.Time
}

// NewFileService cache и transcoder могут быть nil.
func NewFileService(
	log *slog.Logger,
	repo repository.FileRepository,
	cache repository.TagCacheRepository,
	fileStorage filestorage.FileStorage,
	transcoder transcode.Transcoder,
	opts Options,
) *FileService {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.FullLoadLimit <= 0 {
		opts.FullLoadLimit = DefaultFullLoadLimit
	}

	return &FileService{
		log:         log,
		repo:        repo,
		cache:       cache,
		fileStorage: fileStorage,
		transcoder:  transcoder,
		opts:        opts,
		now:         time.Now,
	}
}

func (s *FileService) UploadFile(ctx context.Context, input dto.FileUploadInput) (*models.DatabaseFile, error) {
	const op = "file_service.UploadFile"

	if input.File == nil {
		return nil, apperr.Validation(op, map[string]string{"file": "file is required"})
	}

	log := s.log.With(
		slog.String("op", op),
		slog.String("filename", input.File.Filename),
	)

	log.Info("upload file")

	data, err := s.readUpload(input)
	if err != nil {
		log.Warn("failed to read upload", sl.Err(err))
		return nil, err
	}

	mime := mimetype.Detect(data)
	fileType, ok := models.FileTypeFromMIME(mime.String())
	if !ok {
		log.Warn("unsupported file type", slog.String("mime_type", mime.String()))
		return nil, apperr.Validation(op, map[string]string{
			"file": fmt.Sprintf("unsupported file type %s, only images and videos are allowed", mime.String()),
		})
	}

	media := transcode.Media{
		Filename: input.File.Filename,
		MimeType: baseMIME(mime.String()),
		Data:     data,
	}

	if fileType == models.FileTypeVideo && s.transcoder != nil && transcode.NeedsConversion(media.MimeType) {
		// Fallback-обертка уже возвращает исходник при ошибке
		converted, err := s.transcoder.Transcode(ctx, media, func(ratio float64) {
			log.Debug("transcoding", slog.Float64("progress", ratio))
		})
		if err == nil {
			media = converted
		} else {
			log.Warn("transcoding failed, keeping original", sl.Err(err))
		}
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = models.TitleFromFilename(input.File.Filename)
	}

	key := s.storageKey(media)

	size, err := s.fileStorage.Save(ctx, key, bytes.NewReader(media.Data))
	if err != nil {
		log.Error("failed to save file", sl.Err(err))
		return nil, apperr.E(apperr.KindStorage, op, err)
	}

	file := models.NewDatabaseFile(
		title,
		s.fileStorage.PublicURL(key),
		key,
		fileType,
		size,
		media.MimeType,
		input.Tags,
	)

	if err := file.Validate(); err != nil {
		s.removeObject(ctx, log, key)
		log.Warn("file validation failed", sl.Err(err))
		return nil, err
	}

	created, err := s.repo.CreateFile(ctx, file)
	if err != nil {
		// Удаляем файл если не удалось сохранить в БД
		s.removeObject(ctx, log, key)
		log.Error("failed to save file to database", sl.Err(err))
		return nil, apperr.E(apperr.KindDatabase, op, err)
	}

	s.invalidate(ctx, log)
	metrics.UploadedBytes.WithLabelValues(string(created.FileType)).Add(float64(created.FileSize))

	log.Info("file uploaded",
		slog.String("file_id", created.ID.String()),
		slog.Int64("file_size", created.FileSize),
	)

	return created, nil
}

func (s *FileService) readUpload(input dto.FileUploadInput) ([]byte, error) {
	const op = "file_service.readUpload"

	if input.File.Size > s.opts.MaxSize {
		return nil, apperr.Validation(op, map[string]string{"file": tooLargeMessage(s.opts.MaxSize)})
	}

	src, err := input.File.Open()
	if err != nil {
		return nil, apperr.E(apperr.KindUploadFailed, op, err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, s.opts.MaxSize+1))
	if err != nil {
		return nil, apperr.E(apperr.KindUploadFailed, op, err)
	}

	switch {
	case len(data) == 0:
		return nil, apperr.Validation(op, map[string]string{"file": "file is empty"})
	case int64(len(data)) > s.opts.MaxSize:
		return nil, apperr.Validation(op, map[string]string{"file": tooLargeMessage(s.opts.MaxSize)})
	}

	return data, nil
}

func tooLargeMessage(limit int64) string {
	return fmt.Sprintf("%s: maximum is %d MB", storage.ErrFileTooLarge, limit>>20)
}

// storageKey формирует ключ вида 2024/05/<uuid>.png
func (s *FileService) storageKey(media transcode.Media) string {
	ext := strings.ToLower(filepath.Ext(media.Filename))
	if ext == "" {
		if m := mimetype.Lookup(media.MimeType); m != nil {
			ext = m.Extension()
		}
	}

	return s.now().UTC().Format("2006/01") + "/" + uuid.NewString() + ext
}

func baseMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		return strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

func (s *FileService) UpdateFile(ctx context.Context, id uuid.UUID, update models.FileUpdate) (*models.DatabaseFile, error) {
	const op = "file_service.UpdateFile"

	log := s.log.With(
		slog.String("op", op),
		slog.String("file_id", id.String()),
	)

	fields := make(map[string]string)

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		switch {
		case title == "":
			fields["title"] = "title must not be empty"
		case utf8.RuneCountInString(title) > models.MaxTitleLength:
			fields["title"] = fmt.Sprintf("title must be %d characters or less", models.MaxTitleLength)
		}
		update.Title = &title
	}

	if update.Tags != nil {
		tags := models.SanitizeTags(*update.Tags)
		if tags == nil {
			tags = []string{}
		}
		update.Tags = &tags
	}

	if update.Empty() {
		fields["body"] = "nothing to update"
	}

	if len(fields) > 0 {
		return nil, apperr.Validation(op, fields)
	}

	updated, err := s.repo.UpdateFile(ctx, id, update)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			log.Warn("file not found")
			return nil, apperr.E(apperr.KindNotFound, op, err)
		}
		log.Error("failed to update file", sl.Err(err))
		return nil, apperr.E(apperr.KindDatabase, op, err)
	}

	s.invalidate(ctx, log)

	return updated, nil
}

func (s *FileService) DeleteFile(ctx context.Context, id uuid.UUID) error {
	const op = "file_service.DeleteFile"

	log := s.log.With(
		slog.String("op", op),
		slog.String("file_id", id.String()),
	)

	file, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			log.Warn("file not found")
			return apperr.E(apperr.KindNotFound, op, err)
		}
		log.Error("failed to find file", sl.Err(err))
		return apperr.E(apperr.KindDatabase, op, err)
	}

	if err := s.repo.DeleteFile(ctx, id); err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return apperr.E(apperr.KindNotFound, op, err)
		}
		log.Error("failed to delete file", sl.Err(err))
		return apperr.E(apperr.KindDeleteFailed, op, err)
	}

	// объект удаляется после записи, ошибка хранилища не отменяет удаление
	s.removeObject(ctx, log, file.StorageKey)
	s.invalidate(ctx, log)

	log.Info("file deleted")

	return nil
}

func (s *FileService) ListFiles(ctx context.Context, page, pageSize int, sortBy models.SortBy, order models.SortOrder) (*dto.FilePage, error) {
	const op = "file_service.ListFiles"

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	if !sortBy.Valid() {
		sortBy = models.SortByDate
	}
	if !order.Valid() {
		order = models.SortDesc
	}

	files, total, err := s.repo.ListFiles(ctx, page, pageSize, sortBy, order)
	if err != nil {
		s.log.Error("failed to list files", slog.String("op", op), sl.Err(err))
		return nil, apperr.E(apperr.KindDatabase, op, err)
	}

	return &dto.FilePage{
		Files:      files,
		TotalCount: total,
		HasMore:    page*pageSize < total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func (s *FileService) ListAllFiles(ctx context.Context) ([]models.DatabaseFile, error) {
	const op = "file_service.ListAllFiles"

	files, err := s.repo.ListAllFiles(ctx, s.opts.FullLoadLimit)
	if err != nil {
		s.log.Error("failed to list all files", slog.String("op", op), sl.Err(err))
		return nil, apperr.E(apperr.KindDatabase, op, err)
	}

	return files, nil
}

func (s *FileService) AllTags(ctx context.Context) ([]string, error) {
	const op = "file_service.AllTags"

	log := s.log.With(slog.String("op", op))

	if s.cache != nil {
		tags, found, err := s.cache.GetAllTags(ctx)
		if err != nil {
			log.Warn("tag cache read failed", sl.Err(err))
		} else if found {
			return tags, nil
		}
	}

	tags, err := s.repo.AllTags(ctx)
	if err != nil {
		log.Error("failed to load tags", sl.Err(err))
		return nil, apperr.E(apperr.KindDatabase, op, err)
	}

	if s.cache != nil {
		if err := s.cache.SetAllTags(ctx, tags); err != nil {
			log.Warn("tag cache write failed", sl.Err(err))
		}
	}

	return tags, nil
}

func (s *FileService) NoTagCount(ctx context.Context) (int, error) {
	const op = "file_service.NoTagCount"

	log := s.log.With(slog.String("op", op))

	if s.cache != nil {
		n, found, err := s.cache.GetNoTagCount(ctx)
		if err != nil {
			log.Warn("tag cache read failed", sl.Err(err))
		} else if found {
			return n, nil
		}
	}

	n, err := s.repo.NoTagCount(ctx)
	if err != nil {
		log.Error("failed to count untagged files", sl.Err(err))
		return 0, apperr.E(apperr.KindDatabase, op, err)
	}

	if s.cache != nil {
		if err := s.cache.SetNoTagCount(ctx, n); err != nil {
			log.Warn("tag cache write failed", sl.Err(err))
		}
	}

	return n, nil
}

func (s *FileService) removeObject(ctx context.Context, log *slog.Logger, key string) {
	if key == "" {
		return
	}
	if err := s.fileStorage.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
		log.Warn("failed to delete stored object", slog.String("key", key), sl.Err(err))
	}
}

func (s *FileService) invalidate(ctx context.Context, log *slog.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Warn("failed to invalidate tag cache", sl.Err(err))
	}
}
