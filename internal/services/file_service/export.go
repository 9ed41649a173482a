package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"design_vault/internal/api/dto"
	"design_vault/internal/domain/models"
	"design_vault/internal/lib/apperr"
	"design_vault/internal/lib/logger/sl"
	"design_vault/internal/storage"

	"github.com/klauspost/compress/zip"
)

// PrepareExport выбирает файлы для архива. Выполняется до записи ответа,
// чтобы ошибки можно было вернуть обычным статусом.
func (s *FileService) PrepareExport(ctx context.Context, req dto.ExportRequest) ([]models.DatabaseFile, error) {
	const op = "file_service.PrepareExport"

	log := s.log.With(
		slog.String("op", op),
		slog.Int("ids", len(req.IDs)),
		slog.Int("tags", len(req.Tags)),
	)

	var (
		files []models.DatabaseFile
		err   error
	)

	switch {
	case len(req.IDs) > 0:
		files, err = s.repo.FindByIDs(ctx, req.IDs)
	case len(req.Tags) > 0:
		tags := models.SanitizeTags(req.Tags)
		if len(tags) == 0 {
			return nil, apperr.Validation(op, map[string]string{"tags": "no valid tags given"})
		}
		files, err = s.repo.FindByTags(ctx, tags, false)
	default:
		return nil, apperr.Validation(op, map[string]string{"body": "ids or tags are required"})
	}
	if err != nil {
		log.Error("failed to select files for export", sl.Err(err))
		return nil, apperr.E(apperr.KindDatabase, op, err)
	}

	if len(files) == 0 {
		return nil, apperr.E(apperr.KindNotFound, op, errors.New("no files match the export request"))
	}

	return files, nil
}

// WriteArchive пишет zip с содержимым файлов. Отсутствующие в хранилище
// объекты пропускаются.
func (s *FileService) WriteArchive(ctx context.Context, w io.Writer, files []models.DatabaseFile) error {
	const op = "file_service.WriteArchive"

	log := s.log.With(slog.String("op", op))

	zw := zip.NewWriter(w)
	names := newArchiveNames()
	written := 0

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := s.addToArchive(ctx, zw, names.next(f), f); err != nil {
			if errors.Is(err, storage.ErrFileNotFound) {
				log.Warn("object missing, skipped", slog.String("file_id", f.ID.String()))
				continue
			}
			_ = zw.Close()
			return apperr.E(apperr.KindStorage, op, err)
		}
		written++
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("archive written", slog.Int("files", written), slog.Int("requested", len(files)))

	return nil
}

func (s *FileService) addToArchive(ctx context.Context, zw *zip.Writer, name string, f models.DatabaseFile) error {
	src, err := s.fileStorage.Open(ctx, f.StorageKey)
	if err != nil {
		return err
	}
	defer src.Close()

	// растровые форматы и видео уже сжаты, deflate имеет смысл только для svg
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: f.CreatedAt,
	}
	if strings.HasSuffix(name, ".svg") {
		header.Method = zip.Deflate
	}

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, src)
	return err
}

type archiveNames struct {
	used map[string]int
}

func newArchiveNames() *archiveNames {
	return &archiveNames{used: make(map[string]int)}
}

// next возвращает "title.ext", затем "title (2).ext" и так далее
func (n *archiveNames) next(f models.DatabaseFile) string {
	ext := strings.ToLower(filepath.Ext(f.StorageKey))
	base := archiveSafe(f.Title)
	if base == "" {
		base = "untitled"
	}

	name := base + ext
	for {
		key := strings.ToLower(name)
		count := n.used[key]
		n.used[key] = count + 1
		if count == 0 {
			return name
		}
		name = fmt.Sprintf("%s (%d)%s", base, count+1, ext)
	}
}

func archiveSafe(title string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, title))
}
