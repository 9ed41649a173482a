package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"design_vault/internal/api/dto"
	"design_vault/internal/api/response"
	"design_vault/internal/domain/models"
	"design_vault/internal/lib/apperr"
	"design_vault/internal/lib/logger/sl"
	services "design_vault/internal/services/tag_service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	_ "design_vault/docs"
)

type FileService interface {
	UploadFile(ctx context.Context, input dto.FileUploadInput) (*models.DatabaseFile, error)
	UpdateFile(ctx context.Context, id uuid.UUID, update models.FileUpdate) (*models.DatabaseFile, error)
	DeleteFile(ctx context.Context, id uuid.UUID) error
	ListFiles(ctx context.Context, page, pageSize int, sortBy models.SortBy, order models.SortOrder) (*dto.FilePage, error)
	ListAllFiles(ctx context.Context) ([]models.DatabaseFile, error)
	AllTags(ctx context.Context) ([]string, error)
	NoTagCount(ctx context.Context) (int, error)
	PrepareExport(ctx context.Context, req dto.ExportRequest) ([]models.DatabaseFile, error)
	WriteArchive(ctx context.Context, w io.Writer, files []models.DatabaseFile) error
}

type TagService interface {
	Suggest(ctx context.Context, filename, imageURL string) services.Suggestion
}

type Routers struct {
	log         *slog.Logger
	FileService FileService
	TagService  TagService
}

func NewRouter(log *slog.Logger, fileService FileService, tagService TagService) *Routers {
	return &Routers{
		log:         log,
		FileService: fileService,
		TagService:  tagService,
	}
}

func (r *Routers) fail(c echo.Context, log *slog.Logger, err error) error {
	status, body := response.FromError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
	} else {
		log.Warn("request rejected", sl.Err(err))
	}
	return c.JSON(status, body)
}

func parseFileID(c echo.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	return id, err == nil
}

// parseTags принимает JSON-массив или список через запятую
func parseTags(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, err
		}
		return tags, nil
	}

	return strings.Split(raw, ","), nil
}

// UploadFile godoc
// @Summary Загрузка файла
// @Description Загружает изображение или видео (макс. 50MB). Видео не в mp4 конвертируется, если это возможно.
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Файл для загрузки"
// @Param title formData string false "Заголовок (по умолчанию имя файла)"
// @Param tags formData string false "Теги: JSON-массив или через запятую"
// @Success 201 {object} response.Response{data=dto.FileResponse} "Загруженный файл"
// @Failure 400 {object} response.ErrorResponse "Некорректные входные данные"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/upload-file [post]
func (r *Routers) UploadFile(c echo.Context) error {
	const op = "http.routers.UploadFile"

	log := r.log.With(
		slog.String("op", op),
	)

	startTime := time.Now()

	file, err := c.FormFile("file")
	if err != nil {
		log.Warn("empty file in request", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrFileRequired)
	}

	log.Debug("got file for upload",
		slog.String("filename", file.Filename),
		slog.Int64("size", file.Size),
		slog.String("mime_type", file.Header.Get("Content-Type")),
	)

	tags, err := parseTags(c.FormValue("tags"))
	if err != nil {
		return r.fail(c, log, apperr.Validation(op, map[string]string{"tags": "tags must be a JSON array of strings"}))
	}

	input := dto.FileUploadInput{
		File:  file,
		Title: c.FormValue("title"),
		Tags:  tags,
	}

	if err := c.Validate(input); err != nil {
		resp := response.ErrInvalidRequestFormat
		resp.Details = err.Error()
		return c.JSON(http.StatusBadRequest, resp)
	}

	created, err := r.FileService.UploadFile(c.Request().Context(), input)
	if err != nil {
		return r.fail(c, log, err)
	}

	log.Info("upload successful",
		slog.String("file_id", created.ID.String()),
		slog.Int64("file_size", created.FileSize),
		slog.Duration("duration", time.Since(startTime)),
	)

	return c.JSON(http.StatusCreated, response.SuccessResponse(dto.FileResponse{File: created}))
}

// UpdateFile godoc
// @Summary Обновление файла
// @Description Меняет заголовок и/или полный набор тегов
// @Tags files
// @Accept json
// @Produce json
// @Param id path string true "UUID файла" format(uuid)
// @Param request body dto.UpdateFileRequest true "Новые значения"
// @Success 200 {object} response.Response{data=dto.FileResponse} "Обновленный файл"
// @Failure 400 {object} response.ErrorResponse "Некорректные входные данные"
// @Failure 404 {object} response.ErrorResponse "Файл не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/update-file/{id} [patch]
func (r *Routers) UpdateFile(c echo.Context) error {
	const op = "http.routers.UpdateFile"

	log := r.log.With(
		slog.String("op", op),
		slog.String("file_id", c.Param("id")),
	)

	id, ok := parseFileID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidFileID)
	}

	var req dto.UpdateFileRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("failed to bind request", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		resp := response.ErrInvalidRequestFormat
		resp.Details = err.Error()
		return c.JSON(http.StatusBadRequest, resp)
	}

	updated, err := r.FileService.UpdateFile(c.Request().Context(), id, req.ToDomain())
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.FileResponse{File: updated}))
}

// DeleteFile godoc
// @Summary Удаление файла
// @Tags files
// @Produce json
// @Param id path string true "UUID файла" format(uuid)
// @Success 200 {object} response.Response "Файл удален"
// @Failure 400 {object} response.ErrorResponse "Некорректный UUID"
// @Failure 404 {object} response.ErrorResponse "Файл не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/delete-file/{id} [delete]
func (r *Routers) DeleteFile(c echo.Context) error {
	const op = "http.routers.DeleteFile"

	log := r.log.With(
		slog.String("op", op),
		slog.String("file_id", c.Param("id")),
	)

	id, ok := parseFileID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidFileID)
	}

	if err := r.FileService.DeleteFile(c.Request().Context(), id); err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.Response{Success: true})
}

// GenerateTags godoc
// @Summary Подбор тегов
// @Description Предлагает теги через AI-сервис, при его недоступности по имени файла
// @Tags tags
// @Accept json
// @Produce json
// @Param request body dto.GenerateTagsRequest true "Файл"
// @Success 200 {object} services.Suggestion "Предложенные теги"
// @Failure 400 {object} response.ErrorResponse "Некорректные входные данные"
// @Router /api/generate-tags [post]
func (r *Routers) GenerateTags(c echo.Context) error {
	const op = "http.routers.GenerateTags"

	log := r.log.With(
		slog.String("op", op),
	)

	var req dto.GenerateTagsRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("failed to bind request", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		resp := response.ErrInvalidRequestFormat
		resp.Details = err.Error()
		return c.JSON(http.StatusBadRequest, resp)
	}

	return c.JSON(http.StatusOK, r.TagService.Suggest(c.Request().Context(), req.Filename, req.ImageURL))
}

// ListFiles godoc
// @Summary Страница файлов
// @Tags files
// @Produce json
// @Param page query int false "Номер страницы" default(1)
// @Param page_size query int false "Размер страницы" default(20)
// @Param sort_by query string false "Поле сортировки" Enums(title, date, tags, size)
// @Param sort_order query string false "Направление" Enums(asc, desc)
// @Success 200 {object} response.Response{data=dto.FilePage} "Страница"
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/files [get]
func (r *Routers) ListFiles(c echo.Context) error {
	const op = "http.routers.ListFiles"

	log := r.log.With(
		slog.String("op", op),
	)

	var q dto.ListFilesQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(q); err != nil {
		resp := response.ErrInvalidRequestFormat
		resp.Details = err.Error()
		return c.JSON(http.StatusBadRequest, resp)
	}

	page, err := r.FileService.ListFiles(
		c.Request().Context(),
		q.Page,
		q.PageSize,
		models.SortBy(q.SortBy),
		models.SortOrder(q.SortOrder),
	)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(page))
}

// ListAllFiles godoc
// @Summary Все файлы
// @Description Полная выборка для полнотекстового поиска и фильтров на клиенте
// @Tags files
// @Produce json
// @Success 200 {object} response.Response{data=dto.FilesResponse} "Файлы"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/files/all [get]
func (r *Routers) ListAllFiles(c echo.Context) error {
	const op = "http.routers.ListAllFiles"

	log := r.log.With(slog.String("op", op))

	files, err := r.FileService.ListAllFiles(c.Request().Context())
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.FilesResponse{Files: files}))
}

// AllTags godoc
// @Summary Все теги
// @Tags tags
// @Produce json
// @Success 200 {object} response.Response{data=dto.TagsResponse} "Теги по алфавиту"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/tags [get]
func (r *Routers) AllTags(c echo.Context) error {
	const op = "http.routers.AllTags"

	log := r.log.With(slog.String("op", op))

	tags, err := r.FileService.AllTags(c.Request().Context())
	if err != nil {
		return r.fail(c, log, err)
	}
	if tags == nil {
		tags = []string{}
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.TagsResponse{Tags: tags}))
}

// NoTagCount godoc
// @Summary Количество файлов без тегов
// @Tags tags
// @Produce json
// @Success 200 {object} response.Response{data=dto.CountResponse} "Количество"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/tags/no-tag-count [get]
func (r *Routers) NoTagCount(c echo.Context) error {
	const op = "http.routers.NoTagCount"

	log := r.log.With(slog.String("op", op))

	n, err := r.FileService.NoTagCount(c.Request().Context())
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.CountResponse{Count: n}))
}

// Export godoc
// @Summary Выгрузка архивом
// @Description Zip-архив с файлами по списку id или по тегам
// @Tags files
// @Accept json
// @Produce application/zip
// @Param request body dto.ExportRequest true "Выборка"
// @Success 200 {file} file "Архив"
// @Failure 400 {object} response.ErrorResponse "Пустая выборка"
// @Failure 404 {object} response.ErrorResponse "Ничего не найдено"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/export [post]
func (r *Routers) Export(c echo.Context) error {
	const op = "http.routers.Export"

	log := r.log.With(slog.String("op", op))

	var req dto.ExportRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("failed to bind request", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	files, err := r.FileService.PrepareExport(c.Request().Context(), req)
	if err != nil {
		return r.fail(c, log, err)
	}

	filename := fmt.Sprintf("design-vault-%s.zip", time.Now().UTC().Format("20060102-150405"))

	c.Response().Header().Set(echo.HeaderContentType, "application/zip")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Response().WriteHeader(http.StatusOK)

	// заголовки уже отправлены, ошибку можно только залогировать
	if err := r.FileService.WriteArchive(c.Request().Context(), c.Response(), files); err != nil {
		log.Error("archive interrupted", sl.Err(err))
	}

	return nil
}

// Health godoc
// @Summary Проверка доступности
// @Tags service
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (r *Routers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
