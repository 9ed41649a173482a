package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"design_vault/internal/domain/models"
	"design_vault/internal/storage"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lib/pq"
)

const (
	filesTable      = "files"
	defaultPageSize = 20
	maxPageSize     = 100
)

var fileColumns = []string{
	"id",
	"title",
	"file_path",
	"storage_key",
	"file_type",
	"file_size",
	"mime_type",
	"tags",
	"created_at",
	"updated_at",
}

type FileRepo struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewFileRepository(db *pgxpool.Pool) *FileRepo {
	return &FileRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row scanner) (models.DatabaseFile, error) {
	var f models.DatabaseFile
	err := row.Scan(
		&f.ID,
		&f.Title,
		&f.FilePath,
		&f.StorageKey,
		&f.FileType,
		&f.FileSize,
		&f.MimeType,
		&f.Tags,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if f.Tags == nil {
		f.Tags = []string{}
	}
	return f, err
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func (r *FileRepo) CreateFile(ctx context.Context, file *models.DatabaseFile) (*models.DatabaseFile, error) {
	const op = "repository.file_repository.CreateFile"

	query, args, err := r.sb.Insert(filesTable).
		Columns(
			"id",
			"title",
			"file_path",
			"storage_key",
			"file_type",
			"file_size",
			"mime_type",
			"tags",
			"created_at",
		).
		Values(
			file.ID,
			file.Title,
			file.FilePath,
			file.StorageKey,
			file.FileType,
			file.FileSize,
			file.MimeType,
			nonNilTags(file.Tags),
			file.CreatedAt,
		).
		Suffix("RETURNING " + strings.Join(fileColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	created, err := scanFile(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create file: %w", op, err)
	}

	return &created, nil
}

// UpdateFile частично обновляет запись и возвращает итоговое состояние
func (r *FileRepo) UpdateFile(ctx context.Context, id uuid.UUID, update models.FileUpdate) (*models.DatabaseFile, error) {
	const op = "repository.file_repository.UpdateFile"

	if update.Empty() {
		return r.FindByID(ctx, id)
	}

	builder := r.sb.Update(filesTable).
		Set("updated_at", sq.Expr("NOW()"))

	if update.Title != nil {
		builder = builder.Set("title", *update.Title)
	}
	if update.Tags != nil {
		builder = builder.Set("tags", nonNilTags(*update.Tags))
	}

	query, args, err := builder.
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(fileColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	updated, err := scanFile(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrFileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &updated, nil
}

func (r *FileRepo) DeleteFile(ctx context.Context, id uuid.UUID) error {
	const op = "repository.file_repository.DeleteFile"

	query, args, err := r.sb.Delete(filesTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrFileNotFound)
	}

	return nil
}

func (r *FileRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DatabaseFile, error) {
	const op = "repository.file_repository.FindByID"

	query, args, err := r.sb.Select(fileColumns...).
		From(filesTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	file, err := scanFile(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrFileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &file, nil
}

func (r *FileRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.DatabaseFile, error) {
	const op = "repository.file_repository.FindByIDs"

	if len(ids) == 0 {
		return []models.DatabaseFile{}, nil
	}

	query, args, err := r.sb.Select(fileColumns...).
		From(filesTable).
		Where(sq.Eq{"id": ids}).
		OrderBy("created_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	return r.queryFiles(ctx, op, query, args)
}

// FindByTags возвращает файлы, отфильтрованные по тегам
func (r *FileRepo) FindByTags(ctx context.Context, tags []string, matchAll bool) ([]models.DatabaseFile, error) {
	const op = "repository.file_repository.FindByTags"

	builder := r.sb.Select(fileColumns...).From(filesTable)

	if len(tags) > 0 {
		if matchAll {
			// AND-условие: файл должен содержать ВСЕ указанные теги
			builder = builder.Where("tags @> ?", pq.Array(tags))
		} else {
			// OR-условие: файл должен содержать ЛЮБОЙ из указанных тегов
			builder = builder.Where("tags && ?", pq.Array(tags))
		}
	}

	query, args, err := builder.OrderBy("created_at DESC", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return r.queryFiles(ctx, op, query, args)
}

func (r *FileRepo) ListFiles(
	ctx context.Context,
	page int,
	perPage int,
	sortBy models.SortBy,
	order models.SortOrder,
) ([]models.DatabaseFile, int, error) {
	const op = "repository.file_repository.ListFiles"

	// Проверка и корректировка параметров пагинации
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPageSize {
		perPage = defaultPageSize
	}

	totalCount, err := r.count(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	query, args, err := r.sb.Select(fileColumns...).
		From(filesTable).
		OrderBy(orderClause(sortBy, order)...).
		Limit(uint64(perPage)).
		Offset(uint64((page - 1) * perPage)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	files, err := r.queryFiles(ctx, op, query, args)
	if err != nil {
		return nil, 0, err
	}

	return files, totalCount, nil
}

func (r *FileRepo) ListAllFiles(ctx context.Context, limit int) ([]models.DatabaseFile, error) {
	const op = "repository.file_repository.ListAllFiles"

	builder := r.sb.Select(fileColumns...).
		From(filesTable).
		OrderBy("created_at DESC", "id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return r.queryFiles(ctx, op, query, args)
}

// AllTags объединение тегов всех файлов, без повторов, по алфавиту
func (r *FileRepo) AllTags(ctx context.Context) ([]string, error) {
	const op = "repository.file_repository.AllTags"

	query, args, err := r.sb.Select("DISTINCT unnest(tags) AS tag").
		From(filesTable).
		OrderBy("tag").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("%s: row scanning failed: %w", op, err)
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration error: %w", op, err)
	}

	return tags, nil
}

func (r *FileRepo) NoTagCount(ctx context.Context) (int, error) {
	const op = "repository.file_repository.NoTagCount"

	count, err := r.count(ctx, sq.Expr("cardinality(tags) = 0"))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func (r *FileRepo) count(ctx context.Context, where sq.Sqlizer) (int, error) {
	builder := r.sb.Select("COUNT(*)").From(filesTable)
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("error build query: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("error execute query: %w (SQL: %s)", err, query)
	}

	return count, nil
}

func (r *FileRepo) queryFiles(ctx context.Context, op, query string, args []interface{}) ([]models.DatabaseFile, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()

	files := []models.DatabaseFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: row scanning failed: %w", op, err)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration error: %w", op, err)
	}

	return files, nil
}

func orderClause(sortBy models.SortBy, order models.SortOrder) []string {
	dir := "DESC"
	if order == models.SortAsc {
		dir = "ASC"
	}

	var column string
	switch sortBy {
	case models.SortByTitle:
		column = "title"
	case models.SortByTags:
		column = "cardinality(tags)"
	case models.SortBySize:
		column = "file_size"
	default:
		column = "created_at"
	}

	return []string{column + " " + dir, "id " + dir}
}
