package services_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"design_vault/internal/api/dto"
	"design_vault/internal/domain/models"
	"design_vault/internal/lib/apperr"
	"design_vault/internal/lib/logger/handlers/slogdiscard"
	services "design_vault/internal/services/file_service"
	"design_vault/internal/storage"
	filestorage "design_vault/internal/storage/filestorage"
	"design_vault/internal/transcode"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type MockFileRepository struct {
	mock.Mock
}

func (m *MockFileRepository) CreateFile(ctx context.Context, file *models.DatabaseFile) (*models.DatabaseFile, error) {
	args := m.Called(ctx, file)
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Error(1)
	case func(context.Context, *models.DatabaseFile) *models.DatabaseFile:
		return v(ctx, file), args.Error(1)
	default:
		return v.(*models.DatabaseFile), args.Error(1)
	}
}

func (m *MockFileRepository) UpdateFile(ctx context.Context, id uuid.UUID, update models.FileUpdate) (*models.DatabaseFile, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DatabaseFile), args.Error(1)
}

func (m *MockFileRepository) DeleteFile(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFileRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.DatabaseFile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DatabaseFile), args.Error(1)
}

func (m *MockFileRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.DatabaseFile, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]models.DatabaseFile), args.Error(1)
}

func (m *MockFileRepository) FindByTags(ctx context.Context, tags []string, matchAll bool) ([]models.DatabaseFile, error) {
	args := m.Called(ctx, tags, matchAll)
	return args.Get(0).([]models.DatabaseFile), args.Error(1)
}

func (m *MockFileRepository) ListFiles(ctx context.Context, page, perPage int, sortBy models.SortBy, order models.SortOrder) ([]models.DatabaseFile, int, error) {
	args := m.Called(ctx, page, perPage, sortBy, order)
	return args.Get(0).([]models.DatabaseFile), args.Int(1), args.Error(2)
}

func (m *MockFileRepository) ListAllFiles(ctx context.Context, limit int) ([]models.DatabaseFile, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.DatabaseFile), args.Error(1)
}

func (m *MockFileRepository) AllTags(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockFileRepository) NoTagCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockTagCache struct {
	mock.Mock
}

func (m *MockTagCache) GetAllTags(ctx context.Context) ([]string, bool, error) {
	args := m.Called(ctx)
	tags, _ := args.Get(0).([]string)
	return tags, args.Bool(1), args.Error(2)
}

func (m *MockTagCache) SetAllTags(ctx context.Context, tags []string) error {
	return m.Called(ctx, tags).Error(0)
}

func (m *MockTagCache) GetNoTagCount(ctx context.Context) (int, bool, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockTagCache) SetNoTagCount(ctx context.Context, count int) error {
	return m.Called(ctx, count).Error(0)
}

func (m *MockTagCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) Save(ctx context.Context, key string, src io.Reader) (int64, error) {
	args := m.Called(ctx, key, src)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockFileStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockFileStorage) PublicURL(key string) string {
	return m.Called(key).String(0)
}

func (m *MockFileStorage) GetFullPath(key string) string {
	return m.Called(key).String(0)
}

func (m *MockFileStorage) BaseURL() string {
	return m.Called().String(0)
}

func (m *MockFileStorage) GetBaseDir() string {
	return m.Called().String(0)
}

type recordingTranscoder struct {
	calls int
	out   transcode.Media
}

func (r *recordingTranscoder) Transcode(_ context.Context, in transcode.Media, progress transcode.ProgressFunc) (transcode.Media, error) {
	r.calls++
	progress(1)
	return r.out, nil
}

func createTestFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)

	_, err = part.Write(content)
	require.NoError(t, err)

	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	file, header, err := req.FormFile("file")
	require.NoError(t, err)
	file.Close()

	return header
}

func newLocalStorage(t *testing.T) *filestorage.LocalFileStorage {
	t.Helper()

	fs, err := filestorage.NewLocalFileStorage(t.TempDir(), "http://localhost:8080/uploads")
	require.NoError(t, err)
	return fs
}

var keyRe = regexp.MustCompile(`^\d{4}/\d{2}/[0-9a-f-]{36}\.png$`)

func TestFileService_UploadFile(t *testing.T) {
	ctx := context.Background()
	log := slogdiscard.NewDiscardLogger()

	t.Run("successful upload", func(t *testing.T) {
		repo := new(MockFileRepository)
		cache := new(MockTagCache)
		fs := newLocalStorage(t)
		svc := services.NewFileService(log, repo, cache, fs, nil, services.Options{})

		var stored *models.DatabaseFile
		repo.On("CreateFile", ctx, mock.MatchedBy(func(f *models.DatabaseFile) bool {
			stored = f
			return f.FileType == models.FileTypeImage &&
				f.MimeType == "image/png" &&
				f.Title == "login-form" &&
				keyRe.MatchString(f.StorageKey) &&
				f.FilePath == "http://localhost:8080/uploads/"+f.StorageKey
		})).Return(func(_ context.Context, f *models.DatabaseFile) *models.DatabaseFile { return f }, nil).Once()
		cache.On("Invalidate", ctx).Return(nil).Once()

		created, err := svc.UploadFile(ctx, dto.FileUploadInput{
			File: createTestFile(t, "login-form.png", pngHeader),
			Tags: []string{"Login ", "FORM", "form"},
		})
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, []string{"login", "form"}, created.Tags)
		assert.Equal(t, int64(len(pngHeader)), created.FileSize)
		assert.FileExists(t, fs.GetFullPath(created.StorageKey))

		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("rejects unsupported type", func(t *testing.T) {
		repo := new(MockFileRepository)
		svc := services.NewFileService(log, repo, nil, newLocalStorage(t), nil, services.Options{})

		_, err := svc.UploadFile(ctx, dto.FileUploadInput{
			File: createTestFile(t, "notes.txt", []byte("just some text")),
		})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Contains(t, apperr.FieldsOf(err), "file")
		repo.AssertNotCalled(t, "CreateFile", mock.Anything, mock.Anything)
	})

	t.Run("rejects empty and oversized files", func(t *testing.T) {
		repo := new(MockFileRepository)
		svc := services.NewFileService(log, repo, nil, newLocalStorage(t), nil, services.Options{MaxSize: 16})

		_, err := svc.UploadFile(ctx, dto.FileUploadInput{File: createTestFile(t, "empty.png", nil)})
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		_, err = svc.UploadFile(ctx, dto.FileUploadInput{File: createTestFile(t, "big.png", pngHeader)})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Contains(t, apperr.FieldsOf(err)["file"], "exceeds")

		_, err = svc.UploadFile(ctx, dto.FileUploadInput{})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("database failure removes stored object", func(t *testing.T) {
		repo := new(MockFileRepository)
		cache := new(MockTagCache)
		fs := newLocalStorage(t)
		svc := services.NewFileService(log, repo, cache, fs, nil, services.Options{})

		repo.On("CreateFile", ctx, mock.AnythingOfType("*models.DatabaseFile")).
			Return(nil, errors.New("db error")).Once()

		_, err := svc.UploadFile(ctx, dto.FileUploadInput{File: createTestFile(t, "a.png", pngHeader)})
		assert.True(t, apperr.Is(err, apperr.KindDatabase))
		assert.ErrorContains(t, err, "db error")

		var leftovers []string
		_ = filepath.Walk(fs.GetBaseDir(), func(path string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				leftovers = append(leftovers, path)
			}
			return nil
		})
		assert.Empty(t, leftovers)
		cache.AssertNotCalled(t, "Invalidate", mock.Anything)
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := new(MockFileRepository)
		fs := new(MockFileStorage)
		svc := services.NewFileService(log, repo, nil, fs, nil, services.Options{})

		fs.On("Save", ctx, mock.Anything, mock.Anything).Return(int64(0), errors.New("disk full")).Once()

		_, err := svc.UploadFile(ctx, dto.FileUploadInput{File: createTestFile(t, "a.png", pngHeader)})
		assert.True(t, apperr.Is(err, apperr.KindStorage))
		repo.AssertNotCalled(t, "CreateFile", mock.Anything, mock.Anything)
	})

	t.Run("video is transcoded", func(t *testing.T) {
		repo := new(MockFileRepository)
		tr := &recordingTranscoder{out: transcode.Media{Filename: "clip.mp4", MimeType: "video/mp4", Data: []byte("converted")}}
		svc := services.NewFileService(log, repo, nil, newLocalStorage(t), tr, services.Options{})

		// минимальный заголовок WebM (EBML + DocType webm)
		webm := []byte("\x1a\x45\xdf\xa3\x9f\x42\x86\x81\x01\x42\xf7\x81\x01\x42\xf2\x81\x04\x42\xf3\x81\x08\x42\x82\x84webm\x42\x87\x81\x02\x42\x85\x81\x02")

		repo.On("CreateFile", ctx, mock.MatchedBy(func(f *models.DatabaseFile) bool {
			return f.FileType == models.FileTypeVideo && f.MimeType == "video/mp4" && filepath.Ext(f.StorageKey) == ".mp4"
		})).Return(func(_ context.Context, f *models.DatabaseFile) *models.DatabaseFile { return f }, nil).Once()

		created, err := svc.UploadFile(ctx, dto.FileUploadInput{File: createTestFile(t, "clip.webm", webm)})
		require.NoError(t, err)
		assert.Equal(t, 1, tr.calls)
		assert.Equal(t, int64(len("converted")), created.FileSize)
		assert.Equal(t, "clip", created.Title)
		repo.AssertExpectations(t)
	})
}

func TestFileService_UpdateFile(t *testing.T) {
	ctx := context.Background()
	log := slogdiscard.NewDiscardLogger()
	id := uuid.New()

	strPtr := func(s string) *string { return &s }
	tagsPtr := func(tags ...string) *[]string { return &tags }

	tests := []struct {
		name      string
		update    models.FileUpdate
		mockSetup func(repo *MockFileRepository, cache *MockTagCache)
		wantKind  apperr.Kind
	}{
		{
			name:     "empty title",
			update:   models.FileUpdate{Title: strPtr("   ")},
			wantKind: apperr.KindValidation,
		},
		{
			name:     "nothing to update",
			update:   models.FileUpdate{},
			wantKind: apperr.KindValidation,
		},
		{
			name:   "not found",
			update: models.FileUpdate{Title: strPtr("x")},
			mockSetup: func(repo *MockFileRepository, _ *MockTagCache) {
				repo.On("UpdateFile", ctx, id, mock.Anything).
					Return(nil, storage.ErrFileNotFound).Once()
			},
			wantKind: apperr.KindNotFound,
		},
		{
			name:   "tags are sanitized",
			update: models.FileUpdate{Tags: tagsPtr("Button ", "BUTTON", "card!")},
			mockSetup: func(repo *MockFileRepository, cache *MockTagCache) {
				repo.On("UpdateFile", ctx, id, mock.MatchedBy(func(u models.FileUpdate) bool {
					return u.Title == nil && u.Tags != nil && assert.ObjectsAreEqual([]string{"button", "card"}, *u.Tags)
				})).Return(&models.DatabaseFile{ID: id, Tags: []string{"button", "card"}}, nil).Once()
				cache.On("Invalidate", ctx).Return(nil).Once()
			},
		},
		{
			name:   "cleared tags",
			update: models.FileUpdate{Tags: tagsPtr()},
			mockSetup: func(repo *MockFileRepository, cache *MockTagCache) {
				repo.On("UpdateFile", ctx, id, mock.MatchedBy(func(u models.FileUpdate) bool {
					return u.Tags != nil && len(*u.Tags) == 0 && *u.Tags != nil
				})).Return(&models.DatabaseFile{ID: id, Tags: []string{}}, nil).Once()
				cache.On("Invalidate", ctx).Return(errors.New("redis down")).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockFileRepository)
			cache := new(MockTagCache)
			if tt.mockSetup != nil {
				tt.mockSetup(repo, cache)
			}

			svc := services.NewFileService(log, repo, cache, newLocalStorage(t), nil, services.Options{})

			updated, err := svc.UpdateFile(ctx, id, tt.update)
			if tt.wantKind != "" {
				assert.True(t, apperr.Is(err, tt.wantKind), "got %v", err)
				assert.Nil(t, updated)
			} else {
				require.NoError(t, err)
				assert.Equal(t, id, updated.ID)
			}

			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestFileService_DeleteFile(t *testing.T) {
	ctx := context.Background()
	log := slogdiscard.NewDiscardLogger()
	id := uuid.New()

	t.Run("not found", func(t *testing.T) {
		repo := new(MockFileRepository)
		repo.On("FindByID", ctx, id).Return(nil, storage.ErrFileNotFound).Once()

		svc := services.NewFileService(log, repo, nil, new(MockFileStorage), nil, services.Options{})

		err := svc.DeleteFile(ctx, id)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		repo.AssertNotCalled(t, "DeleteFile", mock.Anything, mock.Anything)
	})

	t.Run("storage failure is only logged", func(t *testing.T) {
		repo := new(MockFileRepository)
		cache := new(MockTagCache)
		fs := new(MockFileStorage)

		repo.On("FindByID", ctx, id).Return(&models.DatabaseFile{ID: id, StorageKey: "2024/01/x.png"}, nil).Once()
		repo.On("DeleteFile", ctx, id).Return(nil).Once()
		fs.On("Delete", ctx, "2024/01/x.png").Return(errors.New("permission denied")).Once()
		cache.On("Invalidate", ctx).Return(nil).Once()

		svc := services.NewFileService(log, repo, cache, fs, nil, services.Options{})

		require.NoError(t, svc.DeleteFile(ctx, id))
		repo.AssertExpectations(t)
		fs.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("database failure", func(t *testing.T) {
		repo := new(MockFileRepository)
		fs := new(MockFileStorage)

		repo.On("FindByID", ctx, id).Return(&models.DatabaseFile{ID: id, StorageKey: "k.png"}, nil).Once()
		repo.On("DeleteFile", ctx, id).Return(errors.New("conn reset")).Once()

		svc := services.NewFileService(log, repo, nil, fs, nil, services.Options{})

		err := svc.DeleteFile(ctx, id)
		assert.True(t, apperr.Is(err, apperr.KindDeleteFailed))
		fs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestFileService_ListFiles(t *testing.T) {
	ctx := context.Background()
	repo := new(MockFileRepository)
	svc := services.NewFileService(slogdiscard.NewDiscardLogger(), repo, nil, new(MockFileStorage), nil, services.Options{})

	repo.On("ListFiles", ctx, 2, 20, models.SortByDate, models.SortDesc).
		Return([]models.DatabaseFile{{ID: uuid.New()}}, 41, nil).Once()
	repo.On("ListFiles", ctx, 3, 20, models.SortByTitle, models.SortAsc).
		Return([]models.DatabaseFile{{ID: uuid.New()}}, 41, nil).Once()

	page, err := svc.ListFiles(ctx, 2, 0, "bogus", "")
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 41, page.TotalCount)

	page, err = svc.ListFiles(ctx, 3, 20, models.SortByTitle, models.SortAsc)
	require.NoError(t, err)
	assert.False(t, page.HasMore)

	repo.AssertExpectations(t)
}

func TestFileService_ListAllFiles(t *testing.T) {
	ctx := context.Background()
	repo := new(MockFileRepository)
	svc := services.NewFileService(slogdiscard.NewDiscardLogger(), repo, nil, new(MockFileStorage), nil, services.Options{FullLoadLimit: 500})

	repo.On("ListAllFiles", ctx, 500).Return([]models.DatabaseFile{}, errors.New("boom")).Once()

	_, err := svc.ListAllFiles(ctx)
	assert.True(t, apperr.Is(err, apperr.KindDatabase))
	repo.AssertExpectations(t)
}

func TestFileService_TagAggregates(t *testing.T) {
	ctx := context.Background()
	log := slogdiscard.NewDiscardLogger()

	t.Run("cache hit", func(t *testing.T) {
		repo := new(MockFileRepository)
		cache := new(MockTagCache)
		cache.On("GetAllTags", ctx).Return([]string{"a"}, true, nil).Once()
		cache.On("GetNoTagCount", ctx).Return(4, true, nil).Once()

		svc := services.NewFileService(log, repo, cache, new(MockFileStorage), nil, services.Options{})

		tags, err := svc.AllTags(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, tags)

		n, err := svc.NoTagCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		repo.AssertNotCalled(t, "AllTags", mock.Anything)
		repo.AssertNotCalled(t, "NoTagCount", mock.Anything)
	})

	t.Run("cache miss fills cache", func(t *testing.T) {
		repo := new(MockFileRepository)
		cache := new(MockTagCache)
		cache.On("GetAllTags", ctx).Return(nil, false, nil).Once()
		repo.On("AllTags", ctx).Return([]string{"a", "form"}, nil).Once()
		cache.On("SetAllTags", ctx, []string{"a", "form"}).Return(nil).Once()

		cache.On("GetNoTagCount", ctx).Return(0, false, nil).Once()
		repo.On("NoTagCount", ctx).Return(2, nil).Once()
		cache.On("SetNoTagCount", ctx, 2).Return(nil).Once()

		svc := services.NewFileService(log, repo, cache, new(MockFileStorage), nil, services.Options{})

		tags, err := svc.AllTags(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "form"}, tags)

		n, err := svc.NoTagCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache errors are ignored", func(t *testing.T) {
		repo := new(MockFileRepository)
		cache := new(MockTagCache)
		cache.On("GetNoTagCount", ctx).Return(0, false, errors.New("redis down")).Once()
		repo.On("NoTagCount", ctx).Return(2, nil).Once()
		cache.On("SetNoTagCount", ctx, 2).Return(errors.New("redis down")).Once()

		svc := services.NewFileService(log, repo, cache, new(MockFileStorage), nil, services.Options{})

		n, err := svc.NoTagCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestFileService_Export(t *testing.T) {
	ctx := context.Background()
	log := slogdiscard.NewDiscardLogger()
	fs := newLocalStorage(t)

	put := func(key, body string) {
		_, err := fs.Save(ctx, key, bytes.NewBufferString(body))
		require.NoError(t, err)
	}
	put("2024/01/a.png", "first")
	put("2024/01/b.png", "second")
	put("2024/01/c.svg", "<svg/>")

	files := []models.DatabaseFile{
		{ID: uuid.New(), Title: "Logo", StorageKey: "2024/01/a.png", FileType: models.FileTypeImage},
		{ID: uuid.New(), Title: "logo", StorageKey: "2024/01/b.png", FileType: models.FileTypeImage},
		{ID: uuid.New(), Title: "a/b", StorageKey: "2024/01/c.svg", FileType: models.FileTypeImage},
		{ID: uuid.New(), Title: "gone", StorageKey: "2024/01/missing.png", FileType: models.FileTypeImage},
	}
	ids := []uuid.UUID{files[0].ID, files[1].ID, files[2].ID, files[3].ID}

	repo := new(MockFileRepository)
	repo.On("FindByIDs", ctx, ids).Return(files, nil).Once()
	repo.On("FindByTags", ctx, []string{"nothing"}, false).Return([]models.DatabaseFile{}, nil).Once()

	svc := services.NewFileService(log, repo, nil, fs, nil, services.Options{})

	t.Run("requires selection", func(t *testing.T) {
		_, err := svc.PrepareExport(ctx, dto.ExportRequest{})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("empty selection", func(t *testing.T) {
		_, err := svc.PrepareExport(ctx, dto.ExportRequest{Tags: []string{"Nothing"}})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("archive with deduplicated names", func(t *testing.T) {
		selected, err := svc.PrepareExport(ctx, dto.ExportRequest{IDs: ids})
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, svc.WriteArchive(ctx, &buf, selected))

		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)

		contents := make(map[string]string)
		for _, f := range zr.File {
			rc, err := f.Open()
			require.NoError(t, err)
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			rc.Close()
			contents[f.Name] = string(b)
		}

		assert.Equal(t, map[string]string{
			"Logo.png":     "first",
			"logo (2).png": "second",
			"a_b.svg":      "<svg/>",
		}, contents)
	})

	repo.AssertExpectations(t)
}
