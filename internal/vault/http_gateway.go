package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"design_vault/internal/api/dto"
	"design_vault/internal/api/response"
	"design_vault/internal/domain/models"
	"design_vault/internal/lib/apperr"

	"github.com/samber/lo"
)

const DefaultPageSize = 20

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// HTTPGateway клиент REST API сервера галереи.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway baseURL без завершающего слеша, например http://localhost:8080
func NewHTTPGateway(baseURL string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (g *HTTPGateway) LoadPage(ctx context.Context, page, pageSize int) (Page, error) {
	const op = "vault.HTTPGateway.LoadPage"

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var out envelope[dto.FilePage]
	if err := g.do(ctx, op, http.MethodGet, "/api/files?"+q.Encode(), nil, "", &out); err != nil {
		return Page{}, err
	}

	return Page{
		Items:      toItems(out.Data.Files),
		TotalCount: out.Data.TotalCount,
		HasMore:    out.Data.HasMore,
	}, nil
}

func (g *HTTPGateway) LoadAll(ctx context.Context) ([]models.GalleryItem, error) {
	const op = "vault.HTTPGateway.LoadAll"

	var out envelope[dto.FilesResponse]
	if err := g.do(ctx, op, http.MethodGet, "/api/files/all", nil, "", &out); err != nil {
		return nil, err
	}

	return toItems(out.Data.Files), nil
}

func (g *HTTPGateway) Update(ctx context.Context, id string, update models.FileUpdate) (models.GalleryItem, error) {
	const op = "vault.HTTPGateway.Update"

	body, err := json.Marshal(dto.UpdateFileRequest{Title: update.Title, Tags: update.Tags})
	if err != nil {
		return models.GalleryItem{}, apperr.E(apperr.KindInternal, op, err)
	}

	var out envelope[dto.FileResponse]
	if err := g.do(ctx, op, http.MethodPatch, "/api/update-file/"+url.PathEscape(id), bytes.NewReader(body), "application/json", &out); err != nil {
		return models.GalleryItem{}, err
	}
	if out.Data.File == nil {
		return models.GalleryItem{}, apperr.E(apperr.KindInternal, op, errors.New("empty response"))
	}

	return out.Data.File.ToGalleryItem(), nil
}

func (g *HTTPGateway) Delete(ctx context.Context, id string) error {
	const op = "vault.HTTPGateway.Delete"

	return g.do(ctx, op, http.MethodDelete, "/api/delete-file/"+url.PathEscape(id), nil, "", nil)
}

func (g *HTTPGateway) AllTags(ctx context.Context) ([]string, error) {
	const op = "vault.HTTPGateway.AllTags"

	var out envelope[dto.TagsResponse]
	if err := g.do(ctx, op, http.MethodGet, "/api/tags", nil, "", &out); err != nil {
		return nil, err
	}
	if out.Data.Tags == nil {
		return []string{}, nil
	}

	return out.Data.Tags, nil
}

func (g *HTTPGateway) NoTagCount(ctx context.Context) (int, error) {
	const op = "vault.HTTPGateway.NoTagCount"

	var out envelope[dto.CountResponse]
	if err := g.do(ctx, op, http.MethodGet, "/api/tags/no-tag-count", nil, "", &out); err != nil {
		return 0, err
	}

	return out.Data.Count, nil
}

func (g *HTTPGateway) Upload(ctx context.Context, req UploadRequest) (models.GalleryItem, error) {
	const op = "vault.HTTPGateway.Upload"

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", req.Filename)
	if err != nil {
		return models.GalleryItem{}, apperr.E(apperr.KindUploadFailed, op, err)
	}
	if _, err := io.Copy(part, req.Content); err != nil {
		return models.GalleryItem{}, apperr.E(apperr.KindUploadFailed, op, err)
	}
	if req.Title != "" {
		_ = w.WriteField("title", req.Title)
	}
	if len(req.Tags) > 0 {
		tags, _ := json.Marshal(req.Tags)
		_ = w.WriteField("tags", string(tags))
	}
	if err := w.Close(); err != nil {
		return models.GalleryItem{}, apperr.E(apperr.KindUploadFailed, op, err)
	}

	var out envelope[dto.FileResponse]
	if err := g.do(ctx, op, http.MethodPost, "/api/upload-file", &buf, w.FormDataContentType(), &out); err != nil {
		return models.GalleryItem{}, err
	}
	if out.Data.File == nil {
		return models.GalleryItem{}, apperr.E(apperr.KindUploadFailed, op, errors.New("empty response"))
	}

	return out.Data.File.ToGalleryItem(), nil
}

func (g *HTTPGateway) SuggestTags(ctx context.Context, filename, imageURL string) (Suggestion, error) {
	const op = "vault.HTTPGateway.SuggestTags"

	body, err := json.Marshal(dto.GenerateTagsRequest{Filename: filename, ImageURL: imageURL})
	if err != nil {
		return Suggestion{}, apperr.E(apperr.KindInternal, op, err)
	}

	// ответ без конверта {success, data}
	var out struct {
		Tags     []string `json:"tags"`
		Fallback bool     `json:"fallback"`
	}
	if err := g.do(ctx, op, http.MethodPost, "/api/generate-tags", bytes.NewReader(body), "application/json", &out); err != nil {
		return Suggestion{}, err
	}

	return Suggestion{Tags: models.SanitizeTags(out.Tags), Fallback: out.Fallback}, nil
}

func (g *HTTPGateway) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return apperr.E(apperr.KindInternal, op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return apperr.E(apperr.KindInternal, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.E(apperr.KindInternal, op, fmt.Errorf("decode response: %w", err))
	}

	return nil
}

// decodeError переводит конверт ошибки сервера в apperr. Класс берется из
// поля error, а если оно не из таксономии, то из HTTP статуса.
func decodeError(op string, resp *http.Response) error {
	var body response.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	kind := kindForStatus(resp.StatusCode)
	if k := apperr.Kind(body.Error); knownKind(k) {
		kind = k
	}

	details := body.Details
	if details == "" {
		details = resp.Status
	}

	return &apperr.Error{
		Kind:   kind,
		Op:     op,
		Err:    errors.New(details),
		Fields: body.Fields,
	}
}

func kindForStatus(status int) apperr.Kind {
	switch {
	case status == http.StatusNotFound:
		return apperr.KindNotFound
	case status >= 400 && status < 500:
		return apperr.KindValidation
	default:
		return apperr.KindInternal
	}
}

func knownKind(k apperr.Kind) bool {
	return lo.Contains([]apperr.Kind{
		apperr.KindValidation,
		apperr.KindNotFound,
		apperr.KindDatabase,
		apperr.KindStorage,
		apperr.KindUploadFailed,
		apperr.KindDeleteFailed,
		apperr.KindTagGeneration,
		apperr.KindInternal,
	}, k)
}

func toItems(files []models.DatabaseFile) []models.GalleryItem {
	return lo.Map(files, func(f models.DatabaseFile, _ int) models.GalleryItem {
		return f.ToGalleryItem()
	})
}
