package vault

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"design_vault/internal/domain/models"
	"design_vault/internal/lib/apperr"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/mock"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// makeItems элементы в порядке сервера: id-00 самый новый.
func makeItems(n int) []models.GalleryItem {
	items := make([]models.GalleryItem, n)
	for i := range items {
		items[i] = models.GalleryItem{
			ID:        fmt.Sprintf("id-%02d", i),
			URL:       gofakeit.URL(),
			Title:     gofakeit.Word(),
			Tags:      []string{},
			Type:      models.FileTypeImage,
			DateAdded: baseTime.Add(-time.Duration(i) * time.Hour),
			FileSize:  int64(gofakeit.Number(1, 1<<20)),
		}
	}
	return items
}

func itemIDs(items []models.GalleryItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

type recordingNotifier struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *recordingNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.errors)
}

func (n *recordingNotifier) Infos() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.infos)
}

// fakeGateway сервер в памяти с настраиваемыми задержками и сбоями.
type fakeGateway struct {
	mu         sync.Mutex
	items      []models.GalleryItem
	sentTags   map[string][][]string
	deleteErrs map[string]error
	updateErr  error
	latency    func() time.Duration
	suggestion []string
	uploads    int

	// loadAllGate если задан, LoadAll ждет закрытия канала
	loadAllGate chan struct{}
	// loadPageGate то же для LoadPage, задается через gateLoadPage
	loadPageGate chan struct{}

	loadPageCalls atomic.Int32
	loadAllCalls  atomic.Int32
	deleteCalls   atomic.Int32
}

func newFakeGateway(items []models.GalleryItem) *fakeGateway {
	return &fakeGateway{
		items:      append([]models.GalleryItem(nil), items...),
		sentTags:   make(map[string][][]string),
		deleteErrs: make(map[string]error),
	}
}

func (g *fakeGateway) sleep(ctx context.Context) {
	if g.latency == nil {
		return
	}
	select {
	case <-time.After(g.latency()):
	case <-ctx.Done():
	}
}

// gateLoadPage задерживает следующие вызовы LoadPage до закрытия канала.
func (g *fakeGateway) gateLoadPage() chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.loadPageGate = make(chan struct{})
	return g.loadPageGate
}

func (g *fakeGateway) LoadPage(ctx context.Context, page, pageSize int) (Page, error) {
	g.loadPageCalls.Add(1)

	g.mu.Lock()
	gate := g.loadPageGate
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Page{}, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	start := min((page-1)*pageSize, len(g.items))
	end := min(start+pageSize, len(g.items))

	return Page{
		Items:      cloneItems(g.items[start:end]),
		TotalCount: len(g.items),
		HasMore:    end < len(g.items),
	}, nil
}

func (g *fakeGateway) LoadAll(ctx context.Context) ([]models.GalleryItem, error) {
	g.loadAllCalls.Add(1)

	if g.loadAllGate != nil {
		select {
		case <-g.loadAllGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return cloneItems(g.items), nil
}

func (g *fakeGateway) Update(ctx context.Context, id string, update models.FileUpdate) (models.GalleryItem, error) {
	g.sleep(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.updateErr != nil {
		return models.GalleryItem{}, g.updateErr
	}

	for i := range g.items {
		if g.items[i].ID != id {
			continue
		}
		if update.Tags != nil {
			g.sentTags[id] = append(g.sentTags[id], slices.Clone(*update.Tags))
			g.items[i].Tags = slices.Clone(*update.Tags)
		}
		if update.Title != nil {
			g.items[i].Title = *update.Title
		}
		return g.items[i].Clone(), nil
	}

	return models.GalleryItem{}, apperr.E(apperr.KindNotFound, "fake.Update", fmt.Errorf("item %s", id))
}

func (g *fakeGateway) Delete(ctx context.Context, id string) error {
	g.deleteCalls.Add(1)
	g.sleep(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.deleteErrs[id]; err != nil {
		return err
	}

	for i := range g.items {
		if g.items[i].ID == id {
			g.items = slices.Delete(g.items, i, i+1)
			return nil
		}
	}

	return apperr.E(apperr.KindNotFound, "fake.Delete", fmt.Errorf("item %s", id))
}

func (g *fakeGateway) AllTags(context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set := map[string]struct{}{}
	for _, item := range g.items {
		for _, t := range item.Tags {
			set[t] = struct{}{}
		}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	return tags, nil
}

func (g *fakeGateway) NoTagCount(context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, item := range g.items {
		if len(item.Tags) == 0 {
			n++
		}
	}
	return n, nil
}

func (g *fakeGateway) Upload(_ context.Context, req UploadRequest) (models.GalleryItem, error) {
	data, err := io.ReadAll(req.Content)
	if err != nil {
		return models.GalleryItem{}, apperr.E(apperr.KindUploadFailed, "fake.Upload", err)
	}
	if len(data) == 0 {
		return models.GalleryItem{}, apperr.Validation("fake.Upload", map[string]string{"file": "file is empty"})
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.uploads++
	title := req.Title
	if title == "" {
		title = models.TitleFromFilename(req.Filename)
	}
	tags := models.SanitizeTags(req.Tags)
	if tags == nil {
		tags = []string{}
	}

	item := models.GalleryItem{
		ID:        fmt.Sprintf("up-%02d", g.uploads),
		URL:       "http://localhost/uploads/" + req.Filename,
		Title:     title,
		Tags:      tags,
		Type:      models.FileTypeImage,
		DateAdded: baseTime.Add(time.Duration(g.uploads) * time.Hour),
		FileSize:  int64(len(data)),
	}
	g.items = append([]models.GalleryItem{item}, g.items...)

	return item.Clone(), nil
}

func (g *fakeGateway) SuggestTags(context.Context, string, string) (Suggestion, error) {
	return Suggestion{Tags: g.suggestion}, nil
}

func (g *fakeGateway) SentTags(id string) [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.sentTags[id])
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) LoadPage(ctx context.Context, page, pageSize int) (Page, error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).(Page), args.Error(1)
}

func (m *MockGateway) LoadAll(ctx context.Context) ([]models.GalleryItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.GalleryItem), args.Error(1)
}

func (m *MockGateway) Update(ctx context.Context, id string, update models.FileUpdate) (models.GalleryItem, error) {
	args := m.Called(ctx, id, update)
	return args.Get(0).(models.GalleryItem), args.Error(1)
}

func (m *MockGateway) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockGateway) AllTags(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGateway) NoTagCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockGateway) Upload(ctx context.Context, req UploadRequest) (models.GalleryItem, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.GalleryItem), args.Error(1)
}

func (m *MockGateway) SuggestTags(ctx context.Context, filename, imageURL string) (Suggestion, error) {
	args := m.Called(ctx, filename, imageURL)
	return args.Get(0).(Suggestion), args.Error(1)
}
