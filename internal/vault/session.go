package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"design_vault/internal/domain/models"
	"design_vault/internal/lib/apperr"
	"design_vault/internal/lib/logger/sl"
)

// DroppedFile файл, брошенный пользователем в окно галереи.
type DroppedFile struct {
	Filename string
	Content  io.Reader
	Title    string
	Tags     []string
}

// SessionView все, что нужно для отрисовки галереи.
type SessionView struct {
	Projection

	Query       string
	Filters     models.FilterState
	GalleryMode models.GalleryMode
	ViewMode    models.ViewMode
	FilterOpen  bool
	Selected    []string
	LoadMode    LoadMode
	HasMore     bool
	TotalCount  int
	NoTagCount  int
}

type Option func(*Session)

func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notify = n }
}

func WithPageSize(n int) Option {
	return func(s *Session) { s.pageSize = n }
}

func WithReturnDebounce(d time.Duration) Option {
	return func(s *Session) { s.returnAfter = d }
}

func WithUndoWindow(d time.Duration) Option {
	return func(s *Session) { s.undoWindow = d }
}

// WithSeedSource источник seed для случайного режима.
func WithSeedSource(fn func() uint64) Option {
	return func(s *Session) { s.seedSource = fn }
}

// WithAutoTagging после загрузки файла без тегов запрашивает подсказку тегов.
func WithAutoTagging(enabled bool) Option {
	return func(s *Session) { s.autoTag = enabled }
}

// Session координатор галереи: владеет Store, Controller, Mutator и
// состоянием UI.
type Session struct {
	log    *slog.Logger
	gw     Gateway
	notify Notifier

	store *Store
	ctrl  *Controller
	mut   *Mutator

	pageSize    int
	returnAfter time.Duration
	undoWindow  time.Duration
	seedSource  func() uint64
	autoTag     bool

	mu         sync.RWMutex
	query      string
	filters    models.FilterState
	mode       models.GalleryMode
	viewMode   models.ViewMode
	filterOpen bool
	seed       uint64
	newly      map[string]struct{}
	allTags    []string
	noTagCount int
}

// NewSession ctx живет столько же, сколько сессия: в нем выполняются
// подтверждения изменений и отложенные загрузки.
func NewSession(ctx context.Context, log *slog.Logger, gw Gateway, opts ...Option) *Session {
	s := &Session{
		log:        log,
		gw:         gw,
		pageSize:   DefaultPageSize,
		undoWindow: DefaultUndoWindow,
		seedSource: rand.Uint64,
		filters:    models.DefaultFilterState(),
		mode:       models.GalleryRecent,
		viewMode:   models.ViewGrid,
		newly:      make(map[string]struct{}),
		allTags:    []string{},
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.notify == nil {
		s.notify = NewLogNotifier(log)
	}

	s.store = NewStore()
	s.ctrl = NewController(ctx, log, s.store, gw, s.notify, s.pageSize, s.returnAfter)
	s.mut = NewMutator(ctx, log, s.store, s.notify, s.RefreshAggregates)

	return s
}

// Start загружает первую страницу и агрегаты тегов.
func (s *Session) Start(ctx context.Context) error {
	const op = "vault.Session.Start"

	if err := s.ctrl.LoadInitial(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.RefreshAggregates(ctx)

	return nil
}

// RefreshAggregates обновляет список всех тегов и число файлов без тегов.
// Ошибки только логируются: прежние значения остаются.
func (s *Session) RefreshAggregates(ctx context.Context) {
	const op = "vault.Session.RefreshAggregates"

	log := s.log.With(slog.String("op", op))

	tags, err := s.gw.AllTags(ctx)
	if err != nil {
		log.Warn("failed to load tags", sl.Err(err))
	}
	count, cerr := s.gw.NoTagCount(ctx)
	if cerr != nil {
		log.Warn("failed to load no-tag count", sl.Err(cerr))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.allTags = tags
	}
	if cerr == nil {
		s.noTagCount = count
	}
}

func (s *Session) SetQuery(ctx context.Context, query string) error {
	s.mu.Lock()
	s.query = query
	s.mu.Unlock()

	return s.sync(ctx)
}

// SetFilters заменяет FilterState целиком.
func (s *Session) SetFilters(ctx context.Context, f models.FilterState) error {
	const op = "vault.Session.SetFilters"

	if f.SortBy != "" && !f.SortBy.Valid() {
		return apperr.Validation(op, map[string]string{"sort_by": fmt.Sprintf("unknown sort %q", f.SortBy)})
	}
	if f.SortOrder != "" && !f.SortOrder.Valid() {
		return apperr.Validation(op, map[string]string{"sort_order": fmt.Sprintf("unknown order %q", f.SortOrder)})
	}

	f.FileTypes = slices.Clone(f.FileTypes)
	f.SelectedTags = slices.Clone(f.SelectedTags)

	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()

	return s.sync(ctx)
}

// SetGalleryMode при входе в random из другого режима берется новый seed,
// повторный выбор random сохраняет порядок.
func (s *Session) SetGalleryMode(ctx context.Context, mode models.GalleryMode) error {
	const op = "vault.Session.SetGalleryMode"

	if !mode.Valid() {
		return apperr.Validation(op, map[string]string{"mode": fmt.Sprintf("unknown gallery mode %q", mode)})
	}

	s.mu.Lock()
	if mode == models.GalleryRandom && s.mode != models.GalleryRandom {
		s.seed = s.seedSource()
	}
	s.mode = mode
	s.mu.Unlock()

	return s.sync(ctx)
}

func (s *Session) SetViewMode(mode models.ViewMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewMode = mode
}

// ToggleFilterPanel возвращает новое состояние панели.
func (s *Session) ToggleFilterPanel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filterOpen = !s.filterOpen
	return s.filterOpen
}

func (s *Session) Select(id string) bool { return s.store.Select(id) }

func (s *Session) Deselect(id string) { s.store.Deselect(id) }

func (s *Session) ClearSelection() { s.store.ClearSelection() }

// LoadAll загружает всю коллекцию независимо от фильтров.
func (s *Session) LoadAll(ctx context.Context) error {
	_, err := s.ctrl.LoadAll(ctx)
	return err
}

// OnScrollThresholdReached порт бесконечной прокрутки.
func (s *Session) OnScrollThresholdReached(ctx context.Context) error {
	_, err := s.ctrl.LoadMore(ctx)
	return err
}

// OnFilesDropped загружает файлы по очереди. Успешные попадают в начало
// галереи и помечаются как только что загруженные; ошибки собираются.
func (s *Session) OnFilesDropped(ctx context.Context, files []DroppedFile) ([]models.GalleryItem, error) {
	const op = "vault.Session.OnFilesDropped"

	log := s.log.With(slog.String("op", op))

	var (
		uploaded []models.GalleryItem
		errs     []error
	)

	for _, f := range files {
		item, err := s.gw.Upload(ctx, UploadRequest{
			Filename: f.Filename,
			Content:  f.Content,
			Title:    f.Title,
			Tags:     f.Tags,
		})
		if err != nil {
			log.Error("upload failed", slog.String("filename", f.Filename), sl.Err(err))
			s.notify.Error(fmt.Sprintf("%s: %s", f.Filename, apperr.UserMessage(err)))
			errs = append(errs, fmt.Errorf("%s: %w", f.Filename, err))
			continue
		}

		s.store.InsertHead(item)

		s.mu.Lock()
		s.newly[item.ID] = struct{}{}
		s.mu.Unlock()

		uploaded = append(uploaded, item)

		if s.autoTag && len(item.Tags) == 0 {
			s.suggestTags(ctx, f.Filename, item)
		}
	}

	if len(uploaded) > 0 {
		s.notify.Info(fmt.Sprintf("Uploaded %d file(s)", len(uploaded)))
		s.RefreshAggregates(ctx)
	}

	return uploaded, errors.Join(errs...)
}

func (s *Session) suggestTags(ctx context.Context, filename string, item models.GalleryItem) {
	const op = "vault.Session.suggestTags"

	sug, err := s.gw.SuggestTags(ctx, filename, item.URL)
	if err != nil {
		s.log.Warn("tag suggestion failed", slog.String("op", op), sl.Err(err))
		return
	}
	if len(sug.Tags) == 0 {
		return
	}

	s.mut.Dispatch(NewSetTagsCommand(s.gw, item.ID, sug.Tags))
}

func (s *Session) AddTag(id, tag string) *Pending {
	return s.mut.Dispatch(NewAddTagCommand(s.gw, id, tag))
}

func (s *Session) RemoveTag(id, tag string) *Pending {
	return s.mut.Dispatch(NewRemoveTagCommand(s.gw, id, tag))
}

func (s *Session) Rename(id, title string) *Pending {
	return s.mut.Dispatch(NewRenameCommand(s.gw, id, title))
}

func (s *Session) Delete(id string) *Pending {
	return s.mut.Dispatch(NewDeleteCommand(s.gw, id))
}

func (s *Session) DeleteWithUndo(id string) *UndoHandle {
	return s.mut.DispatchWithUndo(NewDeleteCommand(s.gw, id), s.undoWindow)
}

// DeleteSelected удаляет выделенные элементы одной пакетной командой.
func (s *Session) DeleteSelected() *Pending {
	const op = "vault.Session.DeleteSelected"

	ids := s.store.Selected()
	if len(ids) == 0 {
		p := newPending()
		p.finish(apperr.Validation(op, map[string]string{"selection": "nothing selected"}))
		return p
	}
	s.store.ClearSelection()

	return s.mut.Dispatch(NewDeleteCommand(s.gw, ids...))
}

// Wait ждет подтверждения всех изменений.
func (s *Session) Wait() { s.mut.Wait() }

// Close отменяет отложенный возврат в оконный режим.
func (s *Session) Close() { s.ctrl.CancelReturn() }

func (s *Session) View() SessionView {
	st := s.store.State()
	items := s.store.Items()
	selected := s.store.Selected()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionView{
		Projection: Project(ProjectionInput{
			Items:         items,
			Query:         s.query,
			Filters:       s.filters,
			Mode:          s.mode,
			NewlyUploaded: s.newly,
			Seed:          s.seed,
			AllTags:       s.allTags,
		}),
		Query:       s.query,
		Filters:     s.filters,
		GalleryMode: s.mode,
		ViewMode:    s.viewMode,
		FilterOpen:  s.filterOpen,
		Selected:    selected,
		LoadMode:    st.Mode,
		HasMore:     st.HasMore,
		TotalCount:  st.TotalCount,
		NoTagCount:  s.noTagCount,
	}
}

func (s *Session) sync(ctx context.Context) error {
	s.mu.RLock()
	needFull := strings.TrimSpace(s.query) != "" || s.filters.Active() || s.mode == models.GalleryNoTag
	canReturn := !needFull && s.mode == models.GalleryRecent
	s.mu.RUnlock()

	return s.ctrl.Sync(ctx, needFull, canReturn)
}
