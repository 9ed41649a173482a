package vault

import (
	"sync"

	"design_vault/internal/domain/models"

	"github.com/samber/lo"
)

type LoadMode int

const (
	Windowed LoadMode = iota
	Full
)

func (m LoadMode) String() string {
	if m == Full {
		return "full"
	}
	return "windowed"
}

// StoreState снимок служебного состояния окна.
type StoreState struct {
	Mode       LoadMode
	Page       int
	TotalCount int
	HasMore    bool
	Len        int
}

// Store локальная копия элементов галереи в порядке отображения сервера.
// Выделение всегда подмножество id, присутствующих в Store.
type Store struct {
	mu sync.RWMutex

	items    []models.GalleryItem
	versions map[string]uint64
	selected map[string]struct{}

	mode       LoadMode
	page       int
	totalCount int
	hasMore    bool
}

func NewStore() *Store {
	return &Store{
		versions: make(map[string]uint64),
		selected: make(map[string]struct{}),
		mode:     Windowed,
		hasMore:  true,
	}
}

func (s *Store) State() StoreState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StoreState{
		Mode:       s.mode,
		Page:       s.page,
		TotalCount: s.totalCount,
		HasMore:    s.hasMore,
		Len:        len(s.items),
	}
}

func (s *Store) Mode() LoadMode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.mode
}

// Items возвращает независимую копию элементов.
func (s *Store) Items() []models.GalleryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneItems(s.items)
}

func (s *Store) Get(id string) (models.GalleryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.GalleryItem{}, false
	}
	return s.items[i].Clone(), true
}

// ReplaceWindow заменяет содержимое первой страницей оконного режима.
func (s *Store) ReplaceWindow(p Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = dedupe(cloneItems(p.Items))
	s.mode = Windowed
	s.page = 1
	s.totalCount = p.TotalCount
	s.hasMore = p.HasMore
	s.pruneSelection()
}

// ReplaceFull заменяет содержимое полной коллекцией.
func (s *Store) ReplaceFull(items []models.GalleryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = dedupe(cloneItems(items))
	s.mode = Full
	s.page = 0
	s.totalCount = len(s.items)
	s.hasMore = false
	s.pruneSelection()
}

// AppendPage добавляет следующую страницу. Страница, пришедшая не по
// порядку или после перехода в Full, отбрасывается.
func (s *Store) AppendPage(page int, p Page) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != Windowed || page != s.page+1 {
		return false
	}

	for _, item := range p.Items {
		if s.indexOf(item.ID) >= 0 {
			continue
		}
		s.items = append(s.items, item.Clone())
	}

	s.page = page
	s.totalCount = p.TotalCount
	s.hasMore = p.HasMore

	return true
}

// InsertHead помещает только что загруженный элемент в начало. Если элемент
// уже есть, он заменяется на месте.
func (s *Store) InsertHead(item models.GalleryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(item.ID); i >= 0 {
		s.items[i] = item.Clone()
		s.versions[item.ID]++
		return
	}

	s.items = append([]models.GalleryItem{item.Clone()}, s.items...)
	s.totalCount++
}

func (s *Store) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

func (s *Store) Deselect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.selected, id)
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.selected)
}

// Selected id выделенных элементов в порядке Store.
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.selected))
	for _, item := range s.items {
		if _, ok := s.selected[item.ID]; ok {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// Mutate выполняет fn под блокировкой записи.
func (s *Store) Mutate(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(&Tx{s: s})
}

func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) pruneSelection() {
	for id := range s.selected {
		if s.indexOf(id) < 0 {
			delete(s.selected, id)
		}
	}
}

// Tx доступ к Store внутри Mutate. Не сохраняйте Tx после возврата из fn.
type Tx struct {
	s *Store
}

func (tx *Tx) Get(id string) (models.GalleryItem, bool) {
	i := tx.s.indexOf(id)
	if i < 0 {
		return models.GalleryItem{}, false
	}
	return tx.s.items[i].Clone(), true
}

// Version счетчик локальных изменений элемента.
func (tx *Tx) Version(id string) uint64 {
	return tx.s.versions[id]
}

// Replace заменяет элемент на месте и возвращает новую версию.
// Отсутствующий элемент не добавляется.
func (tx *Tx) Replace(item models.GalleryItem) (uint64, bool) {
	i := tx.s.indexOf(item.ID)
	if i < 0 {
		return 0, false
	}
	tx.s.items[i] = item.Clone()
	tx.s.versions[item.ID]++
	return tx.s.versions[item.ID], true
}

// Remove удаляет элементы и возвращает удаленные, снимая с них выделение.
func (tx *Tx) Remove(ids ...string) []models.GalleryItem {
	drop := lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} })

	removed := make([]models.GalleryItem, 0, len(ids))
	kept := tx.s.items[:0]
	for _, item := range tx.s.items {
		if _, ok := drop[item.ID]; ok {
			removed = append(removed, item)
			delete(tx.s.selected, item.ID)
			continue
		}
		kept = append(kept, item)
	}
	clear(tx.s.items[len(kept):])
	tx.s.items = kept
	tx.s.totalCount = max(0, tx.s.totalCount-len(removed))

	return removed
}

// Reinsert возвращает элементы на места по убыванию DateAdded. Уже
// присутствующие элементы пропускаются, поэтому повторный вызов безопасен.
func (tx *Tx) Reinsert(items ...models.GalleryItem) int {
	n := 0
	for _, item := range items {
		if tx.s.indexOf(item.ID) >= 0 {
			continue
		}

		pos := len(tx.s.items)
		for i, cur := range tx.s.items {
			if cur.DateAdded.Before(item.DateAdded) {
				pos = i
				break
			}
		}

		tx.s.items = append(tx.s.items, models.GalleryItem{})
		copy(tx.s.items[pos+1:], tx.s.items[pos:])
		tx.s.items[pos] = item.Clone()
		tx.s.versions[item.ID]++
		n++
	}
	tx.s.totalCount += n

	return n
}

func cloneItems(items []models.GalleryItem) []models.GalleryItem {
	out := make([]models.GalleryItem, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

func dedupe(items []models.GalleryItem) []models.GalleryItem {
	return lo.UniqBy(items, func(item models.GalleryItem) string { return item.ID })
}
