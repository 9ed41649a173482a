package models

// NoTagsSentinel маркер в selectedTags, означающий "файлы без тегов".
const NoTagsSentinel = "__no_tags__"

type SortBy string

const (
	SortByTitle SortBy = "title"
	SortByDate  SortBy = "date"
	SortByTags  SortBy = "tags"
	SortBySize  SortBy = "size"
)

func (s SortBy) Valid() bool {
	switch s {
	case SortByTitle, SortByDate, SortByTags, SortBySize:
		return true
	}
	return false
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// FilterState заменяется целиком при каждом изменении в UI.
type FilterState struct {
	FileTypes    []FileType `json:"file_types"`
	SelectedTags []string   `json:"selected_tags"`
	SortBy       SortBy     `json:"sort_by"`
	SortOrder    SortOrder  `json:"sort_order"`
}

func DefaultFilterState() FilterState {
	return FilterState{SortBy: SortByDate, SortOrder: SortDesc}
}

// Active сообщает, включен ли фильтр по типу или тегам.
func (f FilterState) Active() bool {
	return len(f.FileTypes) > 0 || len(f.SelectedTags) > 0
}

type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

type GalleryMode string

const (
	GalleryRecent GalleryMode = "recent"
	GalleryRandom GalleryMode = "random"
	GalleryNoTag  GalleryMode = "no-tag"
)

func (m GalleryMode) Valid() bool {
	switch m {
	case GalleryRecent, GalleryRandom, GalleryNoTag:
		return true
	}
	return false
}
