package vault

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"strings"

	"design_vault/internal/domain/models"

	"github.com/samber/lo"
)

type ProjectionInput struct {
	Items         []models.GalleryItem
	Query         string
	Filters       models.FilterState
	Mode          models.GalleryMode
	NewlyUploaded map[string]struct{}
	Seed          uint64
	AllTags       []string
}

type Projection struct {
	// DisplayItems после режима галереи, то что видит пользователь
	DisplayItems []models.GalleryItem
	// FilteredItems после фильтров и сортировки
	FilteredItems []models.GalleryItem
	// AvailableTags глобальный набор тегов, не зависит от видимых элементов
	AvailableTags []string
}

// Project чистая функция: вход не изменяется.
func Project(in ProjectionInput) Projection {
	filtered := FilterItems(in.Items, in.Query, in.Filters)
	filtered = SortItems(filtered, in.Filters.SortBy, in.Filters.SortOrder)

	var display []models.GalleryItem
	switch in.Mode {
	case models.GalleryRandom:
		display = Shuffle(filtered, in.Seed)
	case models.GalleryNoTag:
		display = lo.Filter(filtered, func(item models.GalleryItem, _ int) bool {
			return len(item.Tags) == 0
		})
	default:
		display = newlyUploadedFirst(filtered, in.NewlyUploaded)
	}

	tags := slices.Clone(in.AllTags)
	if tags == nil {
		tags = []string{}
	}

	return Projection{
		DisplayItems:  display,
		FilteredItems: filtered,
		AvailableTags: tags,
	}
}

// FilterItems применяет текстовый фильтр, фильтр по типу и по тегам.
// При пустых критериях возвращает элементы без изменений.
func FilterItems(items []models.GalleryItem, query string, f models.FilterState) []models.GalleryItem {
	out := slices.Clone(items)

	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		out = lo.Filter(out, func(item models.GalleryItem, _ int) bool {
			return matchesQuery(item, q)
		})
	}

	if len(f.FileTypes) > 0 {
		out = lo.Filter(out, func(item models.GalleryItem, _ int) bool {
			return lo.Contains(f.FileTypes, item.Type)
		})
	}

	if len(f.SelectedTags) > 0 {
		noTags := lo.Contains(f.SelectedTags, models.NoTagsSentinel)
		tags := lo.Without(f.SelectedTags, models.NoTagsSentinel)

		out = lo.Filter(out, func(item models.GalleryItem, _ int) bool {
			if noTags && len(item.Tags) == 0 {
				return true
			}
			return len(tags) > 0 && lo.Some(item.Tags, tags)
		})
	}

	return out
}

func matchesQuery(item models.GalleryItem, q string) bool {
	if strings.Contains(strings.ToLower(item.Title), q) {
		return true
	}
	return lo.ContainsBy(item.Tags, func(tag string) bool {
		return strings.Contains(strings.ToLower(tag), q)
	})
}

// SortItems стабильная сортировка копии; пустой by не меняет порядок.
func SortItems(items []models.GalleryItem, by models.SortBy, order models.SortOrder) []models.GalleryItem {
	out := slices.Clone(items)

	var less func(a, b models.GalleryItem) int
	switch by {
	case models.SortByTitle:
		less = func(a, b models.GalleryItem) int { return strings.Compare(a.Title, b.Title) }
	case models.SortByDate:
		less = func(a, b models.GalleryItem) int { return a.DateAdded.Compare(b.DateAdded) }
	case models.SortByTags:
		less = func(a, b models.GalleryItem) int { return cmp.Compare(len(a.Tags), len(b.Tags)) }
	case models.SortBySize:
		less = func(a, b models.GalleryItem) int { return cmp.Compare(a.FileSize, b.FileSize) }
	default:
		return out
	}

	slices.SortStableFunc(out, func(a, b models.GalleryItem) int {
		if order == models.SortDesc {
			return less(b, a)
		}
		return less(a, b)
	})

	return out
}

// Shuffle перемешивание Фишера-Йетса на генераторе PCG с заданным seed.
// Одинаковый seed дает одинаковый порядок.
func Shuffle(items []models.GalleryItem, seed uint64) []models.GalleryItem {
	out := slices.Clone(items)

	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := len(out) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return out
}

// newlyUploadedFirst стабильно поднимает только что загруженные элементы наверх.
func newlyUploadedFirst(items []models.GalleryItem, newly map[string]struct{}) []models.GalleryItem {
	if len(newly) == 0 {
		return slices.Clone(items)
	}

	fresh, rest := lo.FilterReject(items, func(item models.GalleryItem, _ int) bool {
		_, ok := newly[item.ID]
		return ok
	})

	return append(fresh, rest...)
}
