package vault

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"design_vault/internal/domain/models"
	"design_vault/internal/lib/apperr"

	"github.com/samber/lo"
)

// NewAddTagCommand добавляет тег к текущему набору тегов элемента.
func NewAddTagCommand(gw Gateway, id, tag string) Command {
	return &tagCommand{gw: gw, id: id, tag: tag, add: true}
}

// NewRemoveTagCommand убирает тег из текущего набора тегов элемента.
func NewRemoveTagCommand(gw Gateway, id, tag string) Command {
	return &tagCommand{gw: gw, id: id, tag: tag}
}

// NewSetTagsCommand заменяет набор тегов целиком.
func NewSetTagsCommand(gw Gateway, id string, tags []string) Command {
	return &tagCommand{gw: gw, id: id, set: true, tags: tags}
}

func NewRenameCommand(gw Gateway, id, title string) Command {
	return &renameCommand{gw: gw, id: id, title: title}
}

// NewDeleteCommand удаляет один или несколько элементов. Для нескольких id
// удаления на сервере выполняются параллельно, при ошибке восстанавливаются
// только не удаленные.
func NewDeleteCommand(gw Gateway, ids ...string) Command {
	return &deleteCommand{gw: gw, ids: lo.Uniq(ids)}
}

type tagCommand struct {
	gw  Gateway
	id  string
	tag string
	add bool
	set bool

	before  models.GalleryItem
	found   bool
	tags    []string
	version uint64
}

func (c *tagCommand) Snapshot(tx *Tx) {
	c.before, c.found = tx.Get(c.id)
}

func (c *tagCommand) Apply(tx *Tx) error {
	const op = "vault.tagCommand.Apply"

	if !c.found {
		return apperr.E(apperr.KindNotFound, op, fmt.Errorf("item %s", c.id))
	}

	var next []string
	switch {
	case c.set:
		next = models.SanitizeTags(c.tags)
	default:
		tag := models.SanitizeTag(c.tag)
		if tag == "" {
			return apperr.Validation(op, map[string]string{"tag": "tag is empty after normalization"})
		}
		if c.add {
			if len(c.before.Tags) >= models.MaxTags && !c.before.HasTag(tag) {
				return apperr.Validation(op, map[string]string{"tags": fmt.Sprintf("at most %d tags", models.MaxTags)})
			}
			next = models.SanitizeTags(append(slices.Clone(c.before.Tags), tag))
		} else {
			next = lo.Without(c.before.Tags, tag)
		}
	}
	if next == nil {
		next = []string{}
	}

	if slices.Equal(next, c.before.Tags) {
		return errNoop
	}

	item := c.before.Clone()
	item.Tags = next
	c.tags = next
	c.version, _ = tx.Replace(item)

	return nil
}

// Confirm отправляет полный итоговый набор тегов.
func (c *tagCommand) Confirm(ctx context.Context) error {
	tags := slices.Clone(c.tags)
	_, err := c.gw.Update(ctx, c.id, models.FileUpdate{Tags: &tags})
	return err
}

// Revert не трогает элемент, если после этой команды его уже изменили:
// поздняя команда отправляет полный набор и перекрывает эту.
func (c *tagCommand) Revert(tx *Tx) {
	if tx.Version(c.id) != c.version {
		return
	}
	tx.Replace(c.before)
}

func (c *tagCommand) ChangesAggregates() bool { return true }

type renameCommand struct {
	gw    Gateway
	id    string
	title string

	before  models.GalleryItem
	found   bool
	version uint64
}

func (c *renameCommand) Snapshot(tx *Tx) {
	c.before, c.found = tx.Get(c.id)
}

func (c *renameCommand) Apply(tx *Tx) error {
	const op = "vault.renameCommand.Apply"

	if !c.found {
		return apperr.E(apperr.KindNotFound, op, fmt.Errorf("item %s", c.id))
	}

	c.title = strings.TrimSpace(c.title)
	switch {
	case c.title == "":
		return apperr.Validation(op, map[string]string{"title": "title is required"})
	case utf8.RuneCountInString(c.title) > models.MaxTitleLength:
		return apperr.Validation(op, map[string]string{"title": fmt.Sprintf("title must be %d characters or less", models.MaxTitleLength)})
	case c.title == c.before.Title:
		return errNoop
	}

	item := c.before.Clone()
	item.Title = c.title
	c.version, _ = tx.Replace(item)

	return nil
}

func (c *renameCommand) Confirm(ctx context.Context) error {
	title := c.title
	_, err := c.gw.Update(ctx, c.id, models.FileUpdate{Title: &title})
	return err
}

func (c *renameCommand) Revert(tx *Tx) {
	if tx.Version(c.id) != c.version {
		return
	}
	tx.Replace(c.before)
}

type deleteCommand struct {
	gw  Gateway
	ids []string

	removed []models.GalleryItem

	mu     sync.Mutex
	failed map[string]error
}

func (c *deleteCommand) Snapshot(tx *Tx) {
	c.removed = c.removed[:0]
	for _, id := range c.ids {
		if item, ok := tx.Get(id); ok {
			c.removed = append(c.removed, item)
		}
	}
}

func (c *deleteCommand) Apply(tx *Tx) error {
	const op = "vault.deleteCommand.Apply"

	if len(c.removed) == 0 {
		return apperr.E(apperr.KindNotFound, op, fmt.Errorf("items %v", c.ids))
	}

	tx.Remove(lo.Map(c.removed, func(item models.GalleryItem, _ int) string { return item.ID })...)

	return nil
}

func (c *deleteCommand) Confirm(ctx context.Context) error {
	if len(c.removed) == 1 {
		id := c.removed[0].ID
		if err := c.gw.Delete(ctx, id); err != nil {
			c.fail(id, err)
			return err
		}
		return nil
	}

	var wg sync.WaitGroup
	for _, item := range c.removed {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := c.gw.Delete(ctx, id); err != nil {
				c.fail(id, err)
			}
		}(item.ID)
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.failed) == 0 {
		return nil
	}
	return &BatchError{Total: len(c.removed), Failed: c.failed}
}

// Revert восстанавливает только элементы, удаление которых не прошло.
// До Confirm (отмена пользователем) восстанавливается все.
func (c *deleteCommand) Revert(tx *Tx) {
	c.mu.Lock()
	failed := c.failed
	c.mu.Unlock()

	if failed == nil {
		tx.Reinsert(c.removed...)
		return
	}

	tx.Reinsert(lo.Filter(c.removed, func(item models.GalleryItem, _ int) bool {
		_, ok := failed[item.ID]
		return ok
	})...)
}

func (c *deleteCommand) ChangesAggregates() bool { return true }

func (c *deleteCommand) fail(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failed == nil {
		c.failed = make(map[string]error)
	}
	c.failed[id] = err
}

// BatchError частичный отказ пакетного удаления.
type BatchError struct {
	Total  int
	Failed map[string]error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("failed to delete %d of %d items", len(e.Failed), e.Total)
}

func (e *BatchError) Message() string {
	if len(e.Failed) == 1 && e.Total == 1 {
		for _, err := range e.Failed {
			return apperr.UserMessage(err)
		}
	}
	return fmt.Sprintf("Could not delete %d of %d items", len(e.Failed), e.Total)
}

// FailedIDs id не удаленных элементов в порядке сортировки.
func (e *BatchError) FailedIDs() []string {
	ids := lo.Keys(e.Failed)
	slices.Sort(ids)
	return ids
}
