package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"design_vault/internal/lib/apperr"
	"design_vault/internal/lib/logger/sl"

	"github.com/bep/debounce"
)

const DefaultReturnDebounce = 300 * time.Millisecond

// Controller управляет переходами Windowed <-> Full и подгрузкой страниц.
type Controller struct {
	log      *slog.Logger
	store    *Store
	gw       Gateway
	notify   Notifier
	pageSize int

	// ctx базовый контекст для отложенного возврата в Windowed
	ctx      context.Context
	debounce func(f func())

	loading      atomic.Bool
	fullInFlight atomic.Bool
	// gen растет при каждой смене режима; ответы старых поколений отбрасываются
	gen atomic.Uint64

	// mu связывает target с применением ответов к Store
	mu sync.Mutex
	// target режим, который запросил последний Sync или LoadAll. Ответ,
	// не совпадающий с target, в Store не попадает.
	target LoadMode
}

func NewController(ctx context.Context, log *slog.Logger, store *Store, gw Gateway, notify Notifier, pageSize int, returnAfter time.Duration) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if returnAfter <= 0 {
		returnAfter = DefaultReturnDebounce
	}

	return &Controller{
		log:      log,
		store:    store,
		gw:       gw,
		notify:   notify,
		pageSize: pageSize,
		ctx:      ctx,
		debounce: debounce.New(returnAfter),
	}
}

// LoadInitial загружает первую страницу оконного режима.
func (c *Controller) LoadInitial(ctx context.Context) error {
	const op = "vault.Controller.LoadInitial"

	log := c.log.With(slog.String("op", op))

	if !c.loading.CompareAndSwap(false, true) {
		return nil
	}
	defer c.loading.Store(false)

	c.setTarget(Windowed)
	gen := c.gen.Add(1)

	page, err := c.gw.LoadPage(ctx, 1, c.pageSize)
	if err != nil {
		log.Error("failed to load first page", sl.Err(err))
		c.notify.Error(apperr.UserMessage(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !c.apply(gen, Windowed, func() { c.store.ReplaceWindow(page) }) {
		log.Debug("stale first page dropped")
	}

	return nil
}

// LoadMore подгружает следующую страницу. Возвращает false, если запроса
// не было: идет загрузка, страниц больше нет или Store в режиме Full.
func (c *Controller) LoadMore(ctx context.Context) (bool, error) {
	const op = "vault.Controller.LoadMore"

	st := c.store.State()
	if st.Mode == Full || !st.HasMore {
		return false, nil
	}
	if !c.loading.CompareAndSwap(false, true) {
		return false, nil
	}
	defer c.loading.Store(false)

	log := c.log.With(
		slog.String("op", op),
		slog.Int("page", st.Page+1),
	)

	page, err := c.gw.LoadPage(ctx, st.Page+1, c.pageSize)
	if err != nil {
		log.Error("failed to load page", sl.Err(err))
		c.notify.Error(apperr.UserMessage(err))
		return true, fmt.Errorf("%s: %w", op, err)
	}

	if !c.store.AppendPage(st.Page+1, page) {
		log.Debug("page dropped, window changed while loading")
	}

	return true, nil
}

// LoadAll переключает Store в режим Full. Повторный вызов во время
// загрузки отбрасывается и возвращает false.
func (c *Controller) LoadAll(ctx context.Context) (bool, error) {
	const op = "vault.Controller.LoadAll"

	log := c.log.With(slog.String("op", op))

	if !c.fullInFlight.CompareAndSwap(false, true) {
		log.Debug("full load already in flight")
		return false, nil
	}
	defer c.fullInFlight.Store(false)

	c.setTarget(Full)
	gen := c.gen.Add(1)

	items, err := c.gw.LoadAll(ctx)
	if err != nil {
		log.Error("failed to load all items", sl.Err(err))
		c.notify.Error(apperr.UserMessage(err))
		return true, fmt.Errorf("%s: %w", op, err)
	}

	if !c.apply(gen, Full, func() { c.store.ReplaceFull(items) }) {
		log.Debug("stale full load dropped")
		return true, nil
	}

	log.Debug("switched to full mode", slog.Int("items", len(items)))

	return true, nil
}

// Sync приводит режим загрузки к условиям отображения. needFull требует
// полной коллекции; canReturn разрешает вернуться к окну.
func (c *Controller) Sync(ctx context.Context, needFull, canReturn bool) error {
	switch {
	case needFull:
		c.CancelReturn()
		// уходящий в окно возврат увидит target=Full и не применится
		if c.setTarget(Full) == Full {
			return nil
		}
		_, err := c.LoadAll(ctx)
		return err
	case canReturn:
		// незавершенный LoadAll больше не нужен: его ответ будет отброшен
		if c.setTarget(Windowed) == Full {
			c.debounce(func() {
				_ = c.returnToWindow(c.ctx)
			})
			return nil
		}
		c.CancelReturn()
	default:
		c.CancelReturn()
	}

	return nil
}

// setTarget запоминает желаемый режим и возвращает текущий режим Store.
func (c *Controller) setTarget(mode LoadMode) LoadMode {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.target = mode
	return c.store.Mode()
}

// apply выполняет fn, только если ответ своего поколения и режим
// по-прежнему нужен.
func (c *Controller) apply(gen uint64, mode LoadMode, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen.Load() != gen || c.target != mode {
		return false
	}
	fn()
	return true
}

func (c *Controller) wants(mode LoadMode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.target == mode
}

// CancelReturn отменяет отложенный возврат в Windowed.
func (c *Controller) CancelReturn() {
	c.debounce(func() {})
}

func (c *Controller) returnToWindow(ctx context.Context) error {
	const op = "vault.Controller.returnToWindow"

	if c.store.Mode() != Full || !c.wants(Windowed) {
		return nil
	}

	log := c.log.With(slog.String("op", op))

	if !c.loading.CompareAndSwap(false, true) {
		return nil
	}
	defer c.loading.Store(false)

	gen := c.gen.Add(1)

	page, err := c.gw.LoadPage(ctx, 1, c.pageSize)
	if err != nil {
		log.Error("failed to return to windowed mode", sl.Err(err))
		c.notify.Error(apperr.UserMessage(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !c.apply(gen, Windowed, func() { c.store.ReplaceWindow(page) }) {
		log.Debug("stale window dropped")
		return nil
	}

	log.Debug("switched to windowed mode")

	return nil
}
