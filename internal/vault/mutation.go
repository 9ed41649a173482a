package vault

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"design_vault/internal/lib/apperr"
	"design_vault/internal/lib/logger/sl"
)

// errNoop Apply не изменил Store, подтверждать нечего.
var errNoop = errors.New("nothing to change")

// Command оптимистичное изменение: Snapshot и Apply выполняются синхронно
// под блокировкой Store, Confirm асинхронно, Revert при ошибке Confirm.
type Command interface {
	Snapshot(tx *Tx)
	Apply(tx *Tx) error
	Confirm(ctx context.Context) error
	Revert(tx *Tx)
}

// aggregateChanger команды, после которых нужно обновить агрегаты тегов.
type aggregateChanger interface {
	ChangesAggregates() bool
}

// Pending результат асинхронного подтверждения.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err ошибка подтверждения; имеет смысл после закрытия Done.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait блокирует до завершения или отмены ctx.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Mutator struct {
	log    *slog.Logger
	store  *Store
	notify Notifier
	ctx    context.Context
	wg     sync.WaitGroup

	onAggregates func(ctx context.Context)
}

// NewMutator ctx используется для всех подтверждений; onAggregates может быть nil.
func NewMutator(ctx context.Context, log *slog.Logger, store *Store, notify Notifier, onAggregates func(ctx context.Context)) *Mutator {
	return &Mutator{
		log:          log,
		store:        store,
		notify:       notify,
		ctx:          ctx,
		onAggregates: onAggregates,
	}
}

func (m *Mutator) Dispatch(cmd Command) *Pending {
	const op = "vault.Mutator.Dispatch"

	p := newPending()

	err := m.store.Mutate(func(tx *Tx) error {
		cmd.Snapshot(tx)
		return cmd.Apply(tx)
	})
	switch {
	case errors.Is(err, errNoop):
		p.finish(nil)
		return p
	case err != nil:
		m.log.Warn("mutation rejected", slog.String("op", op), sl.Err(err))
		m.notify.Error(apperr.UserMessage(err))
		p.finish(err)
		return p
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		p.finish(m.confirm(cmd))
	}()

	return p
}

// Wait ждет все подтверждения, включая отложенные удаления с отменой.
func (m *Mutator) Wait() {
	m.wg.Wait()
}

func (m *Mutator) confirm(cmd Command) error {
	const op = "vault.Mutator.confirm"

	err := cmd.Confirm(m.ctx)
	if err != nil {
		m.log.Error("mutation failed, reverting", slog.String("op", op), sl.Err(err))
		m.revert(cmd)
		m.notify.Error(failureMessage(err))
		return err
	}

	m.refreshAggregates(cmd)

	return nil
}

func (m *Mutator) revert(cmd Command) {
	_ = m.store.Mutate(func(tx *Tx) error {
		cmd.Revert(tx)
		return nil
	})
}

func (m *Mutator) refreshAggregates(cmd Command) {
	if m.onAggregates == nil {
		return
	}
	if c, ok := cmd.(aggregateChanger); ok && c.ChangesAggregates() {
		m.onAggregates(m.ctx)
	}
}

func failureMessage(err error) string {
	var batch *BatchError
	if errors.As(err, &batch) {
		return batch.Message()
	}
	return apperr.UserMessage(err)
}
