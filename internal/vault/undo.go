package vault

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"design_vault/internal/lib/apperr"
	"design_vault/internal/lib/logger/sl"
)

const DefaultUndoWindow = 5 * time.Second

const (
	undoPending int32 = iota
	undoDismissed
	undoFired
)

// UndoHandle отложенное удаление, которое можно отменить до истечения окна.
type UndoHandle struct {
	m   *Mutator
	cmd Command

	state    atomic.Int32
	resolved atomic.Bool
	timer    *time.Timer

	done chan struct{}
	err  error
}

// Undo отменяет удаление и возвращает элементы на места. После того как
// удаление ушло на сервер (или уже было отменено) возвращает false.
func (h *UndoHandle) Undo() bool {
	if !h.state.CompareAndSwap(undoPending, undoDismissed) {
		return false
	}
	h.timer.Stop()

	if h.resolved.CompareAndSwap(false, true) {
		h.m.revert(h.cmd)
	}
	h.finish(nil)

	return true
}

func (h *UndoHandle) Done() <-chan struct{} {
	return h.done
}

func (h *UndoHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

func (h *UndoHandle) fire() {
	const op = "vault.UndoHandle.fire"

	if !h.state.CompareAndSwap(undoPending, undoFired) {
		return
	}

	err := h.cmd.Confirm(h.m.ctx)
	if err != nil {
		h.m.log.Error("deferred delete failed", slog.String("op", op), sl.Err(err))
		if h.resolved.CompareAndSwap(false, true) {
			h.m.revert(h.cmd)
		}
		h.m.notify.Error(failureMessage(err))
		h.finish(err)
		return
	}

	h.resolved.Store(true)
	h.m.refreshAggregates(h.cmd)
	h.finish(nil)
}

func (h *UndoHandle) finish(err error) {
	h.err = err
	close(h.done)
	h.m.wg.Done()
}

// DispatchWithUndo применяет cmd сразу, а Confirm откладывает на window.
func (m *Mutator) DispatchWithUndo(cmd Command, window time.Duration) *UndoHandle {
	const op = "vault.Mutator.DispatchWithUndo"

	if window <= 0 {
		window = DefaultUndoWindow
	}

	h := &UndoHandle{
		m:    m,
		cmd:  cmd,
		done: make(chan struct{}),
	}

	err := m.store.Mutate(func(tx *Tx) error {
		cmd.Snapshot(tx)
		return cmd.Apply(tx)
	})
	if err != nil {
		h.state.Store(undoFired)
		h.resolved.Store(true)
		h.err = err
		close(h.done)

		if !errors.Is(err, errNoop) {
			m.log.Warn("mutation rejected", slog.String("op", op), sl.Err(err))
			m.notify.Error(apperr.UserMessage(err))
		}
		return h
	}

	m.wg.Add(1)
	h.timer = time.AfterFunc(window, h.fire)

	return h
}
