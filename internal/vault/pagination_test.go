package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"design_vault/internal/lib/apperr"
	"design_vault/internal/lib/logger/handlers/slogdiscard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestController(gw Gateway, notify Notifier, debounce time.Duration) (*Controller, *Store) {
	store := NewStore()
	c := NewController(context.Background(), slogdiscard.NewDiscardLogger(), store, gw, notify, 2, debounce)
	return c, store
}

func TestController_LoadMoreWithoutMorePages(t *testing.T) {
	gw := new(MockGateway)
	c, store := newTestController(gw, &recordingNotifier{}, 0)

	store.ReplaceWindow(Page{Items: makeItems(2), TotalCount: 2, HasMore: false})
	before := store.Items()

	called, err := c.LoadMore(context.Background())

	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, before, store.Items())
	gw.AssertNotCalled(t, "LoadPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_LoadMoreInFullMode(t *testing.T) {
	gw := new(MockGateway)
	c, store := newTestController(gw, &recordingNotifier{}, 0)

	store.ReplaceFull(makeItems(3))

	called, err := c.LoadMore(context.Background())

	require.NoError(t, err)
	assert.False(t, called)
	gw.AssertNotCalled(t, "LoadPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_Pages(t *testing.T) {
	gw := newFakeGateway(makeItems(5))
	c, store := newTestController(gw, &recordingNotifier{}, 0)

	require.NoError(t, c.LoadInitial(context.Background()))
	assert.Equal(t, []string{"id-00", "id-01"}, itemIDs(store.Items()))

	for range 5 {
		_, err := c.LoadMore(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, itemIDs(makeItems(5)), itemIDs(store.Items()))
	assert.False(t, store.State().HasMore)
	// 1 + 2 подгрузки, дальше hasMore=false
	assert.Equal(t, int32(3), gw.loadPageCalls.Load())
}

func TestController_LoadFailureKeepsStore(t *testing.T) {
	gw := new(MockGateway)
	notify := &recordingNotifier{}
	c, store := newTestController(gw, notify, 0)

	store.ReplaceWindow(Page{Items: makeItems(2), TotalCount: 4, HasMore: true})
	before := store.Items()

	gw.On("LoadPage", mock.Anything, 2, 2).Return(Page{}, apperr.E(apperr.KindInternal, "test", errors.New("offline"))).Once()
	gw.On("LoadAll", mock.Anything).Return(nil, apperr.E(apperr.KindDatabase, "test", errors.New("down"))).Once()

	_, err := c.LoadMore(context.Background())
	require.Error(t, err)

	_, err = c.LoadAll(context.Background())
	require.Error(t, err)

	assert.Equal(t, before, store.Items())
	st := store.State()
	assert.Equal(t, Windowed, st.Mode)
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, []string{"Something went wrong", "Could not save changes, please try again"}, notify.Errors())
	gw.AssertExpectations(t)
}

func TestController_LoadAllDropsSecondTrigger(t *testing.T) {
	gw := newFakeGateway(makeItems(4))
	gw.loadAllGate = make(chan struct{})
	c, store := newTestController(gw, &recordingNotifier{}, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.LoadAll(context.Background())
	}()

	require.Eventually(t, func() bool { return gw.loadAllCalls.Load() == 1 }, time.Second, time.Millisecond)

	called, err := c.LoadAll(context.Background())
	require.NoError(t, err)
	assert.False(t, called)

	close(gw.loadAllGate)
	<-done

	assert.Equal(t, int32(1), gw.loadAllCalls.Load())
	assert.Equal(t, Full, store.Mode())
	assert.Len(t, store.Items(), 4)
}

func TestController_SyncReturnsToWindowAfterDebounce(t *testing.T) {
	gw := newFakeGateway(makeItems(5))
	c, store := newTestController(gw, &recordingNotifier{}, 20*time.Millisecond)

	require.NoError(t, c.Sync(context.Background(), true, false))
	require.Equal(t, Full, store.Mode())

	require.NoError(t, c.Sync(context.Background(), false, true))
	// до истечения окна режим не меняется
	assert.Equal(t, Full, store.Mode())

	require.Eventually(t, func() bool { return store.Mode() == Windowed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"id-00", "id-01"}, itemIDs(store.Items()))
}

func TestController_SyncReactivationCancelsReturn(t *testing.T) {
	gw := newFakeGateway(makeItems(5))
	c, store := newTestController(gw, &recordingNotifier{}, 30*time.Millisecond)

	require.NoError(t, c.Sync(context.Background(), true, false))
	require.NoError(t, c.Sync(context.Background(), false, true))
	require.NoError(t, c.Sync(context.Background(), true, false))

	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, Full, store.Mode())
	// уже в Full: повторная загрузка не нужна
	assert.Equal(t, int32(1), gw.loadAllCalls.Load())
	assert.Equal(t, int32(0), gw.loadPageCalls.Load())
}

func TestController_ReactivationDropsReturnInFlight(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(makeItems(5))
	c, store := newTestController(gw, &recordingNotifier{}, 10*time.Millisecond)

	require.NoError(t, c.Sync(ctx, true, false))
	require.Equal(t, Full, store.Mode())

	gate := gw.gateLoadPage()
	require.NoError(t, c.Sync(ctx, false, true))
	// возврат в окно уже ждет ответа сервера
	require.Eventually(t, func() bool { return gw.loadPageCalls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Sync(ctx, true, false))
	close(gate)

	require.Eventually(t, func() bool { return !c.loading.Load() }, time.Second, time.Millisecond)

	assert.Equal(t, Full, store.Mode())
	assert.Len(t, store.Items(), 5)
	assert.False(t, store.State().HasMore)
	assert.Equal(t, int32(1), gw.loadAllCalls.Load())
}

func TestController_ClearedConditionDropsFullInFlight(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(makeItems(5))
	c, store := newTestController(gw, &recordingNotifier{}, 10*time.Millisecond)

	require.NoError(t, c.LoadInitial(ctx))

	gw.loadAllGate = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- c.Sync(ctx, true, false)
	}()
	require.Eventually(t, func() bool { return gw.loadAllCalls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Sync(ctx, false, true))
	close(gw.loadAllGate)
	require.NoError(t, <-done)

	// после окна возврата ничего не должно измениться
	time.Sleep(40 * time.Millisecond)

	st := store.State()
	assert.Equal(t, Windowed, st.Mode)
	assert.True(t, st.HasMore)
	assert.Equal(t, []string{"id-00", "id-01"}, itemIDs(store.Items()))
}

func TestController_ConditionBackBeforeFullLands(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(makeItems(5))
	gw.loadAllGate = make(chan struct{})
	c, store := newTestController(gw, &recordingNotifier{}, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- c.Sync(ctx, true, false)
	}()
	require.Eventually(t, func() bool { return gw.loadAllCalls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Sync(ctx, false, true))
	// второй триггер отбрасывается, но первый ответ снова нужен
	require.NoError(t, c.Sync(ctx, true, false))
	close(gw.loadAllGate)
	require.NoError(t, <-done)

	assert.Equal(t, Full, store.Mode())
	assert.Len(t, store.Items(), 5)
	assert.Equal(t, int32(1), gw.loadAllCalls.Load())
}

func TestController_SyncStaysFullOutsideRecent(t *testing.T) {
	gw := newFakeGateway(makeItems(3))
	c, store := newTestController(gw, &recordingNotifier{}, 10*time.Millisecond)

	require.NoError(t, c.Sync(context.Background(), true, false))
	require.NoError(t, c.Sync(context.Background(), false, false))

	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, Full, store.Mode())
	assert.Equal(t, int32(0), gw.loadPageCalls.Load())
}
