package redis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-catalog/internal/domain/event"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/metrics"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, e *event.Event) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockStore) FindByID(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockStore) FindAll(ctx context.Context) ([]*event.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockStore) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetAll(ctx context.Context) ([]*event.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockCache) SetAll(ctx context.Context, events []*event.Event) error {
	return m.Called(ctx, events).Error(0)
}

func (m *MockCache) Get(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, e *event.Event) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockCache) Add(ctx context.Context, e *event.Event) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func newTestCachedRepository() (*CachedEventRepository, *MockStore, *MockCache, *metrics.Metrics) {
	store := new(MockStore)
	cache := new(MockCache)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return NewCachedEventRepository(store, cache, m), store, cache, m
}

func TestCachedEventRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	events := []*event.Event{{ID: uuid.New(), Name: "A"}}

	t.Run("キャッシュヒット時はストアを読まない", func(t *testing.T) {
		repo, store, cache, m := newTestCachedRepository()
		cache.On("GetAll", mock.Anything).Return(events, nil)

		result, err := repo.FindAll(ctx)

		require.NoError(t, err)
		assert.Equal(t, events, result)
		store.AssertNotCalled(t, "FindAll", mock.Anything)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventCacheRequestsTotal.WithLabelValues("all", "hit")))
	})

	t.Run("キャッシュミス時はストアから読み込んで保存する", func(t *testing.T) {
		repo, store, cache, m := newTestCachedRepository()
		cache.On("GetAll", mock.Anything).Return(nil, ErrCacheMiss)
		store.On("FindAll", mock.Anything).Return(events, nil)
		cache.On("SetAll", mock.Anything, events).Return(nil)

		result, err := repo.FindAll(ctx)

		require.NoError(t, err)
		assert.Equal(t, events, result)
		cache.AssertExpectations(t)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventCacheRequestsTotal.WithLabelValues("all", "miss")))
	})

	t.Run("キャッシュ障害時もストアの結果を返す", func(t *testing.T) {
		repo, store, cache, m := newTestCachedRepository()
		cache.On("GetAll", mock.Anything).Return(nil, errors.New("connection refused"))
		store.On("FindAll", mock.Anything).Return(events, nil)
		cache.On("SetAll", mock.Anything, events).Return(errors.New("connection refused"))

		result, err := repo.FindAll(ctx)

		require.NoError(t, err)
		assert.Equal(t, events, result)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventCacheRequestsTotal.WithLabelValues("all", "error")))
	})

	t.Run("ストアのエラーはそのまま返す", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		cache.On("GetAll", mock.Anything).Return(nil, ErrCacheMiss)
		store.On("FindAll", mock.Anything).Return(nil, errors.New("db down"))

		_, err := repo.FindAll(ctx)

		require.Error(t, err)
		cache.AssertNotCalled(t, "SetAll", mock.Anything, mock.Anything)
	})
}

func TestCachedEventRepository_FindByID(t *testing.T) {
	ctx := context.Background()
	e := &event.Event{ID: uuid.New(), Name: "A"}

	t.Run("キャッシュヒット", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		cache.On("Get", mock.Anything, e.ID).Return(e, nil)

		result, err := repo.FindByID(ctx, e.ID)

		require.NoError(t, err)
		assert.Equal(t, e, result)
		store.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("キャッシュミス", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		cache.On("Get", mock.Anything, e.ID).Return(nil, ErrCacheMiss)
		store.On("FindByID", mock.Anything, e.ID).Return(e, nil)
		cache.On("Add", mock.Anything, e).Return(nil)

		result, err := repo.FindByID(ctx, e.ID)

		require.NoError(t, err)
		assert.Equal(t, e, result)
		cache.AssertExpectations(t)
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
	})

	t.Run("最新の読み込みを指定した場合はキャッシュを使わない", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		store.On("FindByID", mock.Anything, e.ID).Return(e, nil)

		result, err := repo.FindByID(event.WithFreshRead(ctx), e.ID)

		require.NoError(t, err)
		assert.Equal(t, e, result)
		cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
		cache.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	})

	t.Run("存在しないイベントはキャッシュしない", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		cache.On("Get", mock.Anything, e.ID).Return(nil, ErrCacheMiss)
		store.On("FindByID", mock.Anything, e.ID).Return(nil, event.ErrEventNotFound)

		_, err := repo.FindByID(ctx, e.ID)

		assert.ErrorIs(t, err, event.ErrEventNotFound)
		cache.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	})
}

func TestCachedEventRepository_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	e := &event.Event{ID: uuid.New(), Name: "A"}

	t.Run("保存後に無効化してエントリを置き換える", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		store.On("Save", mock.Anything, e).Return(nil)
		cache.On("Invalidate", mock.Anything, e.ID).Return(nil)
		cache.On("Set", mock.Anything, e).Return(nil)

		require.NoError(t, repo.Save(ctx, e))
		cache.AssertExpectations(t)
	})

	t.Run("キャッシュ操作に失敗しても保存は成功扱い", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		store.On("Save", mock.Anything, e).Return(nil)
		cache.On("Invalidate", mock.Anything, e.ID).Return(errors.New("timeout"))
		cache.On("Set", mock.Anything, e).Return(errors.New("timeout"))

		require.NoError(t, repo.Save(ctx, e))
	})

	t.Run("保存に失敗した場合は無効化しない", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		store.On("Save", mock.Anything, e).Return(errors.New("db down"))

		require.Error(t, repo.Save(ctx, e))
		cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})

	t.Run("削除後に無効化する", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		store.On("DeleteByID", mock.Anything, e.ID).Return(nil)
		cache.On("Invalidate", mock.Anything, e.ID).Return(nil)

		require.NoError(t, repo.DeleteByID(ctx, e.ID))
		cache.AssertExpectations(t)
	})

	t.Run("存在確認はストアに委譲する", func(t *testing.T) {
		repo, store, _, _ := newTestCachedRepository()
		store.On("ExistsByID", mock.Anything, e.ID).Return(true, nil)

		exists, err := repo.ExistsByID(ctx, e.ID)

		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestCachedEventRepository_Refresh(t *testing.T) {
	ctx := context.Background()
	events := []*event.Event{{ID: uuid.New()}, {ID: uuid.New()}}

	t.Run("スナップショットを作り直す", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		store.On("FindAll", mock.Anything).Return(events, nil)
		cache.On("SetAll", mock.Anything, events).Return(nil)

		n, err := repo.Refresh(ctx)

		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("キャッシュ保存に失敗した場合はエラー", func(t *testing.T) {
		repo, store, cache, _ := newTestCachedRepository()
		store.On("FindAll", mock.Anything).Return(events, nil)
		cache.On("SetAll", mock.Anything, events).Return(errors.New("timeout"))

		n, err := repo.Refresh(ctx)

		require.Error(t, err)
		assert.Equal(t, 0, n)
	})
}

// memoryStore は読み込み直後に任意の処理を差し込めるストア
type memoryStore struct {
	mu        sync.Mutex
	events    map[uuid.UUID]event.Event
	afterRead func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{events: make(map[uuid.UUID]event.Event)}
}

func (s *memoryStore) Save(_ context.Context, e *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = *e
	return nil
}

func (s *memoryStore) FindByID(_ context.Context, id uuid.UUID) (*event.Event, error) {
	s.mu.Lock()
	e, ok := s.events[id]
	hook := s.afterRead
	s.afterRead = nil
	s.mu.Unlock()

	if !ok {
		return nil, event.ErrEventNotFound
	}
	if hook != nil {
		hook()
	}
	return &e, nil
}

func (s *memoryStore) FindAll(context.Context) ([]*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]*event.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, &e)
	}
	return events, nil
}

func (s *memoryStore) ExistsByID(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[id]
	return ok, nil
}

func (s *memoryStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	return nil
}

// memoryCache は Redis と同じ上書き規則を持つキャッシュ
type memoryCache struct {
	mu       sync.Mutex
	entries  map[uuid.UUID]event.Event
	snapshot []*event.Event
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[uuid.UUID]event.Event)}
}

func (c *memoryCache) GetAll(context.Context) ([]*event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return nil, ErrCacheMiss
	}
	return c.snapshot, nil
}

func (c *memoryCache) SetAll(_ context.Context, events []*event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = events
	return nil
}

func (c *memoryCache) Get(_ context.Context, id uuid.UUID) (*event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, ErrCacheMiss
	}
	return &e, nil
}

func (c *memoryCache) Set(_ context.Context, e *event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.ID] = *e
	return nil
}

func (c *memoryCache) Add(_ context.Context, e *event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[e.ID]; !ok {
		c.entries[e.ID] = *e
	}
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.snapshot = nil
	return nil
}

func TestCachedEventRepository_WriteDuringRead(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	oldPrice := decimal.NewFromInt(1000)
	newPrice := decimal.NewFromInt(2000)

	setup := func(t *testing.T) (*CachedEventRepository, *memoryStore) {
		t.Helper()
		store := newMemoryStore()
		require.NoError(t, store.Save(ctx, &event.Event{ID: id, Name: "v1", TicketPrice: &oldPrice}))
		repo := NewCachedEventRepository(store, newMemoryCache(), metrics.NewWithRegistry(prometheus.NewRegistry()))

		// 1回目の読み込みの直後に別のリクエストが保存を完了させる
		store.afterRead = func() {
			require.NoError(t, repo.Save(ctx, &event.Event{ID: id, Name: "v2", TicketPrice: &newPrice}))
		}
		return repo, store
	}

	t.Run("読み込み中に保存された内容を古い内容で上書きしない", func(t *testing.T) {
		repo, _ := setup(t)

		first, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "v1", first.Name)

		second, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "v2", second.Name)
		assert.True(t, second.TicketPrice.Equal(newPrice))
	})

	t.Run("部分更新は保存済みの変更を引き継ぐ", func(t *testing.T) {
		repo, _ := setup(t)
		_, err := repo.FindByID(ctx, id)
		require.NoError(t, err)

		current, err := repo.FindByID(event.WithFreshRead(ctx), id)
		require.NoError(t, err)
		current.ApplyPatch(event.Patch{DurationMinutes: 90})
		require.NoError(t, repo.Save(ctx, current))

		got, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Name)
		assert.True(t, got.TicketPrice.Equal(newPrice))
		assert.Equal(t, 90, got.DurationMinutes)
	})

	t.Run("最新の読み込みはキャッシュより新しいストアの内容を返す", func(t *testing.T) {
		repo, store := setup(t)
		_, err := repo.FindByID(ctx, id)
		require.NoError(t, err)

		// キャッシュを経由しない変更
		require.NoError(t, store.Save(ctx, &event.Event{ID: id, Name: "v3"}))

		cached, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "v2", cached.Name)

		fresh, err := repo.FindByID(event.WithFreshRead(ctx), id)
		require.NoError(t, err)
		assert.Equal(t, "v3", fresh.Name)
	})
}
