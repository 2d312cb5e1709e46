package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-catalog/internal/domain/event"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/logger"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/metrics"
)

// Cache は CachedEventRepository が使うキャッシュの操作
type Cache interface {
	GetAll(ctx context.Context) ([]*event.Event, error)
	SetAll(ctx context.Context, events []*event.Event) error
	Get(ctx context.Context, id uuid.UUID) (*event.Event, error)
	Set(ctx context.Context, e *event.Event) error
	// Add はエントリが存在しない場合だけ保存する
	Add(ctx context.Context, e *event.Event) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// CachedEventRepository は読み込みをキャッシュするリポジトリのデコレーター
// キャッシュの障害時はストアから直接読み込む
type CachedEventRepository struct {
	store   event.Repository
	cache   Cache
	metrics *metrics.Metrics
}

// NewCachedEventRepository は store の前段にキャッシュを置く
func NewCachedEventRepository(store event.Repository, cache Cache, m *metrics.Metrics) *CachedEventRepository {
	return &CachedEventRepository{store: store, cache: cache, metrics: m}
}

// Save は保存後にスナップショットを無効化し、イベントのエントリを保存した内容で置き換える
func (r *CachedEventRepository) Save(ctx context.Context, e *event.Event) error {
	if err := r.store.Save(ctx, e); err != nil {
		return err
	}
	r.invalidate(ctx, e.ID)
	if err := r.cache.Set(ctx, e); err != nil {
		logger.FromContext(ctx).Warn("イベントのキャッシュ保存に失敗", zap.String("event_id", e.ID.String()), zap.Error(err))
	}
	return nil
}

// FindByID はエントリがあればそれを返し、なければストアから読み込んでキャッシュする
// event.WithFreshRead が指定された場合は常にストアから読み込む
func (r *CachedEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	if event.IsFreshRead(ctx) {
		return r.store.FindByID(ctx, id)
	}

	cached, err := r.cache.Get(ctx, id)
	if err == nil {
		r.metrics.ObserveCache("one", "hit")
		return cached, nil
	}
	r.observeMiss(ctx, "one", err)

	e, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// 読み込み中に保存されたエントリを古い内容で上書きしない
	if err := r.cache.Add(ctx, e); err != nil {
		logger.FromContext(ctx).Warn("イベントのキャッシュ保存に失敗", zap.String("event_id", id.String()), zap.Error(err))
	}
	return e, nil
}

func (r *CachedEventRepository) FindAll(ctx context.Context) ([]*event.Event, error) {
	cached, err := r.cache.GetAll(ctx)
	if err == nil {
		r.metrics.ObserveCache("all", "hit")
		return cached, nil
	}
	r.observeMiss(ctx, "all", err)

	events, err := r.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetAll(ctx, events); err != nil {
		logger.FromContext(ctx).Warn("イベント一覧のキャッシュ保存に失敗", zap.Error(err))
	}
	return events, nil
}

// ExistsByID は常にストアに問い合わせる
func (r *CachedEventRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.store.ExistsByID(ctx, id)
}

// DeleteByID は削除後にキャッシュを無効化する
func (r *CachedEventRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if err := r.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// Refresh はストアから全件を読み込み、スナップショットを作り直す
func (r *CachedEventRepository) Refresh(ctx context.Context) (int, error) {
	events, err := r.store.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("スナップショットの読み込みに失敗: %w", err)
	}
	if err := r.cache.SetAll(ctx, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

func (r *CachedEventRepository) invalidate(ctx context.Context, id uuid.UUID) {
	if err := r.cache.Invalidate(ctx, id); err != nil {
		logger.FromContext(ctx).Warn("キャッシュ無効化に失敗", zap.String("event_id", id.String()), zap.Error(err))
	}
}

func (r *CachedEventRepository) observeMiss(ctx context.Context, target string, err error) {
	if errors.Is(err, ErrCacheMiss) {
		r.metrics.ObserveCache(target, "miss")
		return
	}
	r.metrics.ObserveCache(target, "error")
	logger.FromContext(ctx).Warn("キャッシュ取得に失敗したためストアから読み込みます", zap.String("target", target), zap.Error(err))
}

var _ event.Repository = (*CachedEventRepository)(nil)
