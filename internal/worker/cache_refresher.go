package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-catalog/internal/pkg/logger"
)

// SnapshotRefresher はイベント一覧のキャッシュを作り直すインターフェース
type SnapshotRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// CacheRefresher は一定間隔でイベント一覧のキャッシュを作り直すワーカー
type CacheRefresher struct {
	refresher SnapshotRefresher
	interval  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewCacheRefresher は新しいリフレッシャーを作成
func NewCacheRefresher(r SnapshotRefresher, interval time.Duration) *CacheRefresher {
	return &CacheRefresher{
		refresher: r,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start はリフレッシャーを開始する
// 起動直後に一度キャッシュを作り、以後は interval ごとに作り直す
func (r *CacheRefresher) Start(ctx context.Context) {
	logger.Info("キャッシュリフレッシャー開始", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("キャッシュリフレッシャー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("キャッシュリフレッシャー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// Stop はリフレッシャーを停止し、終了を待つ
func (r *CacheRefresher) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *CacheRefresher) refresh(ctx context.Context) {
	log := logger.Get()

	count, err := r.refresher.Refresh(ctx)
	if err != nil {
		log.Error("キャッシュの再作成に失敗", zap.Error(err))
		return
	}
	log.Debug("キャッシュを再作成", zap.Int("count", count))
}
