package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-catalog/internal/pkg/logger"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/metrics"
)

// Lock で使う既定値
const (
	defaultLockTTL        = 10 * time.Second
	defaultLockRetries    = 20
	defaultLockRetryDelay = 50 * time.Millisecond
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// LockManager は分散ロックを管理する
type LockManager struct {
	client  *redis.Client
	metrics *metrics.Metrics
	ttl     time.Duration
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client, ttl: defaultLockTTL}
}

// WithTTL は Lock で取得するロックのTTLを変更する（0以下は無視する）
func (m *LockManager) WithTTL(ttl time.Duration) *LockManager {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// WithMetrics はロック操作時間を記録するメトリクスを設定する
func (m *LockManager) WithMetrics(mt *metrics.Metrics) *LockManager {
	m.metrics = mt
	return m
}

// Lock はリトライ付きでロックを取得し、解放関数を返す
// 解放されるまでTTLの半分ごとにロックを延長する
func (m *LockManager) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	start := time.Now()
	lock, err := m.AcquireLockWithRetry(ctx, key, m.ttl, defaultLockRetries, defaultLockRetryDelay)
	m.metrics.ObserveLock("acquire", lockStatus(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	stop := m.keepAlive(ctx, lock)
	return func(ctx context.Context) error {
		stop()
		start := time.Now()
		err := lock.Release(ctx)
		m.metrics.ObserveLock("release", lockStatus(err), time.Since(start).Seconds())
		return err
	}, nil
}

// keepAlive は stop が呼ばれるまでロックを延長し続ける
func (m *LockManager) keepAlive(ctx context.Context, lock *DistributedLock) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	interval := lock.ttl / 2

	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				err := lock.Extend(ctx, lock.ttl)
				m.metrics.ObserveLock("extend", lockStatus(err), time.Since(start).Seconds())
				if err != nil {
					logger.FromContext(ctx).Warn("ロックの延長に失敗しました", zap.String("key", lock.key), zap.Error(err))
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}

func lockStatus(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := uuid.New().String()

	// SetNX を使用してロックを取得（キーが存在しない場合のみ設定）
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &DistributedLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*DistributedLock, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireLock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// Release はロックを解放する（Lua スクリプトで安全に解放）
func (l *DistributedLock) Release(ctx context.Context) error {
	// Lua スクリプトで所有者確認と削除をアトミックに実行
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	l.ttl = ttl
	return nil
}
