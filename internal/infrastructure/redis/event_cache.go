package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-event-catalog/internal/domain/event"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

const eventSnapshotKey = "events:all"

// cachedEvent はキャッシュに保存するイベントの形式
type cachedEvent struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"event_name"`
	Tags            []string         `json:"tags,omitempty"`
	TicketPrice     *decimal.Decimal `json:"ticket_price,omitempty"`
	EventDateTime   *time.Time       `json:"event_date_time,omitempty"`
	DurationMinutes int              `json:"duration_minutes"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func toCachedEvent(e *event.Event) cachedEvent {
	return cachedEvent{
		ID:              e.ID,
		Name:            e.Name,
		Tags:            e.Tags,
		TicketPrice:     e.TicketPrice,
		EventDateTime:   e.EventDateTime,
		DurationMinutes: e.DurationMinutes,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func (c cachedEvent) toEntity() *event.Event {
	return &event.Event{
		ID:              c.ID,
		Name:            c.Name,
		Tags:            c.Tags,
		TicketPrice:     c.TicketPrice,
		EventDateTime:   c.EventDateTime,
		DurationMinutes: c.DurationMinutes,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// EventCache はイベント情報のキャッシュを管理する
// 全件のスナップショットとイベント単位のエントリを持つ
type EventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventCache は新しいEventCacheインスタンスを作成する
func NewEventCache(client *redis.Client, ttl time.Duration) *EventCache {
	return &EventCache{client: client, ttl: ttl}
}

// GetAll は全件のスナップショットを取得する
func (c *EventCache) GetAll(ctx context.Context) ([]*event.Event, error) {
	var cached []cachedEvent
	if err := c.get(ctx, eventSnapshotKey, &cached); err != nil {
		return nil, err
	}
	events := make([]*event.Event, len(cached))
	for i, ce := range cached {
		events[i] = ce.toEntity()
	}
	return events, nil
}

// SetAll は全件のスナップショットを保存する
func (c *EventCache) SetAll(ctx context.Context, events []*event.Event) error {
	cached := make([]cachedEvent, len(events))
	for i, e := range events {
		cached[i] = toCachedEvent(e)
	}
	return c.set(ctx, eventSnapshotKey, cached)
}

// Get はイベント単位のエントリを取得する
func (c *EventCache) Get(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	var cached cachedEvent
	if err := c.get(ctx, c.eventKey(id), &cached); err != nil {
		return nil, err
	}
	return cached.toEntity(), nil
}

// Set はイベント単位のエントリを保存する
func (c *EventCache) Set(ctx context.Context, e *event.Event) error {
	return c.set(ctx, c.eventKey(e.ID), toCachedEvent(e))
}

// Add はイベント単位のエントリが存在しない場合だけ保存する
func (c *EventCache) Add(ctx context.Context, e *event.Event) error {
	data, err := json.Marshal(toCachedEvent(e))
	if err != nil {
		return fmt.Errorf("キャッシュの変換に失敗: %w", err)
	}
	if err := c.client.SetNX(ctx, c.eventKey(e.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はスナップショットと指定イベントのエントリを無効化する
func (c *EventCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, eventSnapshotKey, c.eventKey(id)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *EventCache) get(ctx context.Context, key string, dst any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("キャッシュの復元に失敗: %w", err)
	}
	return nil
}

func (c *EventCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("キャッシュの変換に失敗: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

func (c *EventCache) eventKey(id uuid.UUID) string {
	return fmt.Sprintf("events:id:%s", id)
}
