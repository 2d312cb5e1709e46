package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-catalog/internal/domain/event"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/clock"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/logger"
	"github.com/sanosuguru/go-event-catalog/internal/pkg/metrics"
)

// MutationLocker はイベント単位の排他制御を提供する
// 返された関数でロックを解放する
type MutationLocker interface {
	Lock(ctx context.Context, key string) (func(context.Context) error, error)
}

type EventService struct {
	eventRepo event.Repository
	clock     clock.Clock
	locker    MutationLocker
	metrics   *metrics.Metrics
}

// Option は EventService の任意設定
type Option func(*EventService)

// WithClock は現在時刻の取得元を差し替える
func WithClock(c clock.Clock) Option {
	return func(s *EventService) { s.clock = c }
}

// WithLocker は更新系操作で使う分散ロックを設定する
func WithLocker(l MutationLocker) Option {
	return func(s *EventService) { s.locker = l }
}

// WithMetrics は操作結果を記録するメトリクスを設定する
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *EventService) { s.metrics = m }
}

func NewEventService(eventRepo event.Repository, opts ...Option) *EventService {
	s := &EventService{eventRepo: eventRepo, clock: clock.NewSystem()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EventService) CreateEvent(ctx context.Context, e *event.Event) (result *event.Event, err error) {
	defer func() { s.observe("create", err) }()

	if e == nil {
		return nil, event.ErrEventRequired
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if err := s.eventRepo.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	logger.FromContext(ctx).Info("イベントを作成しました", zap.String("event_id", e.ID.String()))
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id uuid.UUID) (result *event.Event, err error) {
	defer func() { s.observe("get", err) }()
	return s.eventRepo.FindByID(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context) (result []*event.Event, err error) {
	defer func() { s.observe("list", err) }()
	return s.eventRepo.FindAll(ctx)
}

// UpdateEvent はイベントを丸ごと置き換える
func (s *EventService) UpdateEvent(ctx context.Context, id uuid.UUID, e *event.Event) (result *event.Event, err error) {
	defer func() { s.observe("update", err) }()

	if e == nil {
		return nil, event.ErrEventRequired
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	exists, err := s.eventRepo.ExistsByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("イベント存在確認に失敗しました: %w", err)
	}
	if !exists {
		return nil, event.ErrEventNotFound
	}
	e.ID = id
	if err := s.eventRepo.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント更新に失敗しました: %w", err)
	}
	return e, nil
}

func (s *EventService) DeleteEvent(ctx context.Context, id uuid.UUID) (err error) {
	defer func() { s.observe("delete", err) }()

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	exists, err := s.eventRepo.ExistsByID(ctx, id)
	if err != nil {
		return fmt.Errorf("イベント存在確認に失敗しました: %w", err)
	}
	if !exists {
		return event.ErrEventNotFound
	}
	if err := s.eventRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}
	logger.FromContext(ctx).Info("イベントを削除しました", zap.String("event_id", id.String()))
	return nil
}

// PatchEvent は指定されたフィールドだけを更新する
func (s *EventService) PatchEvent(ctx context.Context, id uuid.UUID, patch event.Patch) (result *event.Event, err error) {
	defer func() { s.observe("patch", err) }()

	if err := event.ValidatePrice(patch.TicketPrice); err != nil {
		return nil, err
	}
	return s.modify(ctx, id, func(e *event.Event) { e.ApplyPatch(patch) })
}

func (s *EventService) UpdateEventPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (result *event.Event, err error) {
	defer func() { s.observe("update_price", err) }()

	if err := event.ValidatePrice(&price); err != nil {
		return nil, err
	}
	return s.modify(ctx, id, func(e *event.Event) { e.TicketPrice = &price })
}

// GetEventsByTag は大文字小文字を区別せずにタグが一致するイベントを返す
func (s *EventService) GetEventsByTag(ctx context.Context, tag string) (result []*event.Event, err error) {
	defer func() { s.observe("filter_tag", err) }()

	if strings.TrimSpace(tag) == "" {
		return nil, event.ErrTagRequired
	}
	return s.filter(ctx, func(e *event.Event) bool { return e.HasTag(tag) })
}

// GetUpcomingEvents は現在時刻より後のイベントを開催日時の昇順で返す
func (s *EventService) GetUpcomingEvents(ctx context.Context) (result []*event.Event, err error) {
	defer func() { s.observe("filter_upcoming", err) }()

	now := s.clock.Now()
	events, err := s.filter(ctx, func(e *event.Event) bool { return e.IsAfter(now) })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventDateTime.Before(*events[j].EventDateTime)
	})
	return events, nil
}

// GetEventsByPriceRange は価格が [min, max] のイベントを返す
func (s *EventService) GetEventsByPriceRange(ctx context.Context, min, max *decimal.Decimal) (result []*event.Event, err error) {
	defer func() { s.observe("filter_price", err) }()

	if min == nil || max == nil {
		return nil, event.ErrPriceRangeRequired
	}
	if min.GreaterThan(*max) {
		return nil, event.ErrInvalidPriceRange
	}
	return s.filter(ctx, func(e *event.Event) bool { return e.PriceWithin(*min, *max) })
}

// GetEventsByDateRange は開催日時が [start, end] のイベントを返す
func (s *EventService) GetEventsByDateRange(ctx context.Context, start, end *time.Time) (result []*event.Event, err error) {
	defer func() { s.observe("filter_date", err) }()

	if start == nil || end == nil {
		return nil, event.ErrDateRangeRequired
	}
	if start.After(*end) {
		return nil, event.ErrInvalidDateRange
	}
	return s.filter(ctx, func(e *event.Event) bool { return e.OccursWithin(*start, *end) })
}

// modify はロックを取った上でイベントを読み込み、変更して保存する
// 読み込みはキャッシュを経由しない
func (s *EventService) modify(ctx context.Context, id uuid.UUID, change func(*event.Event)) (*event.Event, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	e, err := s.eventRepo.FindByID(event.WithFreshRead(ctx), id)
	if err != nil {
		return nil, err
	}
	change(e)
	e.ID = id
	if err := s.eventRepo.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント更新に失敗しました: %w", err)
	}
	return e, nil
}

// filter は全件を読み込み、条件に一致するイベントを返す（結果は nil にならない）
func (s *EventService) filter(ctx context.Context, match func(*event.Event) bool) ([]*event.Event, error) {
	events, err := s.eventRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	result := make([]*event.Event, 0, len(events))
	for _, e := range events {
		if match(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *EventService) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Lock(ctx, "event:"+id.String())
	if err != nil {
		return nil, fmt.Errorf("イベントのロック取得に失敗しました: %w", err)
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Warn("イベントのロック解放に失敗しました",
				zap.String("event_id", id.String()),
				zap.Error(err),
			)
		}
	}, nil
}

func (s *EventService) observe(operation string, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveOperation(operation, "success")
	case errors.Is(err, event.ErrEventNotFound):
		s.metrics.ObserveOperation(operation, "not_found")
	case errors.Is(err, event.ErrInvalidArgument):
		s.metrics.ObserveOperation(operation, "invalid")
	default:
		s.metrics.ObserveOperation(operation, "error")
	}
}
