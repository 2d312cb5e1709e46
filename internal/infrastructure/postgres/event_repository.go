package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-event-catalog/internal/domain/event"
)

const eventColumns = `id, event_name, tags, ticket_price, event_date_time, duration_minutes, created_at, updated_at`

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID              uuid.UUID           `db:"id"`
	Name            string              `db:"event_name"`
	Tags            pq.StringArray      `db:"tags"`
	TicketPrice     decimal.NullDecimal `db:"ticket_price"`
	EventDateTime   *time.Time          `db:"event_date_time"`
	DurationMinutes int                 `db:"duration_minutes"`
	CreatedAt       time.Time           `db:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	e := &event.Event{
		ID:              r.ID,
		Name:            r.Name,
		EventDateTime:   r.EventDateTime,
		DurationMinutes: r.DurationMinutes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if len(r.Tags) > 0 {
		e.Tags = []string(r.Tags)
	}
	if r.TicketPrice.Valid {
		price := r.TicketPrice.Decimal
		e.TicketPrice = &price
	}
	return e
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Save はイベントを登録または置き換える
// created_at は初回登録時の値が保持される
func (r *EventRepository) Save(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (id, event_name, tags, ticket_price, event_date_time, duration_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET event_name = EXCLUDED.event_name,
		    tags = EXCLUDED.tags,
		    ticket_price = EXCLUDED.ticket_price,
		    event_date_time = EXCLUDED.event_date_time,
		    duration_minutes = EXCLUDED.duration_minutes,
		    updated_at = NOW()
		RETURNING created_at, updated_at
	`
	tags := pq.StringArray(e.Tags)
	if tags == nil {
		tags = pq.StringArray{}
	}
	var price decimal.NullDecimal
	if e.TicketPrice != nil {
		price = decimal.NewNullDecimal(*e.TicketPrice)
	}

	err := r.db.QueryRowContext(ctx, query,
		e.ID, e.Name, tags, price, e.EventDateTime, e.DurationMinutes,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("イベント保存に失敗しました: %w", err)
	}
	return nil
}

// FindByID はIDからイベントを取得する
func (r *EventRepository) FindByID(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// FindAll はすべてのイベントを登録順に取得する
func (r *EventRepository) FindAll(ctx context.Context) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY created_at, id`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}

	events := make([]*event.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].toEntity()
	}
	return events, nil
}

// ExistsByID はイベントが存在するかを返す
func (r *EventRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("イベント存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// DeleteByID はイベントを削除する
func (r *EventRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
