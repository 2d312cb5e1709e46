package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-event-catalog/internal/domain/event"
)

// 文字列比較で時刻順に並ぶよう固定長の書式を使う
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const eventColumns = `id, event_name, tags, ticket_price, event_date_time, duration_minutes, created_at, updated_at`

type eventRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"event_name"`
	Tags            string         `db:"tags"`
	TicketPrice     sql.NullString `db:"ticket_price"`
	EventDateTime   sql.NullString `db:"event_date_time"`
	DurationMinutes int            `db:"duration_minutes"`
	CreatedAt       string         `db:"created_at"`
	UpdatedAt       string         `db:"updated_at"`
}

func (r *eventRow) toEntity() (*event.Event, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("イベントIDが不正です: %w", err)
	}
	e := &event.Event{
		ID:              id,
		Name:            r.Name,
		DurationMinutes: r.DurationMinutes,
	}

	var tags []string
	if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
		return nil, fmt.Errorf("タグの読み込みに失敗しました: %w", err)
	}
	if len(tags) > 0 {
		e.Tags = tags
	}
	if r.TicketPrice.Valid {
		price, err := decimal.NewFromString(r.TicketPrice.String)
		if err != nil {
			return nil, fmt.Errorf("チケット価格の読み込みに失敗しました: %w", err)
		}
		e.TicketPrice = &price
	}
	if r.EventDateTime.Valid {
		at, err := time.Parse(timeLayout, r.EventDateTime.String)
		if err != nil {
			return nil, fmt.Errorf("開催日時の読み込みに失敗しました: %w", err)
		}
		e.EventDateTime = &at
	}
	if e.CreatedAt, err = time.Parse(timeLayout, r.CreatedAt); err != nil {
		return nil, fmt.Errorf("作成日時の読み込みに失敗しました: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(timeLayout, r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("更新日時の読み込みに失敗しました: %w", err)
	}
	return e, nil
}

// EventRepository はイベントリポジトリのSQLite実装
type EventRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db, now: time.Now}
}

// Save はイベントを登録または置き換える
func (r *EventRepository) Save(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET event_name = excluded.event_name,
		    tags = excluded.tags,
		    ticket_price = excluded.ticket_price,
		    event_date_time = excluded.event_date_time,
		    duration_minutes = excluded.duration_minutes,
		    updated_at = excluded.updated_at
		RETURNING created_at, updated_at
	`
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("タグの変換に失敗しました: %w", err)
	}
	var price, at sql.NullString
	if e.TicketPrice != nil {
		price = sql.NullString{String: e.TicketPrice.String(), Valid: true}
	}
	if e.EventDateTime != nil {
		at = sql.NullString{String: e.EventDateTime.UTC().Format(timeLayout), Valid: true}
	}
	now := r.now().UTC().Format(timeLayout)

	var createdAt, updatedAt string
	err = r.db.QueryRowContext(ctx, query,
		e.ID.String(), e.Name, string(tagsJSON), price, at, e.DurationMinutes, now, now,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return fmt.Errorf("イベント保存に失敗しました: %w", err)
	}

	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return fmt.Errorf("作成日時の読み込みに失敗しました: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return fmt.Errorf("更新日時の読み込みに失敗しました: %w", err)
	}
	return nil
}

// FindByID はIDからイベントを取得する
func (r *EventRepository) FindByID(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	var row eventRow
	err := r.db.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity()
}

// FindAll はすべてのイベントを登録順に取得する
func (r *EventRepository) FindAll(ctx context.Context) ([]*event.Event, error) {
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+eventColumns+` FROM events ORDER BY created_at, rowid`); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}

	events := make([]*event.Event, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// ExistsByID はイベントが存在するかを返す
func (r *EventRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM events WHERE id = ?)`, id.String())
	if err != nil {
		return false, fmt.Errorf("イベント存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// DeleteByID はイベントを削除する
func (r *EventRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id.String())
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

var _ event.Repository = (*EventRepository)(nil)
