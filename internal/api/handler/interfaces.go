package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-event-catalog/internal/domain/event"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, e *event.Event) (*event.Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*event.Event, error)
	ListEvents(ctx context.Context) ([]*event.Event, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, e *event.Event) (*event.Event, error)
	PatchEvent(ctx context.Context, id uuid.UUID, patch event.Patch) (*event.Event, error)
	UpdateEventPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*event.Event, error)
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	GetEventsByTag(ctx context.Context, tag string) ([]*event.Event, error)
	GetUpcomingEvents(ctx context.Context) ([]*event.Event, error)
	GetEventsByPriceRange(ctx context.Context, min, max *decimal.Decimal) ([]*event.Event, error)
	GetEventsByDateRange(ctx context.Context, start, end *time.Time) ([]*event.Event, error)
}

// Pinger は依存先の疎通確認を行う
type Pinger func(ctx context.Context) error
