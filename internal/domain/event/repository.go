package event

import (
	"context"

	"github.com/google/uuid"
)

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Save はイベントを保存する（同じIDが存在する場合は置き換える）
	Save(ctx context.Context, event *Event) error

	// FindByID はIDからイベントを取得する。存在しない場合は ErrEventNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*Event, error)

	// FindAll はすべてのイベントを取得する
	FindAll(ctx context.Context) ([]*Event, error)

	// ExistsByID はイベントが存在するかを返す
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)

	// DeleteByID はイベントを削除する
	DeleteByID(ctx context.Context, id uuid.UUID) error
}
