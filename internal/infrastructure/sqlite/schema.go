package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// スキーマ定義。migrations/ のPostgreSQL版と列を揃えること
const schema = `
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS events (
    -- イベントID（UUID文字列）
    id TEXT PRIMARY KEY,
    event_name TEXT NOT NULL DEFAULT '',
    -- タグ（JSON配列）
    tags TEXT NOT NULL DEFAULT '[]',
    -- チケット価格（10進数文字列）
    ticket_price TEXT,
    -- 開催日時（UTC、固定長）
    event_date_time TEXT,
    duration_minutes INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

// initSchema はスキーマを適用する
func initSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
