package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceScale はチケット価格の小数点以下の最大桁数
const PriceScale = 2

// MaxPrice はチケット価格の上限（この値は含まない）
// PriceScale と合わせて NUMERIC(12,2) に収まる範囲になる
var MaxPrice = decimal.New(1, 10)

// Event はイベントエンティティを表す
type Event struct {
	ID              uuid.UUID
	Name            string
	Tags            []string
	TicketPrice     *decimal.Decimal // 未設定の場合は nil
	EventDateTime   *time.Time       // 未設定の場合は nil
	DurationMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Patch は部分更新の内容を表す
// nil のポインタ、空のタグ、0以下の時間は「指定なし」として扱う
type Patch struct {
	Name            *string
	Tags            []string
	TicketPrice     *decimal.Decimal
	EventDateTime   *time.Time
	DurationMinutes int
}

// ValidatePrice はチケット価格が保存できる値かを検証する。nil は未設定として許可する
func ValidatePrice(price *decimal.Decimal) error {
	switch {
	case price == nil:
		return nil
	case price.IsNegative():
		return ErrNegativePrice
	case !price.Equal(price.Round(PriceScale)):
		return ErrPriceScale
	case price.GreaterThanOrEqual(MaxPrice):
		return ErrPriceTooLarge
	}
	return nil
}

// Validate は保存前にイベントの値を検証する
func (e *Event) Validate() error {
	return ValidatePrice(e.TicketPrice)
}

// ApplyPatch は指定されたフィールドだけを上書きする
func (e *Event) ApplyPatch(p Patch) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if len(p.Tags) > 0 {
		e.Tags = append([]string(nil), p.Tags...)
	}
	if p.TicketPrice != nil {
		price := *p.TicketPrice
		e.TicketPrice = &price
	}
	if p.EventDateTime != nil {
		at := *p.EventDateTime
		e.EventDateTime = &at
	}
	if p.DurationMinutes > 0 {
		e.DurationMinutes = p.DurationMinutes
	}
}

// HasTag は大文字小文字を区別せずにタグの完全一致を判定する
func (e *Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// PriceWithin はチケット価格が [min, max] に含まれるかを判定する
func (e *Event) PriceWithin(min, max decimal.Decimal) bool {
	if e.TicketPrice == nil {
		return false
	}
	return !e.TicketPrice.LessThan(min) && !e.TicketPrice.GreaterThan(max)
}

// OccursWithin は開催日時が [start, end] に含まれるかを判定する
func (e *Event) OccursWithin(start, end time.Time) bool {
	if e.EventDateTime == nil {
		return false
	}
	return !e.EventDateTime.Before(start) && !e.EventDateTime.After(end)
}

// IsAfter は開催日時が now より後かを判定する
func (e *Event) IsAfter(now time.Time) bool {
	return e.EventDateTime != nil && e.EventDateTime.After(now)
}
