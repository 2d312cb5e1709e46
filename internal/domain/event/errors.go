package event

import (
	"errors"
	"fmt"
)

// エラー種別
var (
	ErrEventNotFound   = errors.New("イベントが見つかりません")
	ErrInvalidArgument = errors.New("引数が不正です")
)

// 引数エラーの詳細（すべて ErrInvalidArgument をラップする）
var (
	ErrEventRequired      = fmt.Errorf("%w: イベントは必須です", ErrInvalidArgument)
	ErrTagRequired        = fmt.Errorf("%w: タグは必須です", ErrInvalidArgument)
	ErrPriceRangeRequired = fmt.Errorf("%w: 価格範囲の上限と下限は必須です", ErrInvalidArgument)
	ErrInvalidPriceRange  = fmt.Errorf("%w: 最低価格は最高価格以下である必要があります", ErrInvalidArgument)
	ErrDateRangeRequired  = fmt.Errorf("%w: 日付範囲の開始と終了は必須です", ErrInvalidArgument)
	ErrInvalidDateRange   = fmt.Errorf("%w: 開始日時は終了日時以前である必要があります", ErrInvalidArgument)
	ErrNegativePrice      = fmt.Errorf("%w: チケット価格は0以上である必要があります", ErrInvalidArgument)
	ErrPriceScale         = fmt.Errorf("%w: チケット価格は小数点以下2桁までです", ErrInvalidArgument)
	ErrPriceTooLarge      = fmt.Errorf("%w: チケット価格が上限を超えています", ErrInvalidArgument)
)
