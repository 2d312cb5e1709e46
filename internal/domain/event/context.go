package event

import "context"

type freshReadKey struct{}

// WithFreshRead はキャッシュを経由せずストアから読み込むよう指定する
// 読み込んだ内容を元に更新する処理で使う
func WithFreshRead(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshReadKey{}, true)
}

// IsFreshRead は WithFreshRead が指定されているかを返す
func IsFreshRead(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshReadKey{}).(bool)
	return fresh
}
