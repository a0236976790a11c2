package cctx

import (
	"context"
)

type bagKeyType struct{}

var bagKey bagKeyType

// bag 是不可变语义的键值容器：每次写入都会复制一份
type bag map[string]any

func bagFrom(ctx context.Context) bag {
	if ctx == nil {
		return nil
	}
	if b, ok := ctx.Value(bagKey).(bag); ok && b != nil {
		return b
	}
	return nil
}

// ----------------- 对外 API -----------------

// With 在现有 ctx 上写入一条 k/v，返回新 ctx（parent 不变）
func With(ctx context.Context, key string, val any) context.Context {
	return WithMany(ctx, map[string]any{key: val})
}

// WithMany 一次写入多条键值
func WithMany(ctx context.Context, kv map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	old := bagFrom(ctx)
	newMap := make(bag, len(old)+len(kv))
	for k, v := range old {
		newMap[k] = v
	}
	for k, v := range kv {
		newMap[k] = v
	}
	return context.WithValue(ctx, bagKey, newMap)
}

// Get 读取一个键
func Get(ctx context.Context, key string) (any, bool) {
	if b := bagFrom(ctx); b != nil {
		v, ok := b[key]
		return v, ok
	}
	return nil, false
}

// All 返回 bag 的拷贝，调用方可随意修改
func All(ctx context.Context) map[string]any {
	b := bagFrom(ctx)
	out := make(map[string]any, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
