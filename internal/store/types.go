package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// Storage is the shared key-value store every subsystem keeps its ephemeral
// state in. Records are hashes; Remove and IncrAttr are atomic so callers
// never need a read-modify-write cycle.
type Storage interface {
	Get(ctx context.Context, key string, val any) error
	Set(ctx context.Context, key string, val any, expiresIn time.Duration) error
	Save(ctx context.Context, key string, val any) error
	Delete(ctx context.Context, key string) error
	Remove(ctx context.Context, key string, val any) error
	Expire(ctx context.Context, key string, expiresIn time.Duration) error
	ExpireNX(ctx context.Context, key string, expiresIn time.Duration) error
	SetAttr(ctx context.Context, key string, field string, val any) error
	GetAttr(ctx context.Context, key, field string, val any) error
	DelAttr(ctx context.Context, key string, fields ...string) error
	Attrs(ctx context.Context, key string) (map[string]string, error)
	IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error)
}

type Store[T any] interface {
	Storage() Storage
	Get(ctx context.Context, key string) (T, error)
	Set(ctx context.Context, key string, val T, expiresIn time.Duration) error
	Save(ctx context.Context, key string, val T) error
	Delete(ctx context.Context, key string) error
	Remove(ctx context.Context, key string) (*T, error)
	Expire(ctx context.Context, key string, expiresIn time.Duration) error
	ExpireNX(ctx context.Context, key string, expiresIn time.Duration) error
	SetAttr(ctx context.Context, key string, field string, val any) error
	GetAttr(ctx context.Context, key, field string, val any) error
	DelAttr(ctx context.Context, key string, fields ...string) error
	Attrs(ctx context.Context, key string) (map[string]string, error)
	IncrAttr(ctx context.Context, key string, field string, delta int64) (int64, error)
}
