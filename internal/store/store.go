// Package store persists graphs behind a small key-value port with SQLite,
// Redis and in-memory backends and optional encryption at rest.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not found")

// Backend is the key-value port every store implements. Keys returns keys
// with the given prefix in ascending order.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindRedis  Kind = "redis"
	KindMemory Kind = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Kind       Kind
	Path       string
	RedisURL   string
	KeyPrefix  string
	Passphrase string
}

// Open builds the configured backend, wrapped in encryption when a
// passphrase is set.
func Open(ctx context.Context, opts Options) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch Kind(strings.ToLower(string(opts.Kind))) {
	case KindSQLite, "":
		b, err = OpenSQLite(ctx, opts.Path)
	case KindRedis:
		b, err = OpenRedis(ctx, opts.RedisURL, opts.KeyPrefix)
	case KindMemory:
		b = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Kind)
	}
	if err != nil {
		return nil, err
	}
	if opts.Passphrase == "" {
		return b, nil
	}
	enc, err := NewEncryptedBackend(ctx, b, opts.Passphrase)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return enc, nil
}
