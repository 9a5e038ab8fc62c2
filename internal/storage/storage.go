// Package storage holds the state a browser would keep in local storage: the bearer
// token, the user snapshot and the guest cart. Keys are namespaced per visitor.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	KeyToken     = "token"
	KeyUser      = "user"
	KeyGuestCart = "guest_cart"
)

var ErrNotFound = errors.New("key not found")

// Store is a durable string-keyed byte store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the value under key into v. A missing key returns ErrNotFound.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

type namespaced struct {
	prefix string
	store  Store
}

// Namespace scopes every key of s under prefix.
func Namespace(s Store, prefix string) Store {
	return namespaced{prefix: prefix, store: s}
}

func (n namespaced) key(k string) string {
	return n.prefix + ":" + k
}

func (n namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.store.Get(ctx, n.key(key))
}

func (n namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.store.Set(ctx, n.key(key), value)
}

func (n namespaced) Delete(ctx context.Context, key string) error {
	return n.store.Delete(ctx, n.key(key))
}
