package simplekv

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/whitekid/goxp/fx"
)

type Interface[V any] interface {
	Len() int
	Set(ctx context.Context, k string, v V, ttl time.Duration) error
	Get(ctx context.Context, k string) (V, error)
	Delete(ctx context.Context, k string) error
	List(ctx context.Context, prefix string) []V
}

var (
	ErrNotExists = errors.New("key not exists")
)

func New[V any]() Interface[V] {
	return &memoryImpl[V]{
		values: make(map[string]*value[V]),
	}
}

type memoryImpl[V any] struct {
	mu     sync.Mutex
	values map[string]*value[V]
}

var _ Interface[struct{}] = (*memoryImpl[struct{}])(nil)

type value[T any] struct {
	value  T
	expire time.Time
}

func (v *value[T]) expired(now time.Time) bool { return !v.expire.IsZero() && v.expire.Before(now) }

func (m *memoryImpl[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanup()
	return len(m.values)
}

func (m *memoryImpl[V]) Set(ctx context.Context, k string, v V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[k] = &value[V]{
		value:  v,
		expire: fx.Ternary(ttl == 0, time.Time{}, time.Now().UTC().Add(ttl)),
	}
	return nil
}

func (m *memoryImpl[V]) Get(ctx context.Context, k string) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[k]
	if !ok || v.expired(time.Now()) {
		delete(m.values, k)

		var vv V
		return vv, ErrNotExists
	}

	return v.value, nil
}

func (m *memoryImpl[V]) Delete(ctx context.Context, k string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.values[k]; !ok {
		return ErrNotExists
	}

	delete(m.values, k)
	return nil
}

// List returns values whose key has prefix, ordered by key
func (m *memoryImpl[V]) List(ctx context.Context, prefix string) []V {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanup()

	keys := fx.Filter(fx.Keys(m.values), func(k string) bool { return strings.HasPrefix(k, prefix) })
	sort.Strings(keys)

	return fx.Map(keys, func(k string) V { return m.values[k].value })
}

func (m *memoryImpl[V]) cleanup() {
	now := time.Now()
	m.values = fx.FilterMap(m.values, func(k string, v *value[V]) bool { return !v.expired(now) })
}
