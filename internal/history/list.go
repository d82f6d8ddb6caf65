package history

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/pocketsafety/backend/pkg/kv"
)

// boundedList is a newest-first JSON array stored under one key. Callers serialize access.
type boundedList[T any] struct {
	store  kv.Store
	key    string
	limit  int
	logger *zap.Logger
}

// load returns the stored items. Missing, unreadable or corrupt values read as an empty list.
func (l *boundedList[T]) load(ctx context.Context) []T {
	raw, found, err := l.store.Get(ctx, l.key)
	if err != nil {
		l.logger.Warn("history read failed, treating as empty", zap.String("key", l.key), zap.Error(err))
		return nil
	}
	if !found || raw == "" {
		return nil
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		l.logger.Warn("history value corrupt, treating as empty", zap.String("key", l.key), zap.Error(err))
		return nil
	}
	return items
}

func (l *boundedList[T]) save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", l.key, err)
	}
	if err := l.store.Set(ctx, l.key, string(raw)); err != nil {
		return fmt.Errorf("write %s: %w", l.key, err)
	}
	return nil
}

// push prepends item, trims the list to its limit and returns what fell off the end, oldest last.
func (l *boundedList[T]) push(ctx context.Context, item T) ([]T, error) {
	items := append([]T{item}, l.load(ctx)...)
	var evicted []T
	if len(items) > l.limit {
		evicted = append(evicted, items[l.limit:]...)
		items = items[:l.limit]
	}
	if err := l.save(ctx, items); err != nil {
		return nil, err
	}
	return evicted, nil
}

// update applies fn to a copy of the list and writes the result back.
func (l *boundedList[T]) update(ctx context.Context, fn func([]T) []T) error {
	return l.save(ctx, fn(l.load(ctx)))
}
