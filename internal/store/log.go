package store

import (
	"context"
	"errors"
)

// Log is a persisted ordered collection with an optional maximum size.
// Appends past the cap drop the oldest entries. A max of 0 means unbounded.
type Log[T any] struct {
	s   *Store
	key string
	max int
}

// NewLog binds a capped log to key in s.
func NewLog[T any](s *Store, key string, max int) *Log[T] {
	return &Log[T]{s: s, key: key, max: max}
}

// Max returns the cap, 0 when unbounded.
func (l *Log[T]) Max() int {
	return l.max
}

// Read returns every entry, oldest first. A collection that was never
// written reads as empty.
func (l *Log[T]) Read(ctx context.Context) ([]T, error) {
	var items []T
	err := l.s.read(ctx, l.key, &items)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

// All is Read with failures logged and degraded to an empty collection.
func (l *Log[T]) All(ctx context.Context) []T {
	items, err := l.Read(ctx)
	if err != nil {
		l.s.log.Warn().Err(err).Str("collection", l.key).Msg("read failed, using empty default")
		return nil
	}
	return items
}

// Recent returns at most n of the newest entries, oldest first.
func (l *Log[T]) Recent(ctx context.Context, n int) []T {
	items := l.All(ctx)
	if n > 0 && len(items) > n {
		items = items[len(items)-n:]
	}
	return items
}

// Append adds items as the newest entries and trims to the cap.
func (l *Log[T]) Append(ctx context.Context, items ...T) error {
	return l.mutate(ctx, func(cur []T) []T {
		return append(cur, items...)
	})
}

// Upsert replaces the first entry for which same reports true, or appends
// item when there is none.
func (l *Log[T]) Upsert(ctx context.Context, item T, same func(a, b T) bool) error {
	return l.mutate(ctx, func(cur []T) []T {
		for i := range cur {
			if same(cur[i], item) {
				cur[i] = item
				return cur
			}
		}
		return append(cur, item)
	})
}

// Update applies fn to the first entry matching pred. It returns
// ErrNotFound when nothing matched.
func (l *Log[T]) Update(ctx context.Context, pred func(T) bool, fn func(*T)) error {
	found := false
	err := l.mutate(ctx, func(cur []T) []T {
		for i := range cur {
			if pred(cur[i]) {
				fn(&cur[i])
				found = true
				break
			}
		}
		return cur
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// RemoveFunc deletes every entry matching pred and returns how many went.
func (l *Log[T]) RemoveFunc(ctx context.Context, pred func(T) bool) (int, error) {
	removed := 0
	err := l.mutate(ctx, func(cur []T) []T {
		kept := cur[:0]
		for _, it := range cur {
			if pred(it) {
				removed++
				continue
			}
			kept = append(kept, it)
		}
		return kept
	})
	return removed, err
}

// mutate runs a read-modify-write under the collection lock. A read error
// other than a missing key aborts the write so a transient failure cannot
// clobber the stored collection.
func (l *Log[T]) mutate(ctx context.Context, fn func([]T) []T) error {
	unlock := l.s.lock(l.key)
	defer unlock()

	items, err := l.Read(ctx)
	if err != nil {
		return err
	}
	items = fn(items)
	if l.max > 0 && len(items) > l.max {
		trimmed := make([]T, l.max)
		copy(trimmed, items[len(items)-l.max:])
		items = trimmed
	}
	if items == nil {
		items = []T{}
	}
	return l.s.write(ctx, l.key, items)
}
