package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lazypower/tabpulse/internal/model"
)

// UsagePatterns returns up to limit of the newest usage patterns. Read
// failures are returned so the predictor can report them.
func (s *Store) UsagePatterns(ctx context.Context, limit int) ([]model.UsagePattern, error) {
	items, err := s.Patterns.Read(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

// AddUsagePattern appends one activation to the pattern log.
func (s *Store) AddUsagePattern(ctx context.Context, p model.UsagePattern) error {
	return s.Patterns.Append(ctx, p)
}

// RecordAccess appends one entry to the raw access log.
func (s *Store) RecordAccess(ctx context.Context, ev model.AccessEvent) error {
	return s.Access.Append(ctx, ev)
}

// SaveLeak upserts leak keyed by tab id.
func (s *Store) SaveLeak(ctx context.Context, leak model.Leak) error {
	return s.Leaks.Upsert(ctx, leak, func(a, b model.Leak) bool {
		return a.TabID == b.TabID
	})
}

// MemoryLeaks returns every recorded leak.
func (s *Store) MemoryLeaks(ctx context.Context) []model.Leak {
	return s.Leaks.All(ctx)
}

// RemoveLeak drops the leak recorded for tabID, if any.
func (s *Store) RemoveLeak(ctx context.Context, tabID int) (bool, error) {
	n, err := s.Leaks.RemoveFunc(ctx, func(l model.Leak) bool { return l.TabID == tabID })
	return n > 0, err
}

// SaveSnapshot appends one sampling pass summary.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.MemorySnapshot) error {
	return s.Snapshots.Append(ctx, snap)
}

// RecentSnapshots returns up to count of the newest pass summaries.
func (s *Store) RecentSnapshots(ctx context.Context, count int) []model.MemorySnapshot {
	return s.Snapshots.Recent(ctx, count)
}

// Settings returns the stored settings merged over the defaults. Stored
// documents missing keys, or failing to load, yield default values.
func (s *Store) Settings(ctx context.Context) model.Settings {
	settings := model.DefaultSettings()
	err := s.read(ctx, KeySettings, &settings)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Warn().Err(err).Str("collection", KeySettings).Msg("read failed, using defaults")
		return model.DefaultSettings()
	}
	return settings
}

// UpdateSettings merges a partial JSON document over the current settings
// and persists the result.
func (s *Store) UpdateSettings(ctx context.Context, patch []byte) (model.Settings, error) {
	unlock := s.lock(KeySettings)
	defer unlock()

	current := s.Settings(ctx)
	if err := json.Unmarshal(patch, &current); err != nil {
		return current, fmt.Errorf("decode settings patch: %w", err)
	}
	if !model.ValidTheme(current.Theme) {
		return current, fmt.Errorf("invalid theme %q", current.Theme)
	}
	if current.RefreshInterval <= 0 || current.AutoHibernateIdleMinutes < 0 {
		return current, fmt.Errorf("intervals must be positive")
	}
	if err := s.write(ctx, KeySettings, current); err != nil {
		return current, err
	}
	return current, nil
}
