package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lazypower/tabpulse/internal/config"
	"github.com/lazypower/tabpulse/internal/model"
)

// ErrNotFound is returned by a Backend for a key that was never set, and by
// the store for updates addressing a missing record.
var ErrNotFound = errors.New("not found")

// Backend is the key-value layer the collections are persisted in.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	PingContext(ctx context.Context) error
	Name() string
	Close() error
}

// Collection keys.
const (
	KeySessions  = "tabSessions"
	KeyPatterns  = "usagePatterns"
	KeySettings  = "appSettings"
	KeySnapshots = "memorySnapshots"
	KeyLeaks     = "memoryLeaks"
	KeyAccess    = "accessPatterns"
)

// Store exposes the named collections over a Backend. Every mutation of a
// collection holds that collection's lock for the whole read-modify-write.
type Store struct {
	backend Backend
	log     zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	Patterns  *Log[model.UsagePattern]
	Snapshots *Log[model.MemorySnapshot]
	Leaks     *Log[model.Leak]
	Access    *Log[model.AccessEvent]
	Sessions  *Log[model.Session]
}

// New builds a Store over backend with the given collection caps.
func New(backend Backend, limits config.StorageConfig, log zerolog.Logger) *Store {
	s := &Store{
		backend: backend,
		log:     log.With().Str("component", "store").Logger(),
		locks:   make(map[string]*sync.Mutex),
	}
	s.Patterns = NewLog[model.UsagePattern](s, KeyPatterns, limits.MaxPatterns)
	s.Snapshots = NewLog[model.MemorySnapshot](s, KeySnapshots, limits.MaxSnapshots)
	s.Leaks = NewLog[model.Leak](s, KeyLeaks, limits.MaxLeaks)
	s.Access = NewLog[model.AccessEvent](s, KeyAccess, limits.MaxAccessPatterns)
	s.Sessions = NewLog[model.Session](s, KeySessions, 0)
	return s
}

// Connect opens the backend selected by cfg and wraps it in a Store.
func Connect(cfg config.StorageConfig, log zerolog.Logger) (*Store, error) {
	var backend Backend
	switch cfg.Backend {
	case "redis":
		r, err := OpenRedis(cfg)
		if err != nil {
			return nil, err
		}
		backend = r
	default:
		path := cfg.Path
		if path == "" {
			var err error
			path, err = DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("resolve db path: %w", err)
			}
		}
		db, err := Open(path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		backend = db
	}
	return New(backend, cfg, log), nil
}

// Backend returns the underlying key-value backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Ping checks the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.PingContext(ctx)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// lock takes the per-key writer lock and returns its release func.
func (s *Store) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// read decodes key into dst. A missing key leaves dst untouched and
// returns ErrNotFound.
func (s *Store) read(ctx context.Context, key string, dst any) error {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.backend.Set(ctx, key, data)
}

// ClearAll removes every collection.
func (s *Store) ClearAll(ctx context.Context) error {
	for _, key := range []string{KeySessions, KeyPatterns, KeySettings, KeySnapshots, KeyLeaks, KeyAccess} {
		unlock := s.lock(key)
		err := s.backend.Delete(ctx, key)
		unlock()
		if err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	return nil
}
