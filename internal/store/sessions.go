package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/tabpulse/internal/model"
)

// ListSessions returns all saved sessions, oldest first.
func (s *Store) ListSessions(ctx context.Context) []model.Session {
	return s.Sessions.All(ctx)
}

// SaveSession stores a new session. It assigns an id and creation time when
// missing and derives the tab count.
func (s *Store) SaveSession(ctx context.Context, sess model.Session) (model.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	sess.TabCount = len(sess.Tabs)
	if err := s.Sessions.Append(ctx, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// UpdateSession replaces the session with the same id. Returns ErrNotFound
// when no such session exists.
func (s *Store) UpdateSession(ctx context.Context, sess model.Session) error {
	sess.TabCount = len(sess.Tabs)
	return s.Sessions.Update(ctx,
		func(cur model.Session) bool { return cur.ID == sess.ID },
		func(cur *model.Session) {
			createdAt := cur.CreatedAt
			*cur = sess
			if cur.CreatedAt.IsZero() {
				cur.CreatedAt = createdAt
			}
		})
}

// DeleteSession removes the session with the given id.
func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	n, err := s.Sessions.RemoveFunc(ctx, func(cur model.Session) bool { return cur.ID == id })
	return n > 0, err
}
