// Package session keeps the identity captured at login on the server side,
// keyed by an opaque id carried in a cookie.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session is missing or has expired.
var ErrNotFound = errors.New("session: not found")

// Session is the server-side state for one browser.
type Session struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
