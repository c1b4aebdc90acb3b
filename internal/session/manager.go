package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCookieName = "wvsso_session"
	DefaultTTL        = 24 * time.Hour
)

// Manager binds sessions in a Store to browser cookies.
type Manager struct {
	store  Store
	cookie string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// ManagerOption configures Manager behavior.
type ManagerOption func(*Manager)

func WithCookieName(name string) ManagerOption {
	return func(m *Manager) {
		if name = strings.TrimSpace(name); name != "" {
			m.cookie = name
		}
	}
}

func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSecureCookie marks the cookie Secure; enable when served over HTTPS.
func WithSecureCookie(secure bool) ManagerOption {
	return func(m *Manager) { m.secure = secure }
}

func WithClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		cookie: DefaultCookieName,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the backing store (used by readiness probes).
func (m *Manager) Store() Store { return m.store }

// Start records email in a fresh session and sets the cookie. Any session
// already bound to the request is discarded first.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request, email string) (Session, error) {
	if id := m.cookieValue(r); id != "" {
		_ = m.store.Delete(r.Context(), id)
	}
	now := m.now().UTC()
	s := Session{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(r.Context(), s); err != nil {
		return Session{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// Email returns the identity stored for the request's session, or ErrNotFound.
func (m *Manager) Email(r *http.Request) (string, error) {
	id := m.cookieValue(r)
	if id == "" {
		return "", ErrNotFound
	}
	s, err := m.store.Get(r.Context(), id)
	if err != nil {
		return "", err
	}
	if s.Expired(m.now()) || strings.TrimSpace(s.Email) == "" {
		return "", ErrNotFound
	}
	return s.Email, nil
}

// End deletes the session and expires the cookie.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) error {
	id := m.cookieValue(r)
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	if id == "" {
		return nil
	}
	if err := m.store.Delete(r.Context(), id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (m *Manager) cookieValue(r *http.Request) string {
	c, err := r.Cookie(m.cookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
