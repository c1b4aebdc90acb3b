package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestManagerStartAndEmail(t *testing.T) {
	mgr := NewManager(NewMemoryStore(), WithTTL(time.Hour), WithSecureCookie(true))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	s, err := mgr.Start(rr, req, "alice@example.com")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != DefaultCookieName || c.Value != s.ID {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if !c.HttpOnly || !c.Secure {
		t.Fatalf("expected HttpOnly and Secure cookie: %+v", c)
	}

	next := httptest.NewRequest(http.MethodGet, "/welcome", nil)
	next.AddCookie(c)
	email, err := mgr.Email(next)
	if err != nil {
		t.Fatalf("Email: %v", err)
	}
	if email != "alice@example.com" {
		t.Fatalf("unexpected email: %s", email)
	}
}

func TestManagerEmailWithoutCookie(t *testing.T) {
	mgr := NewManager(NewMemoryStore())
	_, err := mgr.Email(httptest.NewRequest(http.MethodGet, "/welcome", nil))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/welcome", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "forged"})
	if _, err := mgr.Email(req); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestManagerEndAndRelogin(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store)

	rr := httptest.NewRecorder()
	first, err := mgr.Start(rr, httptest.NewRequest(http.MethodPost, "/login", nil), "alice@example.com")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cookie := rr.Result().Cookies()[0]

	// Logging in again with the old cookie replaces the session.
	relogin := httptest.NewRequest(http.MethodPost, "/login", nil)
	relogin.AddCookie(cookie)
	second, err := mgr.Start(httptest.NewRecorder(), relogin, "bob@example.com")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a new session id")
	}
	if _, err := store.Get(relogin.Context(), first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old session should be gone, got %v", err)
	}

	logout := httptest.NewRequest(http.MethodPost, "/logout", nil)
	logout.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: second.ID})
	out := httptest.NewRecorder()
	if err := mgr.End(out, logout); err != nil {
		t.Fatalf("End: %v", err)
	}
	if c := out.Result().Cookies()[0]; c.MaxAge >= 0 {
		t.Fatalf("expected expired cookie, got MaxAge=%d", c.MaxAge)
	}
	if _, err := store.Get(logout.Context(), second.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session should be deleted, got %v", err)
	}
}
