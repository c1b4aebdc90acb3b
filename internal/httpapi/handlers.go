package httpapi

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"wvjwtsso.org/internal/audit"
	"wvjwtsso.org/internal/obs"
	"wvjwtsso.org/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const maxBodyBytes = 64 << 10

// TokenIssuer mints the identity assertion for a logged-in email.
type TokenIssuer interface {
	Issue(ctx context.Context, email string, isMobile bool) (string, error)
}

// Deps wires the collaborators of the HTTP layer.
type Deps struct {
	Issuer            TokenIssuer
	Sessions          *session.Manager
	WorkvivoBaseURL   string
	LoginRedirectPath string
	Version           string
	LoginRatePerSec   int
	LoginRateBurst    int
	// TrustProxyHeaders keys the login rate limit on X-Forwarded-For.
	TrustProxyHeaders bool
}

// API — HTTP layer.
type API struct {
	mux       *http.ServeMux
	issuer    TokenIssuer
	sessions  *session.Manager
	templates *template.Template
	baseURL   string
	loginPath string
	version   string

	ratePerSec int
	rateBurst  int
	trustProxy bool
}

func New(deps Deps) (*API, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	a := &API{
		mux:        http.NewServeMux(),
		issuer:     deps.Issuer,
		sessions:   deps.Sessions,
		templates:  tmpl,
		baseURL:    deps.WorkvivoBaseURL,
		loginPath:  deps.LoginRedirectPath,
		version:    deps.Version,
		ratePerSec: deps.LoginRatePerSec,
		rateBurst:  deps.LoginRateBurst,
		trustProxy: deps.TrustProxyHeaders,
	}
	if a.loginPath == "" {
		a.loginPath = "/wvjwtsso/"
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 5
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 10
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	// pages
	a.mux.HandleFunc("GET /{$}", a.handleLoginPage)
	a.mux.HandleFunc("GET /login", a.handleLoginPage)
	a.mux.Handle("POST /login", RateLimit(http.HandlerFunc(a.handleLogin), a.rateBurst, a.ratePerSec, a.trustProxy))
	a.mux.HandleFunc("GET /welcome", a.handleWelcome)
	a.mux.HandleFunc("POST /logout", a.handleLogout)
	a.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// health/ready/metrics
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	return a, nil
}

// Handler returns the mux wrapped in the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, maxBodyBytes)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "wvjwtsso",
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.sessions.Store().Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	body := map[string]any{"error": msg}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		body["request_id"] = rid
	}
	writeJSON(w, code, body)
}

// render executes the template fully before writing so a failure never
// leaves a partial page on the wire.
func (a *API) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name, data); err != nil {
		obs.Logger().WithError(err).WithField("template", name).Error("render failed")
		writeError(w, r, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
