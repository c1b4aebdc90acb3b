package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"wvjwtsso.org/internal/audit"
	"wvjwtsso.org/internal/issuer"
	"wvjwtsso.org/internal/obs"
	"wvjwtsso.org/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type welcomePage struct {
	Email           string
	Token           string
	WorkvivoBaseURL string
	IsMobile        bool
}

func (a *API) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "login.html", nil)
}

// handleLogin stores the submitted email in the session. No credential check
// is performed: any non-empty email is accepted and the password is ignored.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLogin(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	log := requestLogger(r)
	log.WithField("email", email).Info("login attempt")

	if _, err := a.sessions.Start(w, r, email); err != nil {
		log.WithError(err).Error("session save failed")
		writeError(w, r, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	obs.LoginAccepted()
	_ = audit.LogEvent(audit.WithSubject(r.Context(), email), audit.EventLogin, nil)

	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Message: "Login successful",
	})
}

func (a *API) handleWelcome(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)

	email, err := a.sessions.Email(r)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			log.Info("unauthenticated welcome access, redirecting to login")
			_ = audit.LogEvent(r.Context(), audit.EventWelcomeDenied, nil)
			http.Redirect(w, r, a.loginPath, http.StatusFound)
			return
		}
		log.WithError(err).Error("session lookup failed")
		writeError(w, r, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	ctx := audit.WithSubject(r.Context(), email)
	mobile := IsMobile(r.UserAgent())
	log = log.WithFields(logrus.Fields{"email": email, "mobile": mobile})
	log.Info("welcome page access")

	token, err := a.issuer.Issue(ctx, email, mobile)
	if err != nil {
		class := errorClass(err)
		obs.TokenIssued(class)
		log.WithError(err).WithField("class", class).Error("token issuance failed")
		_ = audit.LogEvent(ctx, audit.EventTokenFailed, map[string]any{"class": class})
		writeError(w, r, http.StatusInternalServerError, "token issuance failed")
		return
	}
	obs.TokenIssued("ok")
	_ = audit.LogEvent(ctx, audit.EventTokenIssued, map[string]any{"mobile": mobile})

	a.render(w, r, "welcome.html", welcomePage{
		Email:           email,
		Token:           token,
		WorkvivoBaseURL: a.baseURL,
		IsMobile:        mobile,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.End(w, r); err != nil {
		requestLogger(r).WithError(err).Error("session delete failed")
	}
	_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	http.Redirect(w, r, a.loginPath, http.StatusSeeOther)
}

// decodeLogin accepts both JSON and form encoded bodies.
func decodeLogin(r *http.Request) (loginRequest, error) {
	var req loginRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&req); err != nil {
			return loginRequest{}, errors.New("invalid JSON body")
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return loginRequest{}, errors.New("invalid form body")
	}
	req.Email = r.PostFormValue("email")
	req.Password = r.PostFormValue("password")
	return req, nil
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, issuer.ErrConfig):
		return "config"
	case errors.Is(err, issuer.ErrParse):
		return "parse"
	case errors.Is(err, issuer.ErrCrypto):
		return "crypto"
	case errors.Is(err, issuer.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

func requestLogger(r *http.Request) *logrus.Entry {
	return obs.Logger().WithField("request_id", audit.RequestIDFromContext(r.Context()))
}
