package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"wvjwtsso.org/internal/obs"
)

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	subjectKey   ctxKey = "audit_subject"
)

// Event names.
const (
	EventLogin         = "sso.login"
	EventLogout        = "sso.logout"
	EventTokenIssued   = "sso.token.issued"
	EventTokenFailed   = "sso.token.failed"
	EventWelcomeDenied = "sso.welcome.denied"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSubject records the email the request acts for.
func WithSubject(ctx context.Context, email string) context.Context {
	email = strings.TrimSpace(email)
	if email == "" {
		return ctx
	}
	return context.WithValue(ctx, subjectKey, email)
}

func subjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(subjectKey).(string)
	return v
}

// LogEvent writes an audit log entry enriched with request and subject context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := logrus.Fields{
		"type":  "audit",
		"event": event,
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if sub := subjectFromContext(ctx); sub != "" {
		entry["subject"] = sub
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	entry["fields"] = copyFields

	obs.Logger().WithFields(entry).Info(event)
	return nil
}
