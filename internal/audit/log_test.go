package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"wvjwtsso.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Out
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithSubject(ctx, "alice@example.com")

	if err := LogEvent(ctx, EventTokenIssued, map[string]any{"kid": "kid-1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := bytes.TrimSpace(buf.Bytes())
	if len(line) == 0 {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != EventTokenIssued {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["subject"] != "alice@example.com" {
		t.Fatalf("unexpected subject: %v", entry["subject"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["kid"] != "kid-1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
