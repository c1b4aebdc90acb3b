package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                    "/",
		"/":                   "/",
		"/metrics":            "/metrics",
		"/login":              "/login",
		"/welcome?x=1":        "/welcome",
		"/static/css/app.css": "/static/*",
		"/static/":            "/static/*",
		"/wp-admin":           "other",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentPassesStatusThrough(t *testing.T) {
	Init()
	Init()
	handler := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/welcome", nil))
	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}

	TokenIssued("ok")
	mrr := httptest.NewRecorder()
	Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := mrr.Body.String()
	for _, name := range []string{"http_requests_total", "sso_tokens_issued_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}

func TestInstrumentReleasesInFlightOnPanic(t *testing.T) {
	Init()
	before := testutil.ToFloat64(httpInFlight)
	handler := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	func() {
		defer func() { _ = recover() }()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/welcome", nil))
	}()
	if after := testutil.ToFloat64(httpInFlight); after != before {
		t.Fatalf("in-flight gauge leaked: before %v, after %v", before, after)
	}
}

func TestSetBuildExported(t *testing.T) {
	Init()
	SetBuild("1.2.3", "abc123")
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	if !strings.Contains(body, `sso_build_info{commit="abc123"`) || !strings.Contains(body, `version="1.2.3"`) {
		t.Fatalf("build info missing from metrics output")
	}
}

func TestLogRequestWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := AccessLogger()
	original := l.Out
	SetAccessOutput(&buf)
	defer SetAccessOutput(original)

	LogRequest(map[string]any{"method": "GET", "path": "/login", "status": 200})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log is not valid JSON: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg", "method", "path", "status"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("expected key %q in log entry", key)
		}
	}
	if entry["msg"] != "request_complete" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
}
