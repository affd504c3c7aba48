package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"finrecords/internal/core"
)

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentRecords})
	l.Info("hello", FieldCount, 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry[FieldComponent] != ComponentRecords {
		t.Fatalf("expected component %q, got %v", ComponentRecords, entry[FieldComponent])
	}
	if entry[FieldCount] != float64(3) {
		t.Fatalf("expected count 3, got %v", entry[FieldCount])
	}
}

func TestErrorTypeOf(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("create: %w", core.ErrValidation), ErrorTypeValidation},
		{fmt.Errorf("update: %w", core.ErrNotFound), ErrorTypeNotFound},
		{fmt.Errorf("fetch: %w", core.ErrNetwork), ErrorTypeNetwork},
		{errors.New("boom"), ErrorTypeInternal},
	}
	for _, tc := range cases {
		if got := ErrorTypeOf(tc.err); got != tc.want {
			t.Fatalf("%v: expected %q, got %q", tc.err, tc.want, got)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("warn") != slog.LevelWarn || ParseLevel("") != slog.LevelInfo {
		t.Fatal("unexpected level mapping")
	}
}

func TestMiddlewareCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})
	h := Middleware(l, func(*http.Request) string { return "req_abc" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry[FieldRequestID] != "req_abc" {
		t.Fatalf("expected request id, got %v", entry[FieldRequestID])
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %+v", l)
	}
}
