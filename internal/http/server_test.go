package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"finrecords/internal/amqp"
	"finrecords/internal/core"
	"finrecords/internal/middleware/ratelimit"
	"finrecords/internal/remote/memory"
	"finrecords/internal/storage"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.RecordChangeMessage
	err  error
}

func (f *fakePublisher) PublishChange(_ context.Context, msg *amqp.RecordChangeMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	srv := NewServer(":0", store, nil, opts...)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

const createBody = `{"userId":"u1","date":"2025-01-10","description":"salary","amount":1000,"category":"Salary","paymentMethod":"Bank Transfer","type":"Income"}`

func decodeRecord(t *testing.T, rr *httptest.ResponseRecorder) core.FinancialRecord {
	t.Helper()
	var r core.FinancialRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return r
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodGet, "/healthz", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing middleware headers: %v", rr.Header())
	}
}

func TestRecordLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/financial-records/getAllByUserID/u1", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("empty list: %d %q", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/financial-records", createBody)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	created := decodeRecord(t, rr)
	if created.ID == "" || created.Amount.Cents != 100000 || created.Type != core.Income {
		t.Fatalf("unexpected created record: %+v", created)
	}

	rr = do(t, srv, http.MethodPut, "/financial-records/"+created.ID, `{"amount":"1,250.50","userId":"intruder"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rr.Code, rr.Body.String())
	}
	updated := decodeRecord(t, rr)
	if updated.Amount.Cents != 125050 || updated.UserID != "u1" || updated.Description != "salary" {
		t.Fatalf("unexpected updated record: %+v", updated)
	}

	rr = do(t, srv, http.MethodGet, "/financial-records/getAllByUserID/u1", "")
	var list []core.FinancialRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list) != 1 || list[0] != updated {
		t.Fatalf("unexpected list: %s err=%v", rr.Body.String(), err)
	}

	rr = do(t, srv, http.MethodDelete, "/financial-records/"+created.ID, "")
	if rr.Code != http.StatusOK || decodeRecord(t, rr).ID != created.ID {
		t.Fatalf("delete: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodDelete, "/financial-records/"+created.ID, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestRequestErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/financial-records", `{"userId":`, http.StatusBadRequest},
		{"missing user", http.MethodPost, "/financial-records", strings.Replace(createBody, `"u1"`, `""`, 1), http.StatusUnprocessableEntity},
		{"unknown category", http.MethodPost, "/financial-records", strings.Replace(createBody, `"Salary"`, `"Lottery"`, 1), http.StatusUnprocessableEntity},
		{"negative amount", http.MethodPost, "/financial-records", strings.Replace(createBody, `1000`, `-5`, 1), http.StatusUnprocessableEntity},
		{"update missing", http.MethodPut, "/financial-records/nope", `{"description":"x"}`, http.StatusNotFound},
		{"empty update", http.MethodPut, "/financial-records/nope", `{}`, http.StatusUnprocessableEntity},
		{"wrong method", http.MethodPatch, "/financial-records/x", `{}`, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rr.Code, rr.Body.String())
			}
			if tt.want != http.StatusMethodNotAllowed {
				var body map[string]string
				if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body["error"] == "" {
					t.Errorf("expected error body, got %q", rr.Body.String())
				}
			}
		})
	}
}

func TestPublishesChangesWithVersions(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()
	pub := &fakePublisher{}
	srv := NewServer(":0", repo, nil, WithPublisher(pub))
	defer srv.Shutdown(context.Background())

	created := decodeRecord(t, do(t, srv, http.MethodPost, "/financial-records", createBody))
	do(t, srv, http.MethodPut, "/financial-records/"+created.ID, `{"description":"bonus"}`)
	do(t, srv, http.MethodDelete, "/financial-records/"+created.ID, "")

	if len(pub.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(pub.msgs))
	}
	wantOps := []amqp.ChangeOp{amqp.OpCreated, amqp.OpUpdated, amqp.OpDeleted}
	wantVersions := []int64{1, 2, 2}
	for i, msg := range pub.msgs {
		if msg.Op != wantOps[i] || msg.Version != wantVersions[i] || msg.ID != created.ID || msg.UserID != "u1" {
			t.Errorf("message %d = %+v", i, msg)
		}
	}
	if pub.msgs[2].Record == nil || pub.msgs[2].Record.Description != "bonus" {
		t.Errorf("delete message should carry the removed record, got %+v", pub.msgs[2].Record)
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	srv, store := newTestServer(t, WithPublisher(pub))

	rr := do(t, srv, http.MethodPost, "/financial-records", createBody)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite publish failure, got %d", rr.Code)
	}
	if store.Len() != 1 || len(pub.msgs) != 1 {
		t.Fatalf("expected the record stored and one publish attempt")
	}
	if !strings.Contains(do(t, srv, http.MethodGet, "/metrics", "").Body.String(), "change_publish_failures_total 1") {
		t.Error("publish failure not counted")
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, WithRateLimit(ratelimit.Config{RequestsPerWindow: 2}))

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/financial-records", createBody); rr.Code != http.StatusCreated {
			t.Fatalf("request %d: %d", i, rr.Code)
		}
	}
	if rr := do(t, srv, http.MethodPost, "/financial-records", createBody); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/financial-records/getAllByUserID/u1", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads should not be limited, got %d", rr.Code)
	}
}

func TestListCacheInvalidatedByMutations(t *testing.T) {
	srv, store := newTestServer(t, WithListCache(10, time.Minute))
	list := func() []core.FinancialRecord {
		rr := do(t, srv, http.MethodGet, "/financial-records/getAllByUserID/u1", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("list status=%d", rr.Code)
		}
		var out []core.FinancialRecord
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		return out
	}

	if rr := do(t, srv, http.MethodPost, "/financial-records", createBody); rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	if got := list(); len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}

	// Written behind the server's back, so only visible once the entry is dropped.
	store.Seed(core.FinancialRecord{UserID: "u1", Date: core.NewDate(2025, 1, 2), Amount: core.Money{Cents: 100},
		Category: core.Food, PaymentMethod: core.Cash, Type: core.Expense})
	if got := list(); len(got) != 1 {
		t.Fatalf("expected cached list of 1, got %d", len(got))
	}

	if rr := do(t, srv, http.MethodPost, "/financial-records", createBody); rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	if got := list(); len(got) != 3 {
		t.Fatalf("expected 3 records after invalidation, got %d", len(got))
	}

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if !strings.Contains(rr.Body.String(), "list_cache_hits_total 1") {
		t.Fatalf("expected one cache hit in metrics:\n%s", rr.Body.String())
	}
}
