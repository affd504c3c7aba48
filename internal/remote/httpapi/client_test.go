package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finrecords/internal/core"
)

const recordJSON = `{"_id":"r1","userId":"u1","date":"2025-01-10T00:00:00.000Z","description":"pay","amount":1000,"category":"Salary","paymentMethod":"Bank Transfer","type":"Income"}`

func TestClientFetchByOwner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/financial-records/getAllByUserID/u1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, "["+recordJSON+"]")
	}))
	defer srv.Close()

	got, err := New(srv.URL+"/", time.Second).FetchByOwner(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" || got[0].Amount.Cents != 100000 || got[0].Type != core.Income {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestClientCreateSendsDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/financial-records" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if _, ok := body["_id"]; ok {
			t.Errorf("draft must not carry an id: %v", body)
		}
		if body["amount"] != float64(1000) {
			t.Errorf("unexpected amount: %v", body["amount"])
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, recordJSON)
	}))
	defer srv.Close()

	d := core.Draft{
		UserID:        "u1",
		Date:          core.NewDate(2025, 1, 10),
		Description:   "pay",
		Amount:        core.Money{Cents: 100000},
		Category:      core.Salary,
		PaymentMethod: core.BankTransfer,
		Type:          core.Income,
	}
	got, err := New(srv.URL, 0).Create(context.Background(), d)
	if err != nil || got.ID != "r1" {
		t.Fatalf("unexpected create: %+v err=%v", got, err)
	}
}

func TestClientUpdateSendsOnlyPatchedFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/financial-records/r1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		if string(data) != `{"description":"rent"}` {
			t.Errorf("unexpected body: %s", data)
		}
		io.WriteString(w, strings.Replace(recordJSON, `"pay"`, `"rent"`, 1))
	}))
	defer srv.Close()

	desc := "rent"
	got, err := New(srv.URL, 0).Update(context.Background(), "r1", core.Patch{Description: &desc})
	if err != nil || got.Description != "rent" {
		t.Fatalf("unexpected update: %+v err=%v", got, err)
	}
}

func TestClientClassifiesErrors(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusNotFound, core.IsNotFound},
		{http.StatusUnprocessableEntity, core.IsValidation},
		{http.StatusInternalServerError, core.IsNetwork},
		{http.StatusBadGateway, core.IsNetwork},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			io.WriteString(w, `{"error":"nope"}`)
		}))
		_, err := New(srv.URL, 0).Delete(context.Background(), "r1")
		srv.Close()
		if !tc.check(err) {
			t.Fatalf("status %d: unexpected classification of %v", tc.status, err)
		}
		if !strings.Contains(err.Error(), "nope") {
			t.Fatalf("status %d: expected server message in %q", tc.status, err)
		}
	}
}

func TestClientTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := New(url, 0).FetchByOwner(context.Background(), "u1"); !core.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestClientMalformedResponseIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	defer srv.Close()

	if _, err := New(srv.URL, 0).FetchByOwner(context.Background(), "u1"); !core.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
}
