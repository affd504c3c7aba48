package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finrecords/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "", nil)
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "sheet-id", "", nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}

	tests := []struct {
		name       string
		inline     string
		file       string
		adc        string
		wantSource string
		wantErr    bool
	}{
		{name: "inline wins", inline: `{"inline":true}`, file: path, wantSource: "inline"},
		{name: "service account file", file: path, wantSource: "file"},
		{name: "application default path", adc: path, wantSource: "file"},
		{name: "unreadable file", file: filepath.Join(dir, "missing.json"), wantErr: true},
		{name: "nothing set", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", tt.inline)
			t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", tt.file)
			t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", tt.adc)

			data, source, err := credentialsFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if source != tt.wantSource || len(data) == 0 {
				t.Errorf("got source %q (%d bytes), want %q", source, len(data), tt.wantSource)
			}
		})
	}
}

func TestClient_RequiresService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Records"}

	if _, err := c.Upsert(context.Background(), core.FinancialRecord{}, 1); !core.IsValidation(err) {
		t.Errorf("expected validation error for missing id, got %v", err)
	}
	if _, err := c.Upsert(context.Background(), core.FinancialRecord{ID: "a"}, 1); err == nil {
		t.Error("expected error with nil service")
	}
	if err := c.Remove(context.Background(), "a"); err == nil {
		t.Error("expected error with nil service")
	}
}

func TestRecordRow(t *testing.T) {
	r := core.FinancialRecord{
		ID:            "r1",
		UserID:        "u1",
		Date:          core.NewDate(2025, 2, 3),
		Description:   "rent",
		Amount:        core.Money{Cents: 120050},
		Category:      core.Rent,
		PaymentMethod: core.BankTransfer,
		Type:          core.Expense,
	}
	row := recordRow(r, 4)
	if len(row) != len(header) {
		t.Fatalf("row has %d columns, header has %d", len(row), len(header))
	}
	want := []any{"r1", "u1", "2025-02-03", "rent", 1200.5, "Rent", "Bank Transfer", "Expense", int64(4)}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %v = %v, want %v", header[i], row[i], want[i])
		}
	}
}

func TestIndexRows(t *testing.T) {
	values := [][]any{
		{"ID"},
		{"r1"},
		{},
		{" r2 "},
		{""},
	}
	index, count := indexRows(values)
	if count != 5 {
		t.Errorf("expected 5 rows in use, got %d", count)
	}
	if len(index) != 2 || index["r1"] != 2 || index["r2"] != 4 {
		t.Errorf("unexpected index: %v", index)
	}

	index, count = indexRows(nil)
	if count != 0 || len(index) != 0 {
		t.Errorf("expected empty index, got %v (%d)", index, count)
	}
}

func TestRowRange(t *testing.T) {
	c := &Client{sheetName: "Records"}
	if got := c.rowRange(7); got != "Records!A7:I7" {
		t.Errorf("rowRange(7) = %q", got)
	}
}

func TestInvalidateRowCache(t *testing.T) {
	c := &Client{
		rowIndex:           map[string]int{"a": 2},
		rowCount:           2,
		cacheExpiresAt:     time.Now().Add(time.Minute),
		cacheValidDuration: defaultCacheDuration,
	}

	c.mu.Lock()
	c.invalidateLocked()
	c.mu.Unlock()

	if c.rowIndex != nil {
		t.Error("row index should be dropped")
	}
	if time.Now().Before(c.cacheExpiresAt) {
		t.Error("cache should be expired after invalidation")
	}
}
