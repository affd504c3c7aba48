package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"finrecords/internal/core"
	"finrecords/internal/log"
	ports "finrecords/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultSheetName     = "Records"
	defaultCacheDuration = 2 * time.Minute
	lastColumn           = "I"
)

var header = []any{"ID", "User", "Date", "Description", "Amount", "Category", "Payment Method", "Type", "Version"}

var _ ports.RecordMirror = (*Client)(nil)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	// Row positions by record id, refreshed from column A when expired.
	mu                 sync.Mutex
	rowIndex           map[string]int
	rowCount           int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// New creates a Sheets mirror for the given spreadsheet using service
// account credentials from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string, logger *log.Logger) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = defaultSheetName
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	creds, source, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_source", source,
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		logger:             logger,
		cacheValidDuration: defaultCacheDuration,
	}, nil
}

// credentialsFromEnv returns the service account JSON and where it came from.
func credentialsFromEnv() ([]byte, string, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), "inline", nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, "", errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read service account file: %w", err)
	}
	return data, "file", nil
}

// Upsert writes r into its row, or into the next free row when the id has
// not been mirrored yet.
func (c *Client) Upsert(ctx context.Context, r core.FinancialRecord, version int64) (string, error) {
	if r.ID == "" {
		return "", fmt.Errorf("%w: mirrored record without id", core.ErrValidation)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.refreshLocked(ctx); err != nil {
		return "", err
	}

	row, ok := c.rowIndex[r.ID]
	if !ok {
		row = c.rowCount + 1
	}
	rng := c.rowRange(row)
	vr := &gsheet.ValueRange{Values: [][]any{recordRow(r, version)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidateLocked()
		return "", fmt.Errorf("update %s: %w", rng, err)
	}
	if !ok {
		c.rowIndex[r.ID] = row
		c.rowCount = row
	}
	return rng, nil
}

func (c *Client) Remove(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.refreshLocked(ctx); err != nil {
		return err
	}
	row, ok := c.rowIndex[id]
	if !ok {
		c.logger.DebugContext(ctx, "No mirrored row to remove", log.FieldRecordID, id)
		return nil
	}
	rng := c.rowRange(row)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	delete(c.rowIndex, id)
	return nil
}

// refreshLocked reloads the id column when the cached index has expired and
// writes the header row into an empty sheet.
func (c *Client) refreshLocked(ctx context.Context) error {
	if c.rowIndex != nil && time.Now().Before(c.cacheExpiresAt) {
		return nil
	}
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	index, count := indexRows(resp.Values)
	if count == 0 {
		hdr := fmt.Sprintf("%s!A1:%s1", c.sheetName, lastColumn)
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, hdr, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write header %s: %w", hdr, err)
		}
		count = 1
	}
	c.rowIndex = index
	c.rowCount = count
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return nil
}

func (c *Client) invalidateLocked() {
	c.rowIndex = nil
	c.cacheExpiresAt = time.Time{}
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", c.sheetName, row, lastColumn, row)
}
