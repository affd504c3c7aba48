package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"finrecords/internal/core"
	"finrecords/internal/remote"

	_ "modernc.org/sqlite"
)

// Sync states of a stored record with respect to the spreadsheet mirror.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

var _ remote.RecordSync = (*SQLiteRepository)(nil)

// StoredRecord is a record together with its storage bookkeeping.
type StoredRecord struct {
	core.FinancialRecord
	Version    int64
	SyncStatus string
}

type SQLiteRepository struct {
	db    *sql.DB
	newID func() string
}

const recordColumns = `id, user_id, date, description, amount_cents, category, payment_method, type, version, sync_status`

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it to the latest schema.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, newID: uuid.NewString}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) FetchByOwner(ctx context.Context, userID string) ([]core.FinancialRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM financial_records WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query records of %s: %w", userID, err)
	}
	defer rows.Close()

	out := make([]core.FinancialRecord, 0)
	for rows.Next() {
		s, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s.FinancialRecord)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, d core.Draft) (core.FinancialRecord, error) {
	if err := d.Validate(); err != nil {
		return core.FinancialRecord{}, err
	}
	rec := d.Record(r.newID())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO financial_records (id, user_id, date, description, amount_cents, category, payment_method, type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Date.String(), rec.Description, rec.Amount.Cents,
		string(rec.Category), string(rec.PaymentMethod), string(rec.Type))
	if err != nil {
		return core.FinancialRecord{}, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, p core.Patch) (core.FinancialRecord, error) {
	if err := p.Validate(); err != nil {
		return core.FinancialRecord{}, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.FinancialRecord{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	cur, err := getRecord(ctx, tx, id)
	if err != nil {
		return core.FinancialRecord{}, err
	}
	next := p.Apply(cur.FinancialRecord)
	_, err = tx.ExecContext(ctx,
		`UPDATE financial_records
		 SET date = ?, description = ?, amount_cents = ?, category = ?, payment_method = ?, type = ?,
		     version = version + 1, sync_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		next.Date.String(), next.Description, next.Amount.Cents,
		string(next.Category), string(next.PaymentMethod), string(next.Type), SyncPending, id)
	if err != nil {
		return core.FinancialRecord{}, fmt.Errorf("update record %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.FinancialRecord{}, fmt.Errorf("commit update: %w", err)
	}
	return next, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) (core.FinancialRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.FinancialRecord{}, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	cur, err := getRecord(ctx, tx, id)
	if err != nil {
		return core.FinancialRecord{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM financial_records WHERE id = ?`, id); err != nil {
		return core.FinancialRecord{}, fmt.Errorf("delete record %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.FinancialRecord{}, fmt.Errorf("commit delete: %w", err)
	}
	return cur.FinancialRecord, nil
}

// GetRecord returns the stored record with its version and sync state.
func (r *SQLiteRepository) GetRecord(ctx context.Context, id string) (StoredRecord, error) {
	return getRecord(ctx, r.db, id)
}

// Version returns the current version of the record.
func (r *SQLiteRepository) Version(ctx context.Context, id string) (int64, error) {
	s, err := getRecord(ctx, r.db, id)
	if err != nil {
		return 0, err
	}
	return s.Version, nil
}

// GetPendingSync returns up to limit records not yet mirrored or whose last
// mirror attempt failed, oldest first.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]StoredRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM financial_records WHERE sync_status IN (?, ?) ORDER BY updated_at, rowid LIMIT ?`,
		SyncPending, SyncError, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending records: %w", err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		s, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkSynced flags the record as mirrored, unless it changed since version.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE financial_records SET sync_status = ?, synced_at = ? WHERE id = ? AND version = ?`,
		SyncSynced, time.Now().UTC().Format(time.RFC3339), id, version)
	if err != nil {
		return fmt.Errorf("mark %s synced: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE financial_records SET sync_status = ? WHERE id = ?`, SyncError, id)
	if err != nil {
		return fmt.Errorf("mark %s sync error: %w", id, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getRecord(ctx context.Context, q queryer, id string) (StoredRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM financial_records WHERE id = ?`, id)
	s, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRecord{}, fmt.Errorf("record %s: %w", id, core.ErrNotFound)
	}
	return s, err
}

func scanRecord(sc scanner) (StoredRecord, error) {
	var (
		s                            StoredRecord
		date, category, method, kind string
	)
	err := sc.Scan(&s.ID, &s.UserID, &date, &s.Description, &s.Amount.Cents,
		&category, &method, &kind, &s.Version, &s.SyncStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredRecord{}, err
		}
		return StoredRecord{}, fmt.Errorf("scan record: %w", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return StoredRecord{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	s.Date = d
	s.Category = core.Category(category)
	s.PaymentMethod = core.PaymentMethod(method)
	s.Type = core.RecordType(kind)
	return s, nil
}
