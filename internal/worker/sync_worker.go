package worker

import (
	"context"
	"fmt"
	"time"

	"finrecords/internal/amqp"
	"finrecords/internal/core"
	"finrecords/internal/log"
	"finrecords/internal/sheets"
	"finrecords/internal/storage"
)

// RecordSource is the part of the SQLite repository the worker reads and
// updates sync bookkeeping through.
type RecordSource interface {
	GetRecord(ctx context.Context, id string) (storage.StoredRecord, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.StoredRecord, error)
	MarkSynced(ctx context.Context, id string, version int64) error
	MarkSyncError(ctx context.Context, id string) error
}

// SyncWorker mirrors confirmed record changes from SQLite into a spreadsheet.
type SyncWorker struct {
	store     RecordSource
	mirror    sheets.RecordMirror
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(store RecordSource, mirror sheets.RecordMirror, batchSize int, logger *log.Logger) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange processes a single change message from AMQP. A create or
// update whose stored version has already moved past the message is
// skipped; the later message mirrors it.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	w.logger.InfoContext(ctx, "Processing change message",
		log.FieldRecordID, msg.ID,
		log.FieldOperation, string(msg.Op),
		log.FieldVersion, msg.Version)

	if msg.Op == amqp.OpDeleted {
		return w.removeFromMirror(ctx, msg)
	}

	stored, err := w.store.GetRecord(ctx, msg.ID)
	if core.IsNotFound(err) {
		// Deleted after the message was sent; its delete message follows.
		w.logger.WarnContext(ctx, "Record no longer stored, skipping",
			log.FieldRecordID, msg.ID,
			log.FieldVersion, msg.Version)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}
	if stored.Version > msg.Version {
		w.logger.DebugContext(ctx, "Stored record is newer than message, skipping",
			log.FieldRecordID, msg.ID,
			"stored_version", stored.Version,
			log.FieldVersion, msg.Version)
		return nil
	}
	return w.syncRecord(ctx, stored)
}

func (w *SyncWorker) removeFromMirror(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	if err := w.mirror.Remove(ctx, msg.ID); err != nil {
		w.logger.LogError(ctx, "Failed to remove mirrored record", err, log.OpDelete,
			log.NewFields().WithRecord(*msg.Record))
		return fmt.Errorf("remove mirrored record: %w", err)
	}
	w.logger.InfoContext(ctx, "Removed mirrored record",
		log.FieldRecordID, msg.ID,
		log.FieldUserID, msg.UserID)
	return nil
}

// ProcessPending mirrors records still marked pending or failed. It backs
// up the message feed in case messages were lost.
func (w *SyncWorker) ProcessPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.store.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending records", log.FieldCount, len(pending))

	for _, rec := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if err := w.syncRecord(ctx, rec); err != nil {
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

// StartupSyncCheck runs a larger pending sweep when the worker starts,
// to recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.ProcessPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		w.logger.InfoContext(ctx, "No pending records found on startup")
		return nil
	}
	w.logger.InfoContext(ctx, "Startup sync completed",
		"synced", synced,
		"errors", failed)
	return nil
}

// RunPendingSweep calls ProcessPending every interval until ctx ends.
func (w *SyncWorker) RunPendingSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, _, err := w.ProcessPending(ctx, w.batchSize); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Pending sweep failed", log.FieldError, err.Error())
			}
		}
	}
}

func (w *SyncWorker) syncRecord(ctx context.Context, rec storage.StoredRecord) error {
	ref, err := w.mirror.Upsert(ctx, rec.FinancialRecord, rec.Version)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, rec.ID); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error",
				log.FieldRecordID, rec.ID,
				log.FieldError, markErr.Error())
		}
		w.logger.LogError(ctx, "Failed to mirror record", err, log.OpMirror,
			log.NewFields().WithRecord(rec.FinancialRecord))
		return fmt.Errorf("mirror record: %w", err)
	}

	// The mirror write already happened; a bookkeeping failure only means
	// the next sweep writes the same row again.
	if err := w.store.MarkSynced(ctx, rec.ID, rec.Version); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced",
			log.FieldRecordID, rec.ID,
			log.FieldError, err.Error())
	}

	w.logger.InfoContext(ctx, "Mirrored record",
		log.FieldRecordID, rec.ID,
		log.FieldVersion, rec.Version,
		log.FieldSheetsRef, ref,
		log.FieldAmountCents, rec.Amount.Cents)
	return nil
}
