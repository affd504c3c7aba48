package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finrecords/internal/amqp"
	"finrecords/internal/core"
	"finrecords/internal/log"
	"finrecords/internal/middleware/trace"
)

// versioner is implemented by stores that track a record version.
type versioner interface {
	Version(ctx context.Context, id string) (int64, error)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	records, err := s.listByOwner(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	if records == nil {
		records = []core.FinancialRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var d core.Draft
	if err := decodeBody(w, r, &d); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	if err := d.Validate(); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	rec, err := s.store.Create(r.Context(), d)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.invalidate(rec.UserID)
	s.count(&s.counters.created)
	s.announce(r.Context(), amqp.OpCreated, rec)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) listByOwner(ctx context.Context, userID string) ([]core.FinancialRecord, error) {
	if s.lists == nil {
		return s.store.FetchByOwner(ctx, userID)
	}
	records, _, err := s.lists.GetOrLoad(ctx, userID, func(ctx context.Context) ([]core.FinancialRecord, error) {
		return s.store.FetchByOwner(ctx, userID)
	})
	return records, err
}

func (s *Server) invalidate(userID string) {
	if s.lists != nil {
		s.lists.Invalidate(userID)
	}
}

// handleUpdate applies the fields present in the body. Amounts given as
// strings may carry comma thousands separators.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var p core.Patch
	if err := decodeBody(w, r, &p); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}

	rec, err := s.store.Update(r.Context(), id, p)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidate(rec.UserID)
	s.count(&s.counters.updated)
	s.announce(r.Context(), amqp.OpUpdated, rec)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	version := s.version(r.Context(), id)

	rec, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.invalidate(rec.UserID)
	s.count(&s.counters.deleted)
	s.publish(r.Context(), amqp.NewRecordChangeMessage(amqp.OpDeleted, rec, version))
	writeJSON(w, http.StatusOK, rec)
}

// announce publishes a create or update at the record's stored version.
func (s *Server) announce(ctx context.Context, op amqp.ChangeOp, rec core.FinancialRecord) {
	s.publish(ctx, amqp.NewRecordChangeMessage(op, rec, s.version(ctx, rec.ID)))
}

// publish sends msg when a publisher is configured. Failures are logged;
// the worker's pending sweep mirrors the record later.
func (s *Server) publish(ctx context.Context, msg *amqp.RecordChangeMessage) {
	logger := log.FromContext(ctx)
	logger.LogRecordChange(ctx, string(msg.Op), recordOf(msg), uint64(msg.Version))
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, msg); err != nil {
		s.count(&s.counters.publishFailures)
		logger.LogError(ctx, "Failed to publish record change", err, log.OpPublish,
			log.NewFields().WithRecordID(msg.ID).WithUser(msg.UserID))
	}
}

func (s *Server) version(ctx context.Context, id string) int64 {
	if s.publisher == nil {
		return 0
	}
	v, ok := s.store.(versioner)
	if !ok {
		return 1
	}
	n, err := v.Version(ctx, id)
	if err != nil {
		return 0
	}
	return n
}

func recordOf(msg *amqp.RecordChangeMessage) core.FinancialRecord {
	if msg.Record != nil {
		return *msg.Record
	}
	return core.FinancialRecord{ID: msg.ID, UserID: msg.UserID}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"publisher": "disabled",
		"rate_limiter": map[string]any{
			"active_clients": s.limiter.ActiveClients(),
		},
	}
	if s.publisher != nil {
		checks["publisher"] = "configured"
	}
	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	tm := s.tracer.GetMetrics()
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric("http_response_time_microseconds", "gauge", "Moving average response time", tm.AverageResponseTime)
	metric("records_created_total", "counter", "Records created", atomic.LoadInt64(&s.counters.created))
	metric("records_updated_total", "counter", "Records updated", atomic.LoadInt64(&s.counters.updated))
	metric("records_deleted_total", "counter", "Records deleted", atomic.LoadInt64(&s.counters.deleted))
	metric("change_publish_failures_total", "counter", "Change messages that failed to publish", atomic.LoadInt64(&s.counters.publishFailures))
	metric("rate_limit_rejections_total", "counter", "Requests refused by the rate limiter", s.limiter.Rejected())
	if s.lists != nil {
		hits, misses := s.lists.Stats()
		metric("list_cache_hits_total", "counter", "Record lists served from the cache", hits)
		metric("list_cache_misses_total", "counter", "Record lists loaded from the store", misses)
		metric("list_cache_entries", "gauge", "Record lists currently cached", s.lists.Size())
	}
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

var errMalformedBody = errors.New("malformed request body")

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if core.IsValidation(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status and a {"error": ...} body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errMalformedBody):
		status = http.StatusBadRequest
	case core.IsValidation(err):
		status = http.StatusUnprocessableEntity
	case core.IsNotFound(err):
		status = http.StatusNotFound
	}

	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithRequestID(trace.RequestID(r.Context()))
	if id := r.PathValue("id"); id != "" {
		fields.WithRecordID(id)
	}
	if status >= 500 {
		logger.LogError(r.Context(), "Request failed", err, op, fields)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.WithError(err).WithOperation(op).ToSlice()...)
	}

	msg := err.Error()
	if status >= 500 {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
