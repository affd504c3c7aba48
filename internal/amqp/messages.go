package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finrecords/internal/core"
)

// ChangeOp names the mutation a change message reports.
type ChangeOp string

const (
	OpCreated ChangeOp = "create"
	OpUpdated ChangeOp = "update"
	OpDeleted ChangeOp = "delete"
)

func (o ChangeOp) Valid() bool {
	return o == OpCreated || o == OpUpdated || o == OpDeleted
}

// RecordChangeMessage announces a confirmed mutation of a record. Creates
// and updates carry only the id and version; the worker reads the record
// from the database. Deletes carry the removed record since it no longer
// exists there.
type RecordChangeMessage struct {
	ID        string                `json:"id"`
	UserID    string                `json:"userId"`
	Op        ChangeOp              `json:"op"`
	Version   int64                 `json:"version"`
	Record    *core.FinancialRecord `json:"record,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// NewRecordChangeMessage builds the message for op applied to r.
func NewRecordChangeMessage(op ChangeOp, r core.FinancialRecord, version int64) *RecordChangeMessage {
	msg := &RecordChangeMessage{
		ID:        r.ID,
		UserID:    r.UserID,
		Op:        op,
		Version:   version,
		Timestamp: time.Now(),
	}
	if op == OpDeleted {
		msg.Record = &r
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangeMessageFromJSON decodes and checks a message.
func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("change message without record id")
	}
	if !msg.Op.Valid() {
		return nil, fmt.Errorf("change message with unknown op %q", msg.Op)
	}
	if msg.Op == OpDeleted && msg.Record == nil {
		return nil, fmt.Errorf("delete message for %s without record", msg.ID)
	}
	return &msg, nil
}
