package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Wire representation shared by the HTTP API and its client:
//
//	{"_id", "userId", "date": "YYYY-MM-DD", "description", "amount": number,
//	 "category", "paymentMethod", "type": "Income"|"Expense"}
//
// Decoding also accepts "id" in place of "_id", RFC 3339 timestamps for
// the date, and amounts given as strings with thousands separators.

type wireRecordOut struct {
	ID            string      `json:"_id,omitempty"`
	UserID        string      `json:"userId"`
	Date          string      `json:"date"`
	Description   string      `json:"description"`
	Amount        json.Number `json:"amount"`
	Category      string      `json:"category"`
	PaymentMethod string      `json:"paymentMethod"`
	Type          string      `json:"type"`
}

type wireRecordIn struct {
	MongoID       string          `json:"_id"`
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Date          string          `json:"date"`
	Description   string          `json:"description"`
	Amount        json.RawMessage `json:"amount"`
	Category      string          `json:"category"`
	PaymentMethod string          `json:"paymentMethod"`
	Type          string          `json:"type"`
}

type wirePatch struct {
	Date          *string         `json:"date,omitempty"`
	Description   *string         `json:"description,omitempty"`
	Amount        json.RawMessage `json:"amount,omitempty"`
	Category      *string         `json:"category,omitempty"`
	PaymentMethod *string         `json:"paymentMethod,omitempty"`
	Type          *string         `json:"type,omitempty"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	v, err := decodeAmount(data)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (r FinancialRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecordOut{
		ID:            r.ID,
		UserID:        r.UserID,
		Date:          r.Date.String(),
		Description:   r.Description,
		Amount:        json.Number(r.Amount.String()),
		Category:      string(r.Category),
		PaymentMethod: string(r.PaymentMethod),
		Type:          string(r.Type),
	})
}

func (r *FinancialRecord) UnmarshalJSON(data []byte) error {
	var in wireRecordIn
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: decode record: %v", ErrValidation, err)
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return err
	}
	amount, err := decodeAmount(in.Amount)
	if err != nil {
		return err
	}
	id := in.MongoID
	if id == "" {
		id = in.ID
	}
	*r = FinancialRecord{
		ID:            id,
		UserID:        in.UserID,
		Date:          date,
		Description:   in.Description,
		Amount:        amount,
		Category:      Category(in.Category),
		PaymentMethod: PaymentMethod(in.PaymentMethod),
		Type:          RecordType(in.Type),
	}
	return nil
}

func (d Draft) MarshalJSON() ([]byte, error) {
	return d.Record("").MarshalJSON()
}

// UnmarshalJSON decodes a draft, ignoring any id the body carries.
func (d *Draft) UnmarshalJSON(data []byte) error {
	var r FinancialRecord
	if err := r.UnmarshalJSON(data); err != nil {
		return err
	}
	*d = r.Draft()
	return nil
}

func (p Patch) MarshalJSON() ([]byte, error) {
	var out wirePatch
	if p.Date != nil {
		s := p.Date.String()
		out.Date = &s
	}
	out.Description = p.Description
	if p.Amount != nil {
		out.Amount = json.RawMessage(p.Amount.String())
	}
	if p.Category != nil {
		s := string(*p.Category)
		out.Category = &s
	}
	if p.PaymentMethod != nil {
		s := string(*p.PaymentMethod)
		out.PaymentMethod = &s
	}
	if p.Type != nil {
		s := string(*p.Type)
		out.Type = &s
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the fields present in data. Keys that are not
// patchable (the ids and userId) are ignored.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var in wirePatch
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: decode patch: %v", ErrValidation, err)
	}
	var out Patch
	if in.Date != nil {
		d, err := ParseDate(*in.Date)
		if err != nil {
			return err
		}
		out.Date = &d
	}
	out.Description = in.Description
	if len(in.Amount) > 0 && !bytes.Equal(in.Amount, []byte("null")) {
		m, err := decodeAmount(in.Amount)
		if err != nil {
			return err
		}
		out.Amount = &m
	}
	if in.Category != nil {
		c := Category(*in.Category)
		out.Category = &c
	}
	if in.PaymentMethod != nil {
		pm := PaymentMethod(*in.PaymentMethod)
		out.PaymentMethod = &pm
	}
	if in.Type != nil {
		t := RecordType(*in.Type)
		out.Type = &t
	}
	*p = out
	return nil
}

// decodeAmount accepts a JSON number or a JSON string. Strings have their
// thousands separators stripped first.
func decodeAmount(raw json.RawMessage) (Money, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Money{}, ErrInvalidAmount
	}
	s := string(raw)
	if raw[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return Money{}, ErrInvalidAmount
		}
		s = strings.ReplaceAll(strings.TrimSpace(unq), ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}
