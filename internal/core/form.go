package core

import "strings"

// DraftInput holds the raw values the creation form collects.
type DraftInput struct {
	UserID        string
	Date          string
	Description   string
	Amount        string
	Category      string
	PaymentMethod string
	Type          string
}

// ParseDraft validates raw form input into a draft. Every failure wraps
// ErrValidation and is reported before any remote call is attempted.
func ParseDraft(in DraftInput) (Draft, error) {
	t, err := ParseRecordType(in.Type)
	if err != nil {
		return Draft{}, err
	}
	amount, err := ParseMoney(in.Amount)
	if err != nil {
		return Draft{}, err
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return Draft{}, err
	}
	category, err := ParseCategory(in.Category)
	if err != nil {
		return Draft{}, err
	}
	method, err := ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return Draft{}, err
	}
	d := Draft{
		UserID:        strings.TrimSpace(in.UserID),
		Date:          date,
		Description:   strings.TrimSpace(in.Description),
		Amount:        amount,
		Category:      category,
		PaymentMethod: method,
		Type:          t,
	}
	if err := d.Validate(); err != nil {
		return Draft{}, err
	}
	return d, nil
}
