package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Income  RecordType = "Income"
	Expense RecordType = "Expense"
)

const (
	Food               Category = "Food"
	Rent               Category = "Rent"
	Salary             Category = "Salary"
	Utilities          Category = "Utilities"
	Transportation     Category = "Transportation"
	HealthAndInsurance Category = "Health and Insurance"
	Education          Category = "Education"
	Savings            Category = "Savings"
	Investment         Category = "Investment"
	Entertainment      Category = "Entertainment"
	OtherCategory      Category = "Other"
)

const (
	CreditCard         PaymentMethod = "Credit Card"
	DebitCard          PaymentMethod = "Debit Card"
	UPI                PaymentMethod = "UPI"
	Cash               PaymentMethod = "Cash"
	Cheque             PaymentMethod = "Cheque"
	BankTransfer       PaymentMethod = "Bank Transfer"
	OtherPaymentMethod PaymentMethod = "Other"
)

type (
	RecordType    string
	Category      string
	PaymentMethod string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// FinancialRecord is a canonical record as confirmed by the remote store.
	FinancialRecord struct {
		ID            string
		UserID        string
		Date          Date
		Description   string
		Amount        Money // magnitude only, sign comes from Type
		Category      Category
		PaymentMethod PaymentMethod
		Type          RecordType
	}

	// Draft is a client-authored record that has not been persisted yet.
	Draft struct {
		UserID        string
		Date          Date
		Description   string
		Amount        Money
		Category      Category
		PaymentMethod PaymentMethod
		Type          RecordType
	}

	// Patch is a partial field set for an update. Nil fields are left alone.
	// ID and UserID are never patchable.
	Patch struct {
		Date          *Date
		Description   *string
		Amount        *Money
		Category      *Category
		PaymentMethod *PaymentMethod
		Type          *RecordType
	}
)

// Categories lists the closed category set in display order.
var Categories = []Category{
	Food, Rent, Salary, Utilities, Transportation, HealthAndInsurance,
	Education, Savings, Investment, Entertainment, OtherCategory,
}

// PaymentMethods lists the closed payment method set in display order.
var PaymentMethods = []PaymentMethod{
	CreditCard, DebitCard, UPI, Cash, Cheque, BankTransfer, OtherPaymentMethod,
}

// RecordTypes lists both record types.
var RecordTypes = []RecordType{Income, Expense}

var (
	ErrInvalidDate          = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidAmount        = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidType          = fmt.Errorf("%w: type must be Income or Expense", ErrValidation)
	ErrInvalidCategory      = fmt.Errorf("%w: unknown category", ErrValidation)
	ErrInvalidPaymentMethod = fmt.Errorf("%w: unknown payment method", ErrValidation)
	ErrMissingUser          = fmt.Errorf("%w: missing user id", ErrValidation)
	ErrEmptyPatch           = fmt.Errorf("%w: no fields to update", ErrValidation)
)

func (t RecordType) Valid() bool {
	return t == Income || t == Expense
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

func (p PaymentMethod) Valid() bool {
	for _, v := range PaymentMethods {
		if v == p {
			return true
		}
	}
	return false
}

func ParseRecordType(s string) (RecordType, error) {
	t := RecordType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	p := PaymentMethod(strings.TrimSpace(s))
	if !p.Valid() {
		return "", ErrInvalidPaymentMethod
	}
	return p, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day of t, keeping the calendar date t has in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.UserID) == "" {
		return ErrMissingUser
	}
	if err := d.Date.Validate(); err != nil {
		return err
	}
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if !d.Type.Valid() {
		return ErrInvalidType
	}
	if !d.Category.Valid() {
		return ErrInvalidCategory
	}
	if !d.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// Record turns the draft into a canonical record carrying id.
func (d Draft) Record(id string) FinancialRecord {
	return FinancialRecord{
		ID:            id,
		UserID:        d.UserID,
		Date:          d.Date,
		Description:   d.Description,
		Amount:        d.Amount,
		Category:      d.Category,
		PaymentMethod: d.PaymentMethod,
		Type:          d.Type,
	}
}

// Draft returns the record without its id.
func (r FinancialRecord) Draft() Draft {
	return Draft{
		UserID:        r.UserID,
		Date:          r.Date,
		Description:   r.Description,
		Amount:        r.Amount,
		Category:      r.Category,
		PaymentMethod: r.PaymentMethod,
		Type:          r.Type,
	}
}

// Signed returns the amount in cents with the sign implied by Type.
func (r FinancialRecord) Signed() int64 {
	if r.Type == Expense {
		return -r.Amount.Cents
	}
	return r.Amount.Cents
}

func (p Patch) IsEmpty() bool {
	return p.Date == nil && p.Description == nil && p.Amount == nil &&
		p.Category == nil && p.PaymentMethod == nil && p.Type == nil
}

func (p Patch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return err
		}
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidType
	}
	if p.Category != nil && !p.Category.Valid() {
		return ErrInvalidCategory
	}
	if p.PaymentMethod != nil && !p.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// Apply returns r with every field set in p overwritten. ID and UserID of r
// are kept.
func (p Patch) Apply(r FinancialRecord) FinancialRecord {
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.PaymentMethod != nil {
		r.PaymentMethod = *p.PaymentMethod
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	return r
}

// PatchFrom builds a patch carrying every mutable field of r.
func PatchFrom(r FinancialRecord) Patch {
	return Patch{
		Date:          &r.Date,
		Description:   &r.Description,
		Amount:        &r.Amount,
		Category:      &r.Category,
		PaymentMethod: &r.PaymentMethod,
		Type:          &r.Type,
	}
}
