package core

import "errors"

// Error taxonomy shared by the form boundary, the record store and the
// remote adapters. Adapters wrap these with fmt.Errorf("...: %w", ...).
var (
	ErrValidation = errors.New("validation failure")
	ErrNotFound   = errors.New("record not found")
	ErrNetwork    = errors.New("network failure")
)

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }
