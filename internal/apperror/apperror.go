// Package apperror defines the typed errors returned by the business workflows.
// Every failure a caller can act on carries a Kind; the HTTP layer maps kinds to
// status codes and everything without a kind is treated as internal.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindValidation        Kind = "VALIDATION"
	KindStockInsufficient Kind = "STOCK_INSUFFICIENT"
	KindInvalidState      Kind = "INVALID_STATE"
	KindConcurrency       Kind = "CONCURRENCY_CONFLICT"
	KindOverReceipt       Kind = "OVER_RECEIPT"
	KindExceedsBalance    Kind = "EXCEEDS_BALANCE"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindInternal          Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StockShortage is attached to KindStockInsufficient errors.
type StockShortage struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Available   int    `json:"available"`
	Required    int    `json:"required"`
}

// ErrVersionConflict is wrapped by repositories when a compare-and-swap update
// matched no row.
var ErrVersionConflict = &Error{
	Kind:    KindConcurrency,
	Message: "the record was modified by another request, reload and retry",
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", entity), Details: map[string]string{"id": id}}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return New(KindInvalidState, format, args...)
}

func OverReceipt(format string, args ...interface{}) *Error {
	return New(KindOverReceipt, format, args...)
}

func ExceedsBalance(format string, args ...interface{}) *Error {
	return New(KindExceedsBalance, format, args...)
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func StockInsufficient(s StockShortage) *Error {
	return &Error{
		Kind:    KindStockInsufficient,
		Message: fmt.Sprintf("insufficient stock for product %s: available %d, required %d", s.ProductName, s.Available, s.Required),
		Details: s,
	}
}

func Concurrency(err error) *Error {
	return &Error{Kind: KindConcurrency, Message: ErrVersionConflict.Message, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
