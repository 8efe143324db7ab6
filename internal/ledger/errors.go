// Package ledger holds the error taxonomy and shared contracts of the
// commission and inventory ledger engine. Every failure is scoped to a
// single settlement attempt; nothing here is fatal to the process.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Code string

const (
	// CodeRuleNotFound means no commission rule applies. Callers treat it
	// as "no commission owed", not a failure.
	CodeRuleNotFound Code = "rule_not_found"
	// CodeAmbiguousRule is a tenant configuration conflict: more than one
	// rule matched at the same specificity. Blocks that role only.
	CodeAmbiguousRule Code = "ambiguous_rule"
	// CodeInsufficientStock blocks the whole inventory consumption step;
	// the caller decides order disposition.
	CodeInsufficientStock Code = "insufficient_stock"
	// CodeInvalidTransition rejects an illegal status change; the original
	// state is preserved.
	CodeInvalidTransition Code = "invalid_transition"
	// CodeRetryable marks a transient store failure. Re-attempting with
	// the same order ID is safe thanks to the idempotency guards.
	CodeRetryable Code = "retryable"
	// CodeDuplicateOperation is an idempotent no-op, reported as success
	// to callers.
	CodeDuplicateOperation Code = "duplicate_operation"
	CodeInvalidArgument    Code = "invalid_argument"
	CodeNotFound           Code = "not_found"
	CodeInternal           Code = "internal"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func E(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the taxonomy code, defaulting to internal.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Transient postgres failures that a caller should retry: serialization
// failure, deadlock detected, lock not available.
var retryableSQLStates = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
}

// Classify maps store-level failures onto the taxonomy. Engine errors that
// already carry a code pass through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(CodeRetryable, err, "store transaction timed out")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && retryableSQLStates[pgErr.Code] {
		return Wrap(CodeRetryable, err, "store contention")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Wrap(CodeNotFound, err, "record not found")
	}
	return err
}
