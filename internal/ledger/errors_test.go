package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyPassesTaxonomyErrorsThrough(t *testing.T) {
	orig := E(CodeInsufficientStock, "item short")
	assert.Same(t, orig, Classify(orig).(*Error))

	wrapped := fmt.Errorf("settle: %w", E(CodeAmbiguousRule, "two rules"))
	assert.Equal(t, CodeAmbiguousRule, CodeOf(Classify(wrapped)))
}

func TestClassifyContextExpiry(t *testing.T) {
	assert.Equal(t, CodeRetryable, CodeOf(Classify(context.DeadlineExceeded)))
	assert.Equal(t, CodeRetryable, CodeOf(Classify(context.Canceled)))
}

func TestClassifyPostgresContention(t *testing.T) {
	for _, state := range []string{"40001", "40P01", "55P03"} {
		err := Classify(&pgconn.PgError{Code: state})
		assert.Equal(t, CodeRetryable, CodeOf(err), "sqlstate %s", state)
	}

	// Other SQL states pass through unclassified.
	uniqueViolation := &pgconn.PgError{Code: "23505"}
	assert.Equal(t, CodeInternal, CodeOf(Classify(uniqueViolation)))
}

func TestClassifyRecordNotFound(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(Classify(gorm.ErrRecordNotFound)))
}

func TestCodeOfUnknownError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestErrorFormatting(t *testing.T) {
	plain := E(CodeRuleNotFound, "no rule for role %s", "doctor")
	assert.Equal(t, "rule_not_found: no rule for role doctor", plain.Error())

	cause := errors.New("connection reset")
	wrapped := Wrap(CodeRetryable, cause, "store contention")
	assert.True(t, errors.Is(wrapped, cause))
	assert.True(t, IsCode(wrapped, CodeRetryable))
}
