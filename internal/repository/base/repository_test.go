package base

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	exclusion := fmt.Errorf("create slot: %w", &pgconn.PgError{Code: "23P01", ConstraintName: "interview_slots_no_overlap"})
	unique := &pgconn.PgError{Code: "23505"}

	assert.True(t, IsExclusionViolation(exclusion))
	assert.False(t, IsUniqueViolation(exclusion))
	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsExclusionViolation(errors.New("boom")))

	assert.True(t, IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.True(t, IsVersionConflict(fmt.Errorf("update: %w", ErrVersionConflict)))
}
