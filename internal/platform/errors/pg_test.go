package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func pg(code string) *pgconn.PgError {
	return &pgconn.PgError{Code: code}
}

func TestDBErrorCodeMappings(t *testing.T) {
	cases := []struct {
		code string
		want ErrorCode
	}{
		{"23505", ErrorCodeDuplicateKey},    // unique violation
		{"23503", ErrorCodeInvalidArgument}, // fk violation -> invalid input
		{"23502", ErrorCodeValidation},      // not null
		{"23514", ErrorCodeValidation},      // check
		{"22001", ErrorCodeInvalidArgument}, // string truncation
		{"22P02", ErrorCodeInvalidArgument}, // invalid text representation
		{"40001", ErrorCodeDB},              // serialization failure (retryable) mapped to DB
		{"40P01", ErrorCodeDB},              // deadlock
		{"55P03", ErrorCodeDB},              // lock not available
		{"25006", ErrorCodeUnavailable},     // read-only
		{"57P03", ErrorCodeUnavailable},     // cannot connect now
		{"XXXXX", ErrorCodeDB},              // default branch
	}
	for _, c := range cases {
		got, ok := DBErrorCode(pg(c.code))
		if !ok {
			t.Fatalf("expected ok for PgError code %s", c.code)
		}
		if got != c.want {
			t.Fatalf("DBErrorCode(%s) = %v, want %v", c.code, got, c.want)
		}
	}

	// Non-pg error path
	if _, ok := DBErrorCode(stderrs.New("nope")); ok {
		t.Fatalf("DBErrorCode should return ok=false for non-pg error")
	}
}

func TestFromPostgresVariants(t *testing.T) {
	// nil passthrough
	if FromPostgres(nil, "x") != nil {
		t.Fatalf("FromPostgres(nil) should be nil")
	}
	if FromPostgresf(nil, "x %d", 1) != nil {
		t.Fatalf("FromPostgresf(nil) should be nil")
	}

	// ErrNoRows maps to NotFound
	if err := FromPostgres(pgx.ErrNoRows, "get case"); CodeOf(err) != ErrorCodeNotFound {
		t.Fatalf("FromPostgres(ErrNoRows) code = %v", CodeOf(err))
	}

	// mapped: check codes only (PgError string includes SQLSTATE formatting)
	err := FromPostgres(pg("23505"), "insert artifact")
	if CodeOf(err) != ErrorCodeDuplicateKey {
		t.Fatalf("FromPostgres map code = %v", CodeOf(err))
	}
	errf := FromPostgresf(pg("22P02"), "bad: %s", "artifact_id")
	if CodeOf(errf) != ErrorCodeInvalidArgument {
		t.Fatalf("FromPostgresf code = %v, want %v", CodeOf(errf), ErrorCodeInvalidArgument)
	}

	// generic errors fall back to DB
	if err := FromPostgres(stderrs.New("boom"), "exec"); CodeOf(err) != ErrorCodeDB {
		t.Fatalf("FromPostgres fallback code = %v", CodeOf(err))
	}
}

func TestSQLStatePredicates(t *testing.T) {
	wrapped := Wrap(pg("23505"), ErrorCodeDuplicateKey, "dup")
	if !IsDuplicateKey(wrapped) {
		t.Fatalf("IsDuplicateKey must see through wrapping")
	}
	if IsDuplicateKey(pg("23503")) {
		t.Fatalf("23503 is not a duplicate key")
	}

	// the quota ledger classifies cap-exceeded updates this way
	if !IsCheckViolation(Wrap(pg("23514"), ErrorCodeValidation, "cap")) {
		t.Fatalf("IsCheckViolation must see through wrapping")
	}
	if !IsSerializationFailure(pg("40001")) || !IsDeadlock(pg("40P01")) {
		t.Fatalf("contention predicates failed")
	}
	if IsSQLState(stderrs.New("nope"), "23505") {
		t.Fatalf("IsSQLState true for non-pg error")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(pg("40001")) { // serialization failure
		t.Fatalf("40001 should be retryable")
	}
	if !IsRetryable(pg("40P01")) { // deadlock
		t.Fatalf("40P01 should be retryable")
	}
	if !IsRetryable(pg("55P03")) { // lock not available
		t.Fatalf("55P03 should be retryable")
	}
	if !IsRetryable(pg("57P03")) { // startup in progress
		t.Fatalf("57P03 should be retryable")
	}
	// retryable even when buried in wrapping
	if !IsRetryable(fmt.Errorf("tx: %w", Wrap(pg("40001"), ErrorCodeDB, "commit"))) {
		t.Fatalf("retry check must walk to the root cause")
	}
	// non-retryable
	if IsRetryable(pg("23505")) {
		t.Fatalf("23505 should not be retryable")
	}
	if IsRetryable(stderrs.New("nope")) {
		t.Fatalf("non-pg error should not be retryable")
	}
	// cancelled contexts are never retried
	if IsRetryable(context.Canceled) || IsRetryable(context.DeadlineExceeded) {
		t.Fatalf("context errors should not be retryable")
	}
}
