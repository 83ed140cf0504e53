package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
)

func TestClassifyUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	code, msg := Classify(err)
	if code != "23505" {
		t.Errorf("code = %q, want %q", code, "23505")
	}
	if msg != err.Message {
		t.Errorf("message = %q, want %q", msg, err.Message)
	}
	if kind := dialect.Postgres.Classify(code); kind != sqlkit.ErrDuplicateKey {
		t.Errorf("kind = %v, want ErrDuplicateKey", kind)
	}
}

func TestClassifyDeadlock(t *testing.T) {
	err := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	code, _ := Classify(err)
	if kind := dialect.Postgres.Classify(code); kind != sqlkit.ErrDeadlockDetected {
		t.Errorf("kind = %v, want ErrDeadlockDetected", kind)
	}
}

func TestClassifyNonPgError(t *testing.T) {
	code, msg := Classify(errors.New("boom"))
	if code != "" {
		t.Errorf("code = %q, want empty", code)
	}
	if msg != "boom" {
		t.Errorf("message = %q, want %q", msg, "boom")
	}
}

func TestClassifyFuncWiring(t *testing.T) {
	err := &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
	kind, code, msg := ClassifyFunc(err)
	if kind != sqlkit.ErrForeignKey {
		t.Errorf("kind = %v, want ErrForeignKey", kind)
	}
	if code != "23503" || msg != err.Message {
		t.Errorf("code/msg = %q/%q, want 23503/%q", code, msg, err.Message)
	}
}
