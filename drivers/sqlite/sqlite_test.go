package sqlite

import (
	"errors"
	"testing"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
)

func TestClassifyBusy(t *testing.T) {
	err := sqlite3.Error{Code: sqlite3.ErrBusy}
	code, _ := Classify(err)
	if kind := dialect.SQLite.Classify(code); kind != sqlkit.ErrLockTimeout {
		t.Errorf("kind = %v, want ErrLockTimeout", kind)
	}
}

func TestClassifyConstraintUnique(t *testing.T) {
	err := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	code, msg := Classify(err)
	if code != "CONSTRAINT_UNIQUE" {
		t.Errorf("code = %q, want CONSTRAINT_UNIQUE", code)
	}
	if msg == "" {
		t.Error("expected a non-empty message")
	}
	if kind := dialect.SQLite.Classify(code); kind != sqlkit.ErrDuplicateKey {
		t.Errorf("kind = %v, want ErrDuplicateKey", kind)
	}
}

func TestClassifyConstraintForeignKey(t *testing.T) {
	err := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}
	code, _ := Classify(err)
	if code != "CONSTRAINT_FOREIGNKEY" {
		t.Errorf("code = %q, want CONSTRAINT_FOREIGNKEY", code)
	}
	if kind := dialect.SQLite.Classify(code); kind != sqlkit.ErrForeignKey {
		t.Errorf("kind = %v, want ErrForeignKey", kind)
	}
}

func TestClassifyNonSqliteError(t *testing.T) {
	code, msg := Classify(errors.New("boom"))
	if code != "" {
		t.Errorf("code = %q, want empty", code)
	}
	if msg != "boom" {
		t.Errorf("message = %q, want %q", msg, "boom")
	}
}
