package mysql

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
)

func TestClassifyDuplicateKey(t *testing.T) {
	err := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'PRIMARY'"}
	code, msg := Classify(err)
	if code != "1062" {
		t.Errorf("code = %q, want %q", code, "1062")
	}
	if msg != err.Message {
		t.Errorf("message = %q, want %q", msg, err.Message)
	}
	if kind := dialect.MySQL.Classify(code); kind != sqlkit.ErrDuplicateKey {
		t.Errorf("kind = %v, want ErrDuplicateKey", kind)
	}
}

func TestClassifyDeadlock(t *testing.T) {
	err := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	code, _ := Classify(err)
	if kind := dialect.MySQL.Classify(code); kind != sqlkit.ErrDeadlockDetected {
		t.Errorf("kind = %v, want ErrDeadlockDetected", kind)
	}
}

func TestClassifyNonMySQLError(t *testing.T) {
	code, msg := Classify(errors.New("boom"))
	if code != "" {
		t.Errorf("code = %q, want empty", code)
	}
	if msg != "boom" {
		t.Errorf("message = %q, want %q", msg, "boom")
	}
}

func TestClassifyFuncWiring(t *testing.T) {
	err := &mysql.MySQLError{Number: 1452, Message: "foreign key violation"}
	kind, code, msg := ClassifyFunc(err)
	if kind != sqlkit.ErrForeignKey {
		t.Errorf("kind = %v, want ErrForeignKey", kind)
	}
	if code != "1452" || msg != err.Message {
		t.Errorf("code/msg = %q/%q, want 1452/%q", code, msg, err.Message)
	}
}
