package testingkit_test

import (
	"testing"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/schema"
	"github.com/honeynil/sqlkit/testingkit"
)

type account struct {
	ID   int64  `db:"id,pk"`
	Name string `db:"name"`
}

func TestHelperRoundTrip(t *testing.T) {
	h := testingkit.NewMemory(t)
	ts := schema.Derive[account]()
	h.MustCreateAll(ts)

	h.MustExec("INSERT INTO accounts (name) VALUES (?)", sqlkit.StringValue("ada"))
	if n := h.MustCount("accounts"); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}

	rs := h.MustQuery("SELECT name FROM accounts WHERE name = ?", sqlkit.StringValue("ada"))
	row, ok, err := rs.Next()
	rs.Close()
	if err != nil || !ok {
		t.Fatalf("expected a row, err=%v", err)
	}
	name, _ := row.Get(0)
	if name != "ada" {
		t.Fatalf("expected ada, got %q", name)
	}
}

func TestHelperMustRoundTrip(t *testing.T) {
	h := testingkit.NewMemory(t)
	ts := schema.Derive[account]()
	h.MustRoundTrip(ts)
}
