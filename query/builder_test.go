package query_test

import (
	"testing"

	"github.com/honeynil/sqlkit/query"
)

func TestToSQLLiteralScenario(t *testing.T) {
	sql, args := query.New("users").
		Select("name", "email", "age").
		Where("age", ">", 25).
		OrderBy("age", true).
		Limit(3).
		ToSQL()

	const want = "SELECT name, email, age FROM users WHERE age > 25 ORDER BY age DESC LIMIT 3"
	if sql != want {
		t.Fatalf("ToSQL() = %q, want %q", sql, want)
	}
	if len(args) != 0 {
		t.Fatalf("expected no bound args in literal render mode, got %v", args)
	}
}

func TestToSQLIdempotent(t *testing.T) {
	b := query.New("users").Select("name").Where("age", ">", 25)
	first, _ := b.ToSQL()
	second, _ := b.ToSQL()
	if first != second {
		t.Fatalf("ToSQL() not idempotent: %q != %q", first, second)
	}
}
