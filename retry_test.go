package sqlkit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/memory"
)

// TestWithRetrySucceedsOnSecondAttempt exercises the deadlock/retry
// scenario: a driver that fails once then succeeds should make
// WithRetry return success, with the last recorded detail showing
// exactly one retry.
func TestWithRetrySucceedsOnSecondAttempt(t *testing.T) {
	ctx := context.Background()

	var faulty *memory.Faulty
	dialer := func(ctx context.Context) (sqlkit.Conn, error) {
		conn, err := memory.Open()(ctx)
		if err != nil {
			return nil, err
		}
		faulty = memory.NewFaulty(conn)
		return faulty, nil
	}

	db, err := sqlkit.Open(ctx, sqlkit.DriverMemory, dialer, memory.ClassifyFunc, sqlkit.PoolConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.RawExec(ctx, "CREATE TABLE widgets (id INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	faulty.FailNextExec(1, errors.New("simulated transient failure"))

	policy := sqlkit.RetryPolicy{
		MaxRetries:         3,
		InitialDelay:       time.Millisecond,
		MaxDelay:           time.Millisecond,
		BackoffMultiplier:  1,
		RetryOnlyRetryable: false,
	}

	err = db.WithRetry(ctx, policy, func() error {
		_, execErr := db.RawExec(ctx, "INSERT INTO widgets (id) VALUES (1)")
		return execErr
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}

	detail := db.GetLastError()
	if detail == nil {
		t.Fatal("expected a last-error detail to be recorded by the failed first attempt")
	}
	if detail.RetryCount != 1 {
		t.Fatalf("RetryCount = %d, want 1", detail.RetryCount)
	}
}

// TestWithRetryExhausted checks the terminal case: every attempt fails,
// MaxRetries is exhausted, and the returned error's detail reflects the
// total number of retries actually performed.
func TestWithRetryExhausted(t *testing.T) {
	ctx := context.Background()

	var faulty *memory.Faulty
	dialer := func(ctx context.Context) (sqlkit.Conn, error) {
		conn, err := memory.Open()(ctx)
		if err != nil {
			return nil, err
		}
		faulty = memory.NewFaulty(conn)
		return faulty, nil
	}

	db, err := sqlkit.Open(ctx, sqlkit.DriverMemory, dialer, memory.ClassifyFunc, sqlkit.PoolConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.RawExec(ctx, "CREATE TABLE widgets (id INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	faulty.FailNextExec(100, errors.New("permanently broken"))

	policy := sqlkit.RetryPolicy{
		MaxRetries:         2,
		InitialDelay:       time.Millisecond,
		MaxDelay:           time.Millisecond,
		BackoffMultiplier:  1,
		RetryOnlyRetryable: false,
	}

	err = db.WithRetry(ctx, policy, func() error {
		_, execErr := db.RawExec(ctx, "INSERT INTO widgets (id) VALUES (1)")
		return execErr
	})
	if err == nil {
		t.Fatal("expected WithRetry to return an error once retries are exhausted")
	}

	detail, ok := sqlkit.DetailOf(err)
	if !ok {
		t.Fatal("expected the returned error to carry a SqlError detail")
	}
	if detail.RetryCount != policy.MaxRetries {
		t.Fatalf("RetryCount = %d, want %d", detail.RetryCount, policy.MaxRetries)
	}
}
