package sqlkit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrorKind is the coarse, stable taxonomy returned from every fallible
// call. Codes are grouped by hundreds (2100s connection, 2200s query, ...)
// so a caller can bucket on code/100 without enumerating every member.
type ErrorKind int

const (
	ErrKindUnknown ErrorKind = 0

	// Connection errors (2100s).
	ErrConnectionLost    ErrorKind = 2101
	ErrConnectionTimeout ErrorKind = 2102
	ErrServerGone        ErrorKind = 2103
	ErrBrokenPipe        ErrorKind = 2104
	ErrAcquireTimeout    ErrorKind = 2105
	ErrPoolExhausted     ErrorKind = 2106
	ErrPoolClosed        ErrorKind = 2107

	// Query errors (2200s).
	ErrQueryTimeout ErrorKind = 2201
	ErrQueryFailed  ErrorKind = 2202
	ErrSyntaxError  ErrorKind = 2203

	// Transaction errors (2300s).
	ErrDeadlockDetected         ErrorKind = 2301
	ErrLockTimeout              ErrorKind = 2302
	ErrTransactionAlreadyDone   ErrorKind = 2303
	ErrTransactionFailed        ErrorKind = 2304

	// Data-integrity errors (2400s).
	ErrDuplicateKey     ErrorKind = 2401
	ErrForeignKey       ErrorKind = 2402
	ErrConstraintFailed ErrorKind = 2403

	// Permission errors (2500s).
	ErrPermissionDenied ErrorKind = 2501
	ErrTableNotAllowed  ErrorKind = 2502

	// Model/ORM errors (2600s).
	ErrModelNotFound       ErrorKind = 2601
	ErrCreateFailed        ErrorKind = 2602
	ErrPrimaryKeyNotFound  ErrorKind = 2603
	ErrUseNotConfigured    ErrorKind = 2604
)

// String renders a human-readable name for the kind, used in log records
// and error messages.
func (k ErrorKind) String() string {
	switch k {
	case ErrConnectionLost:
		return "ConnectionLost"
	case ErrConnectionTimeout:
		return "ConnectionTimeout"
	case ErrServerGone:
		return "ServerGone"
	case ErrBrokenPipe:
		return "BrokenPipe"
	case ErrAcquireTimeout:
		return "AcquireTimeout"
	case ErrPoolExhausted:
		return "PoolExhausted"
	case ErrPoolClosed:
		return "PoolClosed"
	case ErrQueryTimeout:
		return "QueryTimeout"
	case ErrQueryFailed:
		return "QueryFailed"
	case ErrSyntaxError:
		return "SyntaxError"
	case ErrDeadlockDetected:
		return "DeadlockDetected"
	case ErrLockTimeout:
		return "LockTimeout"
	case ErrTransactionAlreadyDone:
		return "TransactionAlreadyFinished"
	case ErrTransactionFailed:
		return "TransactionFailed"
	case ErrDuplicateKey:
		return "DuplicateKey"
	case ErrForeignKey:
		return "ForeignKey"
	case ErrConstraintFailed:
		return "ConstraintFailed"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrTableNotAllowed:
		return "TableNotAllowed"
	case ErrModelNotFound:
		return "ModelNotFound"
	case ErrCreateFailed:
		return "CreateFailed"
	case ErrPrimaryKeyNotFound:
		return "PrimaryKeyNotFound"
	case ErrUseNotConfigured:
		return "UseNotConfigured"
	default:
		return "Unknown"
	}
}

// IsRetryable reports whether code belongs to a transient class that a
// retry policy may re-execute. Only these eight kinds are retryable,
// matching the taxonomy's stated invariant exactly.
func IsRetryable(code ErrorKind) bool {
	switch code {
	case ErrConnectionLost, ErrConnectionTimeout, ErrServerGone, ErrBrokenPipe,
		ErrQueryTimeout, ErrDeadlockDetected, ErrLockTimeout, ErrPoolExhausted:
		return true
	default:
		return false
	}
}

// IsConnectionError reports whether code must also mark the owning
// PooledConnection broken so it is culled on release instead of returned
// to the idle stack.
func IsConnectionError(code ErrorKind) bool {
	switch code {
	case ErrConnectionLost, ErrConnectionTimeout, ErrServerGone, ErrBrokenPipe:
		return true
	default:
		return false
	}
}

// SqlError is the detailed record that accompanies every coarse ErrorKind.
// It clips SQL text to 500 characters so logs stay bounded even for large
// generated statements.
type SqlError struct {
	Kind          ErrorKind
	Message       string
	NativeCode    string
	NativeMessage string
	SQL           string
	Table         string
	Operation     string
	DurationMS    int64
	RetryCount    int
	Retryable     bool
}

const sqlClipLength = 500

func clipSQL(sql string) string {
	if len(sql) <= sqlClipLength {
		return sql
	}
	return sql[:sqlClipLength] + "...(clipped)"
}

// newSqlError builds a detail record, clipping the SQL text and deriving
// Retryable from the taxonomy.
func newSqlError(kind ErrorKind, message, nativeCode, nativeMessage, sql, table, operation string, duration time.Duration) *SqlError {
	return &SqlError{
		Kind:          kind,
		Message:       message,
		NativeCode:    nativeCode,
		NativeMessage: nativeMessage,
		SQL:           clipSQL(sql),
		Table:         table,
		Operation:     operation,
		DurationMS:    duration.Milliseconds(),
		Retryable:     IsRetryable(kind),
	}
}

func (e *SqlError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.NativeCode != "" {
		fmt.Fprintf(&b, " (native=%s)", e.NativeCode)
	}
	return b.String()
}

// AsKind returns the coarse ErrorKind, for callers holding a *SqlError
// (e.g. from errors.As) that prefer not to reach into the struct.
func (e *SqlError) AsKind() ErrorKind { return e.Kind }

// wrapSqlError turns a detail record into the error value returned from
// fallible calls. *SqlError satisfies the error interface directly, so
// errors.As(err, &detail) recovers it without an extra wrapper type; Go
// has no implicit thread-local storage, so this is how the SqlError
// detail travels on the error value itself. A mutex-guarded "last error"
// slot on *Database additionally satisfies code written against a
// thread-local-slot mental model (see DESIGN.md).
func wrapSqlError(detail *SqlError) error {
	return detail
}

// KindOf extracts the ErrorKind from any error produced by this package,
// returning ErrKindUnknown for errors it didn't produce.
func KindOf(err error) ErrorKind {
	var se *SqlError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrKindUnknown
}

// DetailOf extracts the SqlError detail record from err, if present.
func DetailOf(err error) (*SqlError, bool) {
	var se *SqlError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// lastErrorSlot is a per-handle "thread-local" stand-in: each *Database
// owns one, guarded by its own mutex, cleared explicitly by callers via
// ClearLastError between requests.
type lastErrorSlot struct {
	mu   sync.Mutex
	last *SqlError
}

func (s *lastErrorSlot) set(detail *SqlError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = detail
}

func (s *lastErrorSlot) get() *SqlError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *lastErrorSlot) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = nil
}

// RetryPolicy configures withRetry's exponential backoff runner.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// InitialDelay is the backoff before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponentially-grown backoff.
	MaxDelay time.Duration

	// BackoffMultiplier grows the delay between successive retries.
	BackoffMultiplier float64

	// RetryOnlyRetryable restricts retries to IsRetryable kinds. When
	// false, every error is retried until MaxRetries is exhausted.
	RetryOnlyRetryable bool
}

// DefaultRetryPolicy returns sane defaults: 3 retries, 50ms initial delay,
// 2s cap, 2x backoff, retrying only transient kinds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:         3,
		InitialDelay:       50 * time.Millisecond,
		MaxDelay:           2 * time.Second,
		BackoffMultiplier:  2.0,
		RetryOnlyRetryable: true,
	}
}

// withRetry runs op, inspecting the SqlError detail on failure to decide
// retryability under policy. It sleeps for an exponentially-backed-off
// delay capped at MaxDelay, stamps RetryCount on the detail, and retries
// until MaxRetries is exhausted or op succeeds.
func withRetry(ctx context.Context, clock clockwork.Clock, policy RetryPolicy, op func() error) error {
	var lastErr error
	delay := policy.InitialDelay

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		detail, ok := DetailOf(err)

		retrying := attempt < policy.MaxRetries &&
			(!policy.RetryOnlyRetryable || (ok && detail.Retryable))

		if ok {
			if retrying {
				// This failure will be retried, so the count already
				// reflects the retry about to happen — if the next
				// attempt succeeds, the detail left in the last-error
				// slot shows the number of retries that led to it.
				detail.RetryCount = attempt + 1
			} else {
				detail.RetryCount = attempt
			}
		}

		if !retrying {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(delay):
		}

		delay = time.Duration(math.Min(
			float64(policy.MaxDelay),
			float64(delay)*policy.BackoffMultiplier,
		))
		// Jitter keeps concurrent retriers from synchronizing on the same
		// wakeup, a cheap guard against thundering-herd reconnection storms.
		jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
		delay += jitter
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return lastErr
}
