package flaxkv

import (
	"errors"
)

// Sentinel errors returned by the store's public API. Use [errors.Is] to
// test for them; they may arrive wrapped in an [*OpError].
var (
	// ErrNotFound is returned by Get/Pop/Delete when the key has no
	// record in either the overlay or the engine.
	ErrNotFound = errors.New("flaxkv: key not found")

	// ErrClosed is returned by any operation on a store after Close has
	// been called.
	ErrClosed = errors.New("flaxkv: store is closed")

	// ErrTimeout is returned when a context passed to a blocking
	// operation (notably WriteImmediately and FlushNow) expires before
	// the operation completes.
	ErrTimeout = errors.New("flaxkv: operation timed out")

	// ErrCapacityExceeded is returned by a write that is blocked at the
	// Config.HighWaterMark barrier when the background flusher reports a
	// commit failure; it wraps that failure's message.
	ErrCapacityExceeded = errors.New("flaxkv: overlay capacity exceeded")

	// ErrWrongKind is returned by the typed Get*/Put* convenience methods
	// when the stored Value is not of the kind requested.
	ErrWrongKind = errors.New("flaxkv: value is not of the requested kind")
)

// OpError is the uniform error type returned by the store's public API. It
// carries the failing operation name and, where known, the key involved.
//
// Use [errors.As] to extract structured fields:
//
//	var opErr *flaxkv.OpError
//	if errors.As(err, &opErr) {
//	    fmt.Printf("%s failed for key %v\n", opErr.Op, opErr.Key)
//	}
//
// Use [errors.Is] to check for sentinel errors:
//
//	if errors.Is(err, flaxkv.ErrNotFound) { ... }
type OpError struct {
	// Op is the store method that failed, e.g. "Get", "Put", "Delete".
	Op string

	// Key is the key involved, when one is known. Its zero value (a Key
	// with no Kind) means no key was involved (e.g. Close, FlushNow).
	Key Key

	// Err is the underlying cause.
	Err error
}

// Error formats as "<op>: <cause>", with "(key=...)" appended when a key is
// known.
func (e *OpError) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Op + ": " + e.cause()

	if suffix := e.suffix(); suffix != "" {
		msg += " " + suffix
	}

	return msg
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func (e *OpError) cause() string {
	if e.Err == nil {
		return ""
	}

	return e.Err.Error()
}

func (e *OpError) suffix() string {
	if e.Key.Kind() == 0 {
		return ""
	}

	return "(key=" + keyString(e.Key) + ")"
}

// opOpt configures an [OpError] during construction via [wrapOp].
type opOpt func(*OpError)

// withKey attaches the key involved in the failing operation.
func withKey(k Key) opOpt {
	return func(e *OpError) { e.Key = k }
}

// wrapOp creates an [*OpError] for operation op with optional context.
// Returns nil if err is nil. Does not double-wrap: if err is already an
// *OpError for the same op and no new options are given, it is returned
// unchanged; otherwise the new *OpError takes the inner one's key and
// cause, and opts can override the key.
func wrapOp(op string, err error, opts ...opOpt) error {
	if err == nil {
		return nil
	}

	existing := &OpError{}
	isDirect := errors.As(err, &existing)

	if isDirect && len(opts) == 0 && existing.Op == op {
		return existing
	}

	e := &OpError{Op: op, Err: err}

	if isDirect {
		e.Key = existing.Key
		e.Err = existing.Err
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}
