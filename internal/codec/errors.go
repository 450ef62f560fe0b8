// Package codec implements the deterministic byte encoding used for both
// store keys and store values. See [EncodeKey], [DecodeKey], [EncodeValue]
// and [DecodeValue].
package codec

import "fmt"

// EncodingError reports a codec failure on a specific key or value. It wraps
// the underlying cause and is never returned with a nil Err.
//
// Use errors.Is(err, codec.ErrKeyTooLong) etc. to detect specific causes.
type EncodingError struct {
	// Reason is a short, stable machine-checkable description, e.g.
	// "key too long" or "nan key".
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encoding: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("encoding: %s", e.Reason)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func newEncodingError(reason string, err error) error {
	return &EncodingError{Reason: reason, Err: err}
}
