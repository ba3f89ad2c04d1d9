package falkorpersist

import (
	"errors"
	"fmt"
)

// ErrNotFound is a sentinel error returned by Find operations when no record
// matching the criteria is found in the database.
var ErrNotFound = errors.New("record not found")

// ErrMismatch reports that a value is well formed but belongs to a different
// target, e.g. a node whose labels do not include a record's label. OneOf
// targets treat it as "try the next candidate".
var ErrMismatch = errors.New("value does not match target")

// DecodeError reports a payload whose shape is incompatible with its tag or
// with the requested target type. It is fatal to the row being decoded.
type DecodeError struct {
	Type   ValueType
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("falkorpersist: decode %s: %s", e.Type, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErrorf(t ValueType, format string, args ...any) *DecodeError {
	return &DecodeError{Type: t, Reason: fmt.Sprintf(format, args...)}
}

func wrapDecodeError(t ValueType, err error, format string, args ...any) *DecodeError {
	return &DecodeError{Type: t, Reason: fmt.Sprintf(format, args...), Err: err}
}

// UnexpectedValueError reports that no candidate of a polymorphic target
// accepted a value. Raw holds the wire payload when the failure happened
// before decoding, Value the decoded value otherwise.
type UnexpectedValueError struct {
	Type  ValueType
	Raw   any
	Value Value
}

func (e *UnexpectedValueError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("falkorpersist: unexpected %s value %v", e.Type, e.Value)
	}
	return fmt.Sprintf("falkorpersist: unexpected %s value %v", e.Type, e.Raw)
}

// CacheConsistencyError reports an id the server referenced but never
// advertised, even after refreshing the table.
type CacheConsistencyError struct {
	Table SchemaTable
	ID    int64
	Size  int
}

func (e *CacheConsistencyError) Error() string {
	return fmt.Sprintf("falkorpersist: %s id %d out of range after refresh (table size %d)", e.Table, e.ID, e.Size)
}
