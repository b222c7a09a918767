package asyncdb

import (
	"errors"
	"fmt"

	"github.com/tianxinzizhen/asyncdb/backend"
)

var (
	ErrInvalidStatement = errors.New("cannot execute invalid statement")
	ErrParamCount       = errors.New("incorrect number of arguments")
	ErrNotConnected     = errors.New("not connected")
	ErrClosed           = errors.New("connection closed")
	ErrReconnectFailed  = errors.New("connection lost again after reconnect")
	ErrResultCorrupted  = errors.New("result set corrupted")
	ErrInvalidResult    = errors.New("invalid result object")
	ErrNoSuchField      = errors.New("no such field")
	ErrTypeMismatch     = errors.New("field type mismatch")
	ErrOutOfRange       = errors.New("field value out of range")
)

// DriverError carries the driver's own error text for a failed operation.
// The text is reported unchanged.
type DriverError struct {
	Op      Operation
	Message string
	err     error
}

func driverErr(op Operation, err error) *DriverError {
	if err == nil {
		return nil
	}
	var de *DriverError
	if errors.As(err, &de) {
		return de
	}
	return &DriverError{Op: op, Message: err.Error(), err: err}
}

func (e *DriverError) Error() string {
	return e.Message
}

func (e *DriverError) Unwrap() error {
	return e.err
}

// ConnectionLost reports whether the driver dropped the connection during the operation.
func (e *DriverError) ConnectionLost() bool {
	return errors.Is(e.err, backend.ErrConnectionLost)
}

// reconnectErr marks a second consecutive connection loss.
type reconnectErr struct {
	*DriverError
}

func (e reconnectErr) Is(target error) bool {
	return target == ErrReconnectFailed
}

func (e reconnectErr) Unwrap() error {
	return e.DriverError
}

// FieldError reports a failed field conversion.
type FieldError struct {
	Column string
	Want   string
	err    error
}

func fieldErr(column, want string, err error) *FieldError {
	return &FieldError{Column: column, Want: want, err: err}
}

func (e *FieldError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("field %s: cannot convert to %s: %v", e.Column, e.Want, e.err)
	}
	return fmt.Sprintf("field: cannot convert to %s: %v", e.Want, e.err)
}

func (e *FieldError) Unwrap() error {
	return e.err
}
