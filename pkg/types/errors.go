package types

import (
	"errors"
	"fmt"
)

// ConfigError is a fatal input error. It aborts the invocation before any
// control-plane call is made.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// TransportError wraps a failed control-plane call.
type TransportError struct {
	Op       string
	Category FailureCategory
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DataShapeError reports a fetched record with a missing or malformed field.
// It propagates like a TransportError.
type DataShapeError struct {
	RunID int64
	Field string
}

func (e *DataShapeError) Error() string {
	if e.RunID == 0 {
		return fmt.Sprintf("malformed response: missing %s", e.Field)
	}
	return fmt.Sprintf("malformed response: run %d missing %s", e.RunID, e.Field)
}

// IsFatal reports whether err must abort the whole invocation.
func IsFatal(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
