package extract

import (
	"errors"
	"fmt"
)

// ErrOracle matches every [*OracleError] with errors.Is.
var ErrOracle = errors.New("extraction oracle failed")

// Oracle operations reported in [OracleError.Op].
const (
	OpRequest  = "request"  // building or sending the completion request
	OpComplete = "complete" // the completion call itself
	OpTimeout  = "timeout"  // the extraction deadline elapsed
	OpDecode   = "decode"   // the reply is not a JSON document of the expected shape
	OpValidate = "validate" // the reply parsed but violates the schema
)

// OracleError reports a failed extraction. No extraction data accompanies it.
type OracleError struct {
	// Op is the stage that failed, one of the Op constants.
	Op string

	// Retryable reports whether repeating the whole call may succeed. Schema
	// failures are never retryable; the oracle tends to repeat itself.
	Retryable bool

	// Attempts is the number of completion calls made.
	Attempts int

	Err error
}

func (e *OracleError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("extract: %s after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("extract: %s: %v", e.Op, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrOracle) hold for every OracleError.
func (e *OracleError) Is(target error) bool { return target == ErrOracle }

// schemaError marks a reply that must not be retried.
type schemaError struct {
	op  string
	err error
}

func (e *schemaError) Error() string { return e.err.Error() }
func (e *schemaError) Unwrap() error { return e.err }
