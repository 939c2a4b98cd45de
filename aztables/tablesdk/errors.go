package tablesdk

import (
	"fmt"
)

// DefinitionError reports a domain type whose structural mapping is
// invalid: missing or duplicate key roles, reserved-name collisions,
// or no mapped fields at all. Always fatal; the type must be fixed.
type DefinitionError struct {
	Type   string
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("nadella: invalid entity definition %s: %s", e.Type, e.Reason)
}

// MissingKeyError reports an instance that could not supply a usable
// partition or row key and had no fallback configured. Fatal to that
// single write.
type MissingKeyError struct {
	Type string
	Role string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("nadella: %s: no usable %s and no fallback configured", e.Type, e.Role)
}

// CoercionError reports a value that could not be converted between
// the wire and domain representations. Retry cannot fix malformed
// data, so this is never retried.
type CoercionError struct {
	From string
	To   string
	Err  error
}

func (e *CoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nadella: cannot coerce %s to %s: %v", e.From, e.To, e.Err)
	}
	return fmt.Sprintf("nadella: cannot coerce %s to %s", e.From, e.To)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// Transaction failure codes reported by the store.
const (
	// CodeConflict covers existing-row adds and concurrency token
	// mismatches.
	CodeConflict = "Conflict"
	// CodeInvalidInput covers structurally malformed transactions:
	// oversized chunks, mixed partitions, duplicate row keys.
	CodeInvalidInput = "InvalidInput"
	// CodeNotFound covers update/delete targets that do not exist.
	CodeNotFound = "ResourceNotFound"
)

// TransactionError is returned by the store when a transactional
// submit is rejected. FailedIndex is the index of the first offending
// action, or -1 when the store could not attribute the failure to a
// single action.
type TransactionError struct {
	Code        string
	FailedIndex int
	Err         error
}

func (e *TransactionError) Error() string {
	if e.FailedIndex >= 0 {
		return fmt.Sprintf("nadella: transaction rejected (%s) at action %d: %v", e.Code, e.FailedIndex, e.Err)
	}
	return fmt.Sprintf("nadella: transaction rejected (%s): %v", e.Code, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// recoverable reports whether the orchestrator may drop the offending
// row and re-attempt the remainder of the chunk.
func (e *TransactionError) recoverable() bool {
	return e.Code == CodeConflict || e.Code == CodeInvalidInput
}
