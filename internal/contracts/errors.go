package contracts

import "fmt"

// NotFoundError reports a missing root directory, data file or store.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

// FormatError reports a malformed data file, e.g. a length that is not a
// multiple of the fixed record size.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("bad format in %s: %s", e.Path, e.Reason)
}

// PersistenceError reports a store write or transaction failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ExclusionReason explains why a symbol was intentionally skipped during
// ranking. Exclusions are not errors.
type ExclusionReason string

const (
	ExclInsufficientHistory ExclusionReason = "insufficient_history"
	ExclBlacklisted         ExclusionReason = "blacklisted"
	ExclCodePrefix          ExclusionReason = "code_prefix"
	ExclIlliquid            ExclusionReason = "illiquid"
	ExclZeroBase            ExclusionReason = "zero_base_price"
	ExclChangeBreaker       ExclusionReason = "change_breaker"
	ExclMalformedRow        ExclusionReason = "malformed_row"
)
