package database

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key is absent from the store. Callers use
// it to tell an unknown account from an account with a zero balance.
var ErrNotFound = errors.New("not found")

// ErrChainHeadNotSet is returned when the chain head is requested before
// the genesis block has been applied.
var ErrChainHeadNotSet = fmt.Errorf("chain head: %w", ErrNotFound)

// =============================================================================

// ChainError is returned when a block can't be applied to the ledger. The
// store is left unchanged when this error is returned.
type ChainError struct {
	Height uint64
	Hash   string
	Err    error
}

// NewChainError constructs a chain error for the specified block.
func NewChainError(block Block, err error) *ChainError {
	return &ChainError{
		Height: block.Header.Height,
		Hash:   block.Header.Hash,
		Err:    err,
	}
}

// Error implements the error interface.
func (ce *ChainError) Error() string {
	return fmt.Sprintf("apply block[%d:%s]: %s", ce.Height, ce.Hash, ce.Err)
}

// Unwrap provides access to the underlying error.
func (ce *ChainError) Unwrap() error {
	return ce.Err
}

// ValidationError is returned when a block or message fails validation.
// These errors are contained by the node and never fatal.
type ValidationError struct {
	Reason string
}

// NewValidationError constructs a validation error.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return "validation: " + ve.Reason
}

// IsValidationError checks if an error of type ValidationError exists.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
