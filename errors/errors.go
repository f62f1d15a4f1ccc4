package errors

import (
	"errors"
	"fmt"
)

// Common error types for categorization and handling

var (
	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrConfig indicates missing or invalid configuration, fatal at startup
	ErrConfig = errors.New("invalid configuration")

	// ErrStore indicates a store operation failed; the unit of work aborts
	// and the event is redelivered
	ErrStore = errors.New("store operation failed")

	// ErrDuplicateDocument indicates a unique conflict on file_name, treated
	// as a duplicate delivery rather than a failure
	ErrDuplicateDocument = errors.New("document already ingested")

	// ErrMalformedPayload indicates an undecodable bus message (poison pill)
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrFileRead indicates the source file could not be read
	ErrFileRead = errors.New("file read failed")

	// ErrCorruption indicates a violated hierarchy invariant (cycle or
	// length mismatch); non-fatal to query callers, fatal at startup
	ErrCorruption = errors.New("thread hierarchy corrupted")
)

// WrapError wraps an error with a context message
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateDocument checks if error is a duplicate document conflict
func IsDuplicateDocument(err error) bool {
	return errors.Is(err, ErrDuplicateDocument)
}

// IsMalformedPayload checks if error is a malformed payload error
func IsMalformedPayload(err error) bool {
	return errors.Is(err, ErrMalformedPayload)
}

// IsCorruption checks if error is a hierarchy corruption error
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorruption)
}
