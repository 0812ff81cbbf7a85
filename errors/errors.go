// Package errors provides error types and handling for point-in-time restore operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a restore operation error with context about the operation that failed.
// It wraps the underlying storage or filesystem error with additional context for debugging.
type Error struct {
	// Op is the operation that failed (e.g., "listVersions", "fetch", "at")
	Op string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// VersionID is the object version (if applicable)
	VersionID string

	// Err is the underlying error from the storage SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	object := e.Key
	if object != "" && e.VersionID != "" {
		object = fmt.Sprintf("%s@%s", e.Key, e.VersionID)
	}

	if e.Bucket != "" && object != "" {
		return fmt.Sprintf("outatime.%s %s/%s: %v", e.Op, e.Bucket, object, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("outatime.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if object != "" {
		return fmt.Sprintf("outatime.%s object %s: %v", e.Op, object, e.Err)
	}
	return fmt.Sprintf("outatime.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithVersion adds object version context to an existing error.
func (e *Error) WithVersion(versionID string) *Error {
	e.VersionID = versionID
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewBucketError creates a new Error with bucket context.
func NewBucketError(op, bucket string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Err:    err,
	}
}

// NewVersionError creates a new Error with bucket, key and version context.
func NewVersionError(op, bucket, key, versionID string, err error) *Error {
	return &Error{
		Op:        op,
		Bucket:    bucket,
		Key:       key,
		VersionID: versionID,
		Err:       err,
	}
}

// Sentinel errors for common restore failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("outatime: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("outatime: invalid bucket name")

	// ErrInvalidObjectKey indicates that an object key cannot be materialized locally
	ErrInvalidObjectKey = errors.New("outatime: invalid object key")

	// ErrInvalidInstant indicates that the point in time is absent or unusable
	ErrInvalidInstant = errors.New("outatime: invalid point in time")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("outatime: object not found")

	// ErrVersionNotFound indicates that the requested object version does not exist
	ErrVersionNotFound = errors.New("outatime: object version not found")

	// ErrBucketNotFound indicates that the requested bucket does not exist
	ErrBucketNotFound = errors.New("outatime: bucket not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("outatime: access denied")
)

// classified joins a sentinel with the original error so that both
// errors.Is(err, sentinel) and errors.As on the backend error type keep working.
type classified struct {
	sentinel error
	err      error
}

func (c *classified) Error() string {
	return fmt.Sprintf("%v: %v", c.sentinel, c.err)
}

func (c *classified) Unwrap() []error {
	return []error{c.sentinel, c.err}
}

// Classify attaches a sentinel to a backend error. A nil sentinel returns err unchanged.
func Classify(sentinel, err error) error {
	if sentinel == nil || err == nil {
		return err
	}
	return &classified{sentinel: sentinel, err: err}
}

// IsObjectNotFound checks if an error indicates that an object or object version was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrVersionNotFound)
}

// IsBucketNotFound checks if an error indicates that a bucket was not found.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsAccessDenied checks if an error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsInvalidInput checks if an error indicates invalid caller input,
// including bad bucket names, unusable keys and a missing point in time.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidBucketName) ||
		errors.Is(err, ErrInvalidObjectKey) ||
		errors.Is(err, ErrInvalidInstant)
}
