package errors

// ErrorCode represents a class of restore failure.
// Error codes are string-based for debuggability and map onto process exit statuses.
type ErrorCode string

const (
	// CodeOK indicates no error.
	CodeOK ErrorCode = "OK"

	// CodeInvalidConfig indicates a configuration error prevented the operation from starting.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeNotFound indicates a bucket, object or version does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeForbidden indicates the credentials lack permission for the operation.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// CodeUnknown indicates an unclassified backend or filesystem failure.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// CodeOf classifies err into an ErrorCode.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeOK
	case IsInvalidInput(err):
		return CodeInvalidConfig
	case IsObjectNotFound(err), IsBucketNotFound(err):
		return CodeNotFound
	case IsAccessDenied(err):
		return CodeForbidden
	default:
		return CodeUnknown
	}
}

// ExitStatus returns the process exit status for an ErrorCode.
func (c ErrorCode) ExitStatus() int {
	switch c {
	case CodeOK:
		return 0
	case CodeInvalidConfig:
		return 2
	case CodeNotFound:
		return 3
	case CodeForbidden:
		return 4
	default:
		return 1
	}
}
