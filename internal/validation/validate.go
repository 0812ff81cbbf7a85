package validation

import (
	"net/netip"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/envato-archive/outatime/errors"
)

// maxKeyLength is the longest object key S3 accepts, in bytes.
const maxKeyLength = 1024

// bucketRule reports a problem with a bucket name, or "" when the name passes.
type bucketRule func(bucket string) string

// bucketRules run in order; the first failure is reported.
var bucketRules = []bucketRule{
	func(b string) string {
		if b == "" {
			return "bucket name cannot be empty"
		}
		return ""
	},
	func(b string) string {
		if len(b) < 3 || len(b) > 63 {
			return "bucket name must be between 3 and 63 characters long"
		}
		return ""
	},
	func(b string) string {
		if strings.IndexFunc(b, func(r rune) bool { return !isBucketChar(r) }) >= 0 {
			return "bucket name can only contain lowercase letters, numbers, dots, and hyphens"
		}
		return ""
	},
	func(b string) string {
		if strings.ContainsAny(b[:1], "-.") || strings.ContainsAny(b[len(b)-1:], "-.") {
			return "bucket name cannot start or end with a hyphen or dot"
		}
		return ""
	},
	func(b string) string {
		if addr, err := netip.ParseAddr(b); err == nil && addr.Is4() {
			return "bucket name cannot be formatted as an IP address"
		}
		return ""
	},
	func(b string) string {
		if strings.Contains(b, "..") {
			return "bucket name cannot contain two adjacent periods"
		}
		return ""
	},
}

// ValidateBucketName checks a bucket name against the S3 DNS naming rules.
// Returns ErrInvalidBucketName if the bucket name is invalid.
func ValidateBucketName(bucket string) error {
	for _, rule := range bucketRules {
		if msg := rule(bucket); msg != "" {
			return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
				WithBucket(bucket).
				WithMessage(msg)
		}
	}
	return nil
}

// LocalPath maps an object key onto a relative path under the restore destination.
//
// Leading slashes are dropped so that keys such as "/lib/a.txt" land inside the
// destination, and a key made only of slashes maps to ".". Keys with ".."
// segments or control characters are rejected with ErrInvalidObjectKey.
func LocalPath(key string) (string, error) {
	if msg := keyProblem(key); msg != "" {
		return "", invalidKey(key, msg)
	}

	trimmed := strings.TrimLeft(key, "/")
	if trimmed == "" {
		return ".", nil
	}

	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", invalidKey(key, "object key cannot contain path traversal sequences")
		}
	}

	return filepath.FromSlash(trimmed), nil
}

func keyProblem(key string) string {
	switch {
	case key == "":
		return "object key cannot be empty"
	case len(key) > maxKeyLength:
		return "object key cannot exceed 1024 characters"
	case strings.IndexFunc(key, unicode.IsControl) >= 0:
		return "object key cannot contain control characters"
	}
	return ""
}

func invalidKey(key, msg string) error {
	return errors.NewError("localPath", errors.ErrInvalidObjectKey).
		WithKey(key).
		WithMessage(msg)
}

func isBucketChar(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || r == '.' || r == '-'
}
