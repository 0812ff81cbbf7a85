package validation

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	s3errors "github.com/envato-archive/outatime/errors"
)

func TestValidateBucketName(t *testing.T) {
	const (
		charset   = "bucket name can only contain lowercase letters, numbers, dots, and hyphens"
		edges     = "bucket name cannot start or end with a hyphen or dot"
		length    = "bucket name must be between 3 and 63 characters long"
		ipAddress = "bucket name cannot be formatted as an IP address"
	)

	tests := []struct {
		bucket string
		errMsg string
	}{
		{"my-bucket", ""},
		{"restore.2015-10-21", ""},
		{"1bucket", ""},
		{"abc", ""},
		{strings.Repeat("a", 63), ""},
		{"999.1.1.1", ""},

		{"", "bucket name cannot be empty"},
		{"ab", length},
		{strings.Repeat("a", 64), length},
		{"-bucket", edges},
		{"bucket.", edges},
		{"Bucket", charset},
		{"my_bucket", charset},
		{"10.0.0.1", ipAddress},
		{"my..bucket", "bucket name cannot contain two adjacent periods"},
	}

	for _, tt := range tests {
		t.Run(tt.bucket, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("ValidateBucketName(%q) unexpected error: %v", tt.bucket, err)
				}
				return
			}

			if !errors.Is(err, s3errors.ErrInvalidBucketName) {
				t.Fatalf("ValidateBucketName(%q) = %v, want ErrInvalidBucketName", tt.bucket, err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateBucketName(%q) error = %q, want message containing %q", tt.bucket, err, tt.errMsg)
			}
		})
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		want      string
		wantError bool
	}{
		{"plain_file", "README", "README", false},
		{"nested_file", "lib/c/d.rb", filepath.Join("lib", "c", "d.rb"), false},
		{"leading_slash", "/lib/a.rb", filepath.Join("lib", "a.rb"), false},
		{"many_leading_slashes", "//lib/a.rb", filepath.Join("lib", "a.rb"), false},
		{"directory_marker", "lib/", filepath.FromSlash("lib/"), false},
		{"root_marker", "/", ".", false},
		{"dots_in_name", "a..b/c", filepath.Join("a..b", "c"), false},

		{"empty", "", "", true},
		{"parent_segment", "../etc/passwd", "", true},
		{"nested_parent_segment", "lib/../../etc", "", true},
		{"rooted_parent_segment", "/../etc", "", true},
		{"control_character", "lib/\x00a", "", true},
		{"too_long", strings.Repeat("k", 1025), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LocalPath(tt.key)
			if tt.wantError {
				if err == nil {
					t.Fatalf("LocalPath(%q) = %q, expected error", tt.key, got)
				}
				if !errors.Is(err, s3errors.ErrInvalidObjectKey) {
					t.Errorf("LocalPath(%q) error %v is not ErrInvalidObjectKey", tt.key, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("LocalPath(%q) unexpected error: %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("LocalPath(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
