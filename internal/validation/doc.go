// Package validation provides centralized input validation logic.
// This includes bucket name validation and the mapping of object keys onto
// local paths.
//
// Keys are validated before anything is written so that a crafted key cannot
// escape the restore destination.
package validation
