// Package list implements version listing against S3.
// It walks ListObjectVersions with key and version-id markers and converts
// each response into an s3types.Page for the resolution engine.
package list
