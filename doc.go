// Package outatime restores a versioned S3 bucket as it was at a point in time.
//
// A Client lists every version and delete marker under a prefix, picks the
// revision of each key that was current at the requested instant, and
// downloads those revisions in parallel to a local directory. Listing and
// downloading overlap: workers start fetching as soon as the first page of
// versions has been resolved.
//
// Key features:
//   - Streaming resolution that holds one listing page at a time
//   - Bounded worker pool (20 workers unless configured otherwise)
//   - AWS S3 and MinIO backends, or any s3types.Backend
//   - Memoized results for repeated queries of the same instant
//   - Classified errors with bucket, key and version context
//
// Example usage:
//
//	client, err := outatime.New(outatime.WithRegion("us-west-2"))
//	if err != nil {
//	    return err
//	}
//
//	snapshot, err := client.At("my-bucket", "lib/", instant)
//	if err != nil {
//	    return err
//	}
//
//	result, err := snapshot.Fetch(ctx, "./restore")
//	if err != nil {
//	    return err
//	}
package outatime
