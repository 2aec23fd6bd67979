// Package simplemedia provides the media lifecycle engine: write-once upload
// slots for user media, an asynchronous processing pipeline that turns an
// uploaded image into a READY record with a thumbnail, owner-partitioned
// cursor pagination, and time-limited download links.
//
// The package owns the value types, the Media aggregate and its status state
// machine, and the Service that orchestrates the use cases. Persistence,
// object storage and thumbnail rendering are consumed through the Repository,
// Storage and Thumbnailer interfaces; implementations live in subpackages
// (repo/memory, repo/postgres, storage/memory, storage/s3, thumbnail).
//
// # Error Model
//
// Every error returned by the Service is a *Error carrying an ErrorKind.
// Callers branch on the kind with errors.Is against the Err* sentinels or
// with KindOf. Owner mismatch on lookups is reported as ErrNotFound, never as
// a distinct "forbidden" condition.
package simplemedia
