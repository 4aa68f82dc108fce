// Package blobstore stores persisted indexes as whole, named blobs.
//
// # Built-in Implementations
//
//   - LocalStore: local directory, atomic rename on write, mmap reads
//   - MemoryStore: in-process map for tests and ephemeral registries
//   - s3.Store: Amazon S3 (package blobstore/s3)
//   - minio.Store: MinIO and other S3-compatible servers (package blobstore/minio)
//   - sqlite.Store: a single SQLite file (package blobstore/sqlite)
//
// # Custom Implementations
//
// Implement Store to support other backends:
//
//	type Store interface {
//	    Get(ctx, name) ([]byte, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Missing blobs must be reported with an error matching ErrNotFound.
// Stores that hold connections may also implement io.Closer.
package blobstore
