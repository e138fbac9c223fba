package blob

import "errors"

var (
	// ErrNotFound indicates the reference names no stored blob.
	ErrNotFound = errors.New("blob not found")

	// ErrStoreFailed indicates the backing store rejected the operation.
	ErrStoreFailed = errors.New("blob store operation failed")

	// ErrBucketRequired is returned when a GCS store is built without a
	// bucket name.
	ErrBucketRequired = errors.New("bucket name required")
)
