// Package blob defines object storage for normalized receipt images.
// Archival is best-effort and sits outside the quota/extraction critical
// path: a failed Put leaves the record's image reference empty, it never
// fails an ingestion attempt.
//
// The gcs subpackage stores blobs in a Google Cloud Storage bucket; the
// memory subpackage backs tests and single-process deployments.
package blob
