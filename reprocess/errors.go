package reprocess

import "errors"

var (
	// ErrRecordRepositoryRequired is returned when a record repository is not provided.
	ErrRecordRepositoryRequired = errors.New("record repository required")

	// ErrTenantRepositoryRequired is returned when a tenant repository is not provided.
	ErrTenantRepositoryRequired = errors.New("tenant repository required")

	// ErrExtractorRequired is returned when an extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrBlobStoreRequired is returned when a blob store is not provided.
	// Reprocessing reads archived images back; without a store there is
	// nothing to re-extract from.
	ErrBlobStoreRequired = errors.New("blob store required")
)
