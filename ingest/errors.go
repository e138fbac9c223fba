package ingest

import "errors"

var (
	// ErrTenantRepositoryRequired is returned when a tenant repository is not provided.
	ErrTenantRepositoryRequired = errors.New("tenant repository required")

	// ErrRecordRepositoryRequired is returned when a record repository is not provided.
	ErrRecordRepositoryRequired = errors.New("record repository required")

	// ErrNormalizerRequired is returned when a normalizer is not provided.
	ErrNormalizerRequired = errors.New("normalizer required")

	// ErrExtractorRequired is returned when an extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrRequestRequired is returned when Ingest is called with a nil or
	// empty request.
	ErrRequestRequired = errors.New("ingestion request required")
)
