// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package expensit

import (
	"log/slog"

	"github.com/poiesic/expensit/blob"
	"github.com/poiesic/expensit/extract"
	"github.com/poiesic/expensit/extract/openai"
	"github.com/poiesic/expensit/ingest"
	"github.com/poiesic/expensit/normalize"
	"github.com/poiesic/expensit/reprocess"
	"github.com/poiesic/expensit/storage"
	"github.com/poiesic/expensit/storage/badger"
)

// Service bundles the storage backend, repositories, extraction client
// and image archive behind one handle.
type Service struct {
	backend    *badger.Backend
	tenantRepo storage.TenantRepository
	recordRepo storage.RecordRepository
	normalizer *normalize.Normalizer
	extractor  extract.Extractor
	blobs      blob.Store
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	extractConfig *extract.Config
	extractor     extract.Extractor
	blobs         blob.Store
	logger        *slog.Logger
}

// WithExtractionConfig supplies the extraction service configuration
// used to build the default provider.
func WithExtractionConfig(cfg *extract.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.extractConfig = cfg
	}
}

// WithExtractor injects a ready-made extractor and skips provider
// construction entirely. The extractor should already carry its own
// retry policy.
func WithExtractor(extractor extract.Extractor) ServiceOption {
	return func(o *serviceOptions) {
		o.extractor = extractor
	}
}

// WithBlobStore sets the archive for normalized receipt images. Without
// one, records are stored without an image reference.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(o *serviceOptions) {
		o.blobs = store
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// Open creates a Service backed by an on-disk database at filePath.
func Open(filePath string, opts ...ServiceOption) (*Service, error) {
	return open(filePath, false, opts...)
}

// OpenMemory creates a Service on an in-memory database, for tests.
func OpenMemory(opts ...ServiceOption) (*Service, error) {
	return open("", true, opts...)
}

func open(filePath string, inMemory bool, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		extractConfig: extract.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}

	tenantRepo, err := badger.NewTenantRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	recordRepo, err := badger.NewRecordRepository(backend)
	if err != nil {
		tenantRepo.Close()
		backend.Close()
		return nil, err
	}

	normalizer, err := normalize.NewNormalizer()
	if err != nil {
		recordRepo.Close()
		tenantRepo.Close()
		backend.Close()
		return nil, err
	}

	extractor := options.extractor
	if extractor == nil {
		provider, providerErr := openai.NewExtractor(options.extractConfig)
		if providerErr != nil {
			recordRepo.Close()
			tenantRepo.Close()
			backend.Close()
			return nil, providerErr
		}
		extractor, err = extract.NewClient(provider,
			extract.WithBackoff(options.extractConfig.Backoff()),
			extract.WithAttemptTimeout(options.extractConfig.AttemptTimeout),
			extract.WithLogger(options.logger),
		)
		if err != nil {
			recordRepo.Close()
			tenantRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Service{
		backend:    backend,
		tenantRepo: tenantRepo,
		recordRepo: recordRepo,
		normalizer: normalizer,
		extractor:  extractor,
		blobs:      options.blobs,
		logger:     options.logger,
	}, nil
}

func (s *Service) Close() error {
	if s.blobs != nil {
		if err := s.blobs.Close(); err != nil {
			s.logger.Error("error closing image archive", "err", err)
		}
	}

	if err := s.recordRepo.Close(); err != nil {
		s.logger.Error("error closing record repository", "err", err)
		return err
	}
	if err := s.tenantRepo.Close(); err != nil {
		s.logger.Error("error closing tenant repository", "err", err)
		return err
	}

	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (s *Service) TenantRepository() storage.TenantRepository {
	return s.tenantRepo
}

func (s *Service) RecordRepository() storage.RecordRepository {
	return s.recordRepo
}

func (s *Service) Extractor() extract.Extractor {
	return s.extractor
}

func (s *Service) BlobStore() blob.Store {
	return s.blobs
}

// NewIngestionPipeline builds a pipeline on the service's repositories,
// extractor and archive.
func (s *Service) NewIngestionPipeline(opts ...ingest.Option) (*ingest.Pipeline, error) {
	if s.blobs != nil {
		opts = append([]ingest.Option{ingest.WithBlobStore(s.blobs)}, opts...)
	}
	return ingest.NewPipeline(s.tenantRepo, s.recordRepo, s.normalizer, s.extractor, opts...)
}

// NewReprocessor builds a batch reprocessor for needs_review records.
func (s *Service) NewReprocessor(opts ...reprocess.Option) (*reprocess.Reprocessor, error) {
	return reprocess.NewReprocessor(s.recordRepo, s.tenantRepo, s.extractor, s.blobs, opts...)
}
