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


// Package gcs stores receipt images in a Google Cloud Storage bucket.
// Credentials come from Application Default Credentials (the service
// account on Cloud Run, or GOOGLE_APPLICATION_CREDENTIALS locally).
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	gstorage "cloud.google.com/go/storage"
	"github.com/poiesic/expensit/blob"
)

// Store implements blob.Store over one GCS bucket.
type Store struct {
	client *gstorage.Client
	bucket *gstorage.BucketHandle
}

var _ blob.Store = (*Store)(nil)

// NewStore opens a client for the named bucket.
func NewStore(ctx context.Context, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, blob.ErrBucketRequired
	}
	client, err := gstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", blob.ErrStoreFailed, err)
	}
	return &Store{
		client: client,
		bucket: client.Bucket(bucket),
	}, nil
}

// Put uploads data under key with the given content type.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("%w: %w", blob.ErrStoreFailed, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", blob.ErrStoreFailed, err)
	}
	return key, nil
}

// Get downloads a blob by its reference.
func (s *Store) Get(ctx context.Context, ref string) ([]byte, string, error) {
	r, err := s.bucket.Object(ref).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, "", blob.ErrNotFound
		}
		return nil, "", fmt.Errorf("%w: %w", blob.ErrStoreFailed, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", blob.ErrStoreFailed, err)
	}
	return data, r.Attrs.ContentType, nil
}

// Delete removes a blob; a missing object is a no-op.
func (s *Store) Delete(ctx context.Context, ref string) error {
	err := s.bucket.Object(ref).Delete(ctx)
	if err != nil && !errors.Is(err, gstorage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %w", blob.ErrStoreFailed, err)
	}
	return nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
