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


package reprocess

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/expensit/blob"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/extract"
	"github.com/poiesic/expensit/storage"
)

// Stats summarizes one reprocessing run.
type Stats struct {
	// Scanned is the number of needs_review records examined.
	Scanned int
	// Updated is how many were successfully re-extracted and flipped to
	// stored.
	Updated int
	// Skipped is how many were left untouched (no archived image, or
	// extraction failed again).
	Skipped int
}

// Reprocessor re-runs extraction over needs_review records. Pass an
// extract.Client as the extractor so individual calls carry the normal
// retry policy; the reprocessor itself never retries a record within a
// run.
type Reprocessor struct {
	records   storage.RecordRepository
	tenants   storage.TenantRepository
	extractor extract.Extractor
	blobs     blob.Store
	progress  io.Writer
	logger    *slog.Logger
}

// Option configures a Reprocessor.
type Option func(*Reprocessor)

// WithProgress enables progress reporting to w.
func WithProgress(w io.Writer) Option {
	return func(r *Reprocessor) {
		r.progress = w
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reprocessor) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReprocessor creates a batch reprocessor.
func NewReprocessor(
	records storage.RecordRepository,
	tenants storage.TenantRepository,
	extractor extract.Extractor,
	blobs blob.Store,
	opts ...Option,
) (*Reprocessor, error) {
	if records == nil {
		return nil, ErrRecordRepositoryRequired
	}
	if tenants == nil {
		return nil, ErrTenantRepositoryRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}

	r := &Reprocessor{
		records:   records,
		tenants:   tenants,
		extractor: extractor,
		blobs:     blobs,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reprocessor")
	return r, nil
}

// Run reprocesses one tenant's needs_review records.
func (r *Reprocessor) Run(ctx context.Context, tenantID core.ID) (*Stats, error) {
	pending, err := r.records.ListNeedsReview(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var tracker *ProgressTracker
	if r.progress != nil {
		tracker = NewProgressTracker(r.progress, len(pending), 1)
		tracker.Start()
		defer tracker.Finish()
	}

	stats := &Stats{}
	for _, record := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++

		if r.reprocessRecord(ctx, record) {
			stats.Updated++
		} else {
			stats.Skipped++
		}
		if tracker != nil {
			tracker.Increment(1)
		}
	}

	r.logger.Info("reprocessing run finished",
		"tenant", tenantID,
		"scanned", stats.Scanned,
		"updated", stats.Updated,
		"skipped", stats.Skipped)
	return stats, nil
}

// RunAll reprocesses every tenant's needs_review records.
func (r *Reprocessor) RunAll(ctx context.Context) (*Stats, error) {
	tenants, err := r.tenants.ListTenants(ctx)
	if err != nil {
		return nil, err
	}

	total := &Stats{}
	for _, tenant := range tenants {
		stats, err := r.Run(ctx, tenant.Id)
		if stats != nil {
			total.Scanned += stats.Scanned
			total.Updated += stats.Updated
			total.Skipped += stats.Skipped
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// reprocessRecord attempts one record and reports whether it was
// updated. Failures are logged and leave the record as-is.
func (r *Reprocessor) reprocessRecord(ctx context.Context, record *core.Record) bool {
	if record.ImageRef == "" {
		r.logger.Debug("record has no archived image, skipping",
			"tenant", record.OwnerId, "record", record.Id)
		return false
	}

	image, contentType, err := r.blobs.Get(ctx, record.ImageRef)
	if err != nil {
		r.logger.Warn("failed to fetch archived image",
			"tenant", record.OwnerId, "record", record.Id, "err", err)
		return false
	}

	result, err := r.extractor.Extract(ctx, image, contentType)
	if err != nil {
		r.logger.Warn("re-extraction failed, leaving record for next run",
			"tenant", record.OwnerId, "record", record.Id, "err", err)
		return false
	}

	record.Date = result.Date
	record.VendorName = result.Vendor
	record.Amount = result.Amount
	record.Category = result.Category
	record.Status = core.RecordStored

	if _, err := r.records.UpdateRecord(ctx, record); err != nil {
		r.logger.Warn("failed to persist reprocessed record",
			"tenant", record.OwnerId, "record", record.Id, "err", err)
		return false
	}
	return true
}
