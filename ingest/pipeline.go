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


package ingest

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/expensit/blob"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/extract"
	"github.com/poiesic/expensit/normalize"
	"github.com/poiesic/expensit/storage"
)

const (
	// DefaultTimeout bounds one whole attempt, normalization through
	// storage.
	DefaultTimeout = 5 * time.Minute

	// compensationTimeout bounds the release call on failure paths. It
	// runs on a fresh context so an attempt that died of its overall
	// timeout can still compensate.
	compensationTimeout = 10 * time.Second

	putAttempts  = 3
	putBaseDelay = 100 * time.Millisecond
)

// Request is one inbound receipt upload.
type Request struct {
	TenantID    core.ID
	Source      core.SourceChannel
	ContentType string
	Bytes       []byte

	// AllowManualReview opts in to storing a needs_review record with
	// placeholder fields when extraction retries are exhausted, instead
	// of failing the attempt.
	AllowManualReview bool
}

// Result is returned to the caller on success, including degraded
// manual-review success.
type Result struct {
	Record *core.Record

	// RemainingQuota is the tenant's remaining slot count after this
	// attempt, core.UnlimitedRemaining for unlimited plans.
	RemainingQuota int64
}

// Pipeline runs ingestion attempts. Extraction calls go through a
// fixed-size worker pool so the number of outstanding external calls
// stays bounded no matter how many uploads arrive at once.
type Pipeline struct {
	tenants     storage.TenantRepository
	records     storage.RecordRepository
	normalizer  *normalize.Normalizer
	extractor   extract.Extractor
	blobs       blob.Store
	extractPool *ants.Pool
	timeout     time.Duration
	monitor     Monitor
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the extraction worker pool size, bounding concurrent
// calls to the extraction service.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.extractPool != nil {
			p.extractPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.extractPool = pool
		return nil
	}
}

// WithBlobStore enables best-effort archival of the normalized image.
// Without one, records carry an empty image reference.
func WithBlobStore(store blob.Store) Option {
	return func(p *Pipeline) error {
		p.blobs = store
		return nil
	}
}

// WithTimeout sets the overall per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d > 0 {
			p.timeout = d
		}
		return nil
	}
}

// WithMonitor installs an attempt observer.
func WithMonitor(m Monitor) Option {
	return func(p *Pipeline) error {
		if m != nil {
			p.monitor = m
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline. The extractor should
// already carry its retry policy (wrap providers in an extract.Client).
func NewPipeline(
	tenants storage.TenantRepository,
	records storage.RecordRepository,
	normalizer *normalize.Normalizer,
	extractor extract.Extractor,
	opts ...Option,
) (*Pipeline, error) {
	if tenants == nil {
		return nil, ErrTenantRepositoryRequired
	}
	if records == nil {
		return nil, ErrRecordRepositoryRequired
	}
	if normalizer == nil {
		return nil, ErrNormalizerRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		tenants:     tenants,
		records:     records,
		normalizer:  normalizer,
		extractor:   extractor,
		extractPool: pool,
		timeout:     DefaultTimeout,
		monitor:     &noopMonitor{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingest-pipeline")

	return p, nil
}

// Release releases the extraction worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.extractPool != nil {
		p.extractPool.Release()
	}
}

// Ingest runs one attempt to completion and returns the stored record
// with the remaining quota, or the structured error naming the failing
// stage. The attempt detaches from the caller's cancellation: it runs
// under the pipeline's own deadline so abandoned requests still finish
// and compensate. Every error path past reservation has released the
// slot by the time Ingest returns.
func (p *Pipeline) Ingest(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || len(req.Bytes) == 0 {
		return nil, ErrRequestRequired
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	a := &attempt{pipeline: p, req: req, state: StateReceived}
	p.monitor.AttemptStarted(req.TenantID, req.Source)

	result, err := a.run(ctx)
	if err != nil {
		a.to(StateFailed)
		p.monitor.AttemptFinished(req.TenantID, StateFailed, err)
		return nil, err
	}
	p.monitor.AttemptFinished(req.TenantID, StateStored, nil)
	return result, nil
}

// attempt carries one ingestion attempt's progress.
type attempt struct {
	pipeline *Pipeline
	req      *Request
	state    State
	archive  <-chan string
}

func (a *attempt) to(next State) {
	a.pipeline.monitor.Transition(a.req.TenantID, a.state, next)
	a.state = next
}

func (a *attempt) run(ctx context.Context) (*Result, error) {
	p := a.pipeline
	req := a.req

	// Normalization fails before any quota is touched.
	norm, err := p.normalizer.Normalize(req.Bytes, req.ContentType)
	if err != nil {
		return nil, err
	}
	a.to(StateNormalized)

	remaining, err := p.tenants.ReserveUsage(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	a.to(StateQuotaReserved)
	p.monitor.QuotaReserved(req.TenantID, remaining)

	// Archive the normalized image in parallel with extraction; the
	// record stores whatever reference is ready by then. Archival is
	// outside the critical path and never fails the attempt.
	a.archive = p.archiveImage(ctx, req.TenantID, norm)

	extracted, err := a.extract(ctx, norm)
	if err != nil {
		p.release(ctx, req.TenantID)
		if req.AllowManualReview && !extract.IsTerminal(err) && ctx.Err() == nil {
			return a.manualFallback(ctx)
		}
		a.discardArchive(ctx)
		return nil, err
	}
	a.to(StateExtracted)

	record := &core.Record{
		OwnerId:    req.TenantID,
		Date:       extracted.Date,
		VendorName: extracted.Vendor,
		Amount:     extracted.Amount,
		Category:   extracted.Category,
		ImageRef:   a.imageRef(ctx),
		Source:     req.Source,
		Status:     core.RecordStored,
	}

	stored, err := a.store(ctx, record)
	if err != nil {
		p.release(ctx, req.TenantID)
		a.discardArchive(ctx)
		return nil, err
	}
	a.to(StateStored)

	return &Result{Record: stored, RemainingQuota: remaining}, nil
}

// extract runs the extraction call through the bounded worker pool.
// Submit blocks while the pool is saturated, which is exactly the
// semaphore behavior the external service's rate limits require.
func (a *attempt) extract(ctx context.Context, norm *normalize.Result) (*extract.Result, error) {
	type outcome struct {
		result *extract.Result
		err    error
	}
	done := make(chan outcome, 1)

	err := a.pipeline.extractPool.Submit(func() {
		result, extractErr := a.pipeline.extractor.Extract(ctx, norm.Bytes, norm.ContentType)
		done <- outcome{result: result, err: extractErr}
	})
	if err != nil {
		return nil, err
	}

	out := <-done
	return out.result, out.err
}

// manualFallback stores a placeholder record after extraction exhaustion
// when the caller opted in. The failed attempt's reservation is already
// released; the stored record takes a fresh one so the usage counter
// accounts exactly one slot per stored record.
func (a *attempt) manualFallback(ctx context.Context) (*Result, error) {
	p := a.pipeline
	req := a.req

	remaining, err := p.tenants.ReserveUsage(ctx, req.TenantID)
	if err != nil {
		a.discardArchive(ctx)
		return nil, err
	}

	record := &core.Record{
		OwnerId:  req.TenantID,
		Category: core.DefaultCategory,
		ImageRef: a.imageRef(ctx),
		Source:   req.Source,
		Status:   core.RecordNeedsReview,
	}

	stored, err := a.store(ctx, record)
	if err != nil {
		p.release(ctx, req.TenantID)
		a.discardArchive(ctx)
		return nil, err
	}
	a.to(StateStored)

	return &Result{Record: stored, RemainingQuota: remaining}, nil
}

// store persists the record, retrying write failures a small bounded
// number of times. The record keeps the ID assigned on the first try, so
// a retry overwrites the same key idempotently.
func (a *attempt) store(ctx context.Context, record *core.Record) (*core.Record, error) {
	var lastErr error
	for attempt := 1; attempt <= putAttempts; attempt++ {
		stored, err := a.pipeline.records.AddRecord(ctx, record)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, storage.ErrWriteFailed) {
			return nil, err
		}
		lastErr = err
		a.pipeline.logger.Warn("record write failed",
			"tenant", record.OwnerId, "attempt", attempt, "err", err)

		if attempt == putAttempts {
			break
		}
		timer := time.NewTimer(putBaseDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// archiveImage starts the best-effort blob upload and returns the channel
// the reference (or empty string) arrives on.
func (p *Pipeline) archiveImage(ctx context.Context, tenantID core.ID, norm *normalize.Result) <-chan string {
	refCh := make(chan string, 1)
	if p.blobs == nil {
		refCh <- ""
		return refCh
	}

	go func() {
		ref, err := p.blobs.Put(ctx, blob.MakeKey(tenantID, norm.Bytes), norm.Bytes, norm.ContentType)
		if err != nil {
			p.logger.Warn("image archival failed, record will carry no image reference",
				"tenant", tenantID, "err", err)
			refCh <- ""
			return
		}
		refCh <- ref
	}()
	return refCh
}

// imageRef collects the archival result, once. Waits at most until the
// attempt deadline.
func (a *attempt) imageRef(ctx context.Context) string {
	if a.archive == nil {
		return ""
	}
	select {
	case ref := <-a.archive:
		a.archive = nil
		return ref
	case <-ctx.Done():
		a.archive = nil
		return ""
	}
}

// discardArchive deletes an already-archived image for a failed attempt.
// Best-effort; an orphaned blob costs pennies, an error here must not
// mask the attempt's real failure.
func (a *attempt) discardArchive(ctx context.Context) {
	ref := a.imageRef(ctx)
	if ref == "" {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := a.pipeline.blobs.Delete(dctx, ref); err != nil {
		a.pipeline.logger.Warn("orphaned image cleanup failed", "ref", ref, "err", err)
	}
}

// release compensates a reservation. It runs on a fresh deadline so that
// attempts killed by their overall timeout still compensate; if the
// release itself fails the drift is logged for the out-of-band
// reconciliation pass rather than retried forever here.
func (p *Pipeline) release(ctx context.Context, tenantID core.ID) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := p.tenants.ReleaseUsage(rctx, tenantID); err != nil {
		p.logger.Error("failed to release quota reservation",
			"tenant", tenantID, "err", err)
		p.monitor.CompensationFailed(tenantID, err)
		return
	}
	p.monitor.CompensationApplied(tenantID)
}
