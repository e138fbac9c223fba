package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/expensit/blob/memory"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/extract"
	"github.com/poiesic/expensit/extract/mock"
	"github.com/poiesic/expensit/normalize"
	"github.com/poiesic/expensit/storage"
	"github.com/poiesic/expensit/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReceiptImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 300))
	for x := 0; x < 200; x++ {
		for y := 0; y < 300; y++ {
			img.Set(x, y, color.RGBA{R: 240, G: 240, B: 235, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func newTestRepos(t *testing.T) (storage.TenantRepository, storage.RecordRepository) {
	t.Helper()
	tenants, records, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		tenants.Close()
		records.Close()
		backend.Close()
	})
	return tenants, records
}

func newTestPipeline(t *testing.T, tenants storage.TenantRepository, records storage.RecordRepository, extractor extract.Extractor, opts ...Option) *Pipeline {
	t.Helper()
	normalizer, err := normalize.NewNormalizer()
	require.NoError(t, err)

	pipeline, err := NewPipeline(tenants, records, normalizer, extractor, opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)
	return pipeline
}

var tenantSeq atomic.Int64

func addTenant(t *testing.T, tenants storage.TenantRepository, limit, used int64) *core.Tenant {
	t.Helper()
	tenant, err := tenants.AddTenant(context.Background(), &core.Tenant{
		Email:        fmt.Sprintf("tenant-%d@example.com", tenantSeq.Add(1)),
		PasswordHash: "x",
		Role:         core.RoleUser,
		Subscription: core.Subscription{
			Plan:   core.PlanFree.Name,
			Status: core.SubscriptionActive,
			Limit:  limit,
			Used:   used,
		},
	})
	require.NoError(t, err)
	return tenant
}

func tenantUsed(t *testing.T, tenants storage.TenantRepository, id core.ID) int64 {
	t.Helper()
	tenant, err := tenants.GetTenant(context.Background(), id)
	require.NoError(t, err)
	return tenant.Subscription.Used
}

func TestIngest_EndToEnd(t *testing.T) {
	tenants, records := newTestRepos(t)
	extractor := mock.NewMockExtractor()
	pipeline := newTestPipeline(t, tenants, records, extractor)
	tenant := addTenant(t, tenants, 10, 0)

	result, err := pipeline.Ingest(context.Background(), &Request{
		TenantID:    tenant.Id,
		Source:      core.SourceWeb,
		ContentType: "image/jpeg",
		Bytes:       testReceiptImage(t),
	})
	require.NoError(t, err)

	assert.Equal(t, core.RecordStored, result.Record.Status)
	assert.Equal(t, "2025-01-09", result.Record.Date)
	assert.Equal(t, "Convenience Store", result.Record.VendorName)
	assert.Equal(t, "500", result.Record.Amount.String())
	assert.EqualValues(t, 9, result.RemainingQuota)
	assert.EqualValues(t, 1, tenantUsed(t, tenants, tenant.Id))

	// Retrievable by its owner
	got, err := records.GetRecord(context.Background(), tenant.Id, result.Record.Id)
	require.NoError(t, err)
	assert.Equal(t, result.Record.Id, got.Id)

	// Invisible to any other tenant
	other := addTenant(t, tenants, 10, 0)
	_, err = records.GetRecord(context.Background(), other.Id, result.Record.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIngest_UnsupportedFormatTouchesNoQuota(t *testing.T) {
	tenants, records := newTestRepos(t)
	extractor := mock.NewMockExtractor()
	pipeline := newTestPipeline(t, tenants, records, extractor)
	tenant := addTenant(t, tenants, 10, 3)

	_, err := pipeline.Ingest(context.Background(), &Request{
		TenantID:    tenant.Id,
		Source:      core.SourceWeb,
		ContentType: "text/html",
		Bytes:       []byte("<html>"),
	})
	assert.ErrorIs(t, err, normalize.ErrUnsupportedFormat)
	assert.EqualValues(t, 3, tenantUsed(t, tenants, tenant.Id))
	assert.Equal(t, 0, extractor.CallCount())
}

func TestIngest_CorruptInputTouchesNoQuota(t *testing.T) {
	tenants, records := newTestRepos(t)
	extractor := mock.NewMockExtractor()
	pipeline := newTestPipeline(t, tenants, records, extractor)
	tenant := addTenant(t, tenants, 10, 0)

	_, err := pipeline.Ingest(context.Background(), &Request{
		TenantID:    tenant.Id,
		Source:      core.SourceWeb,
		ContentType: "image/jpeg",
		Bytes:       []byte("not a jpeg"),
	})
	assert.ErrorIs(t, err, normalize.ErrCorruptInput)
	assert.EqualValues(t, 0, tenantUsed(t, tenants, tenant.Id))
	assert.Equal(t, 0, extractor.CallCount())
}

func TestIngest_QuotaExceededSkipsExtraction(t *testing.T) {
	tenants, records := newTestRepos(t)
	extractor := mock.NewMockExtractor()
	pipeline := newTestPipeline(t, tenants, records, extractor)
	tenant := addTenant(t, tenants, 10, 10)

	_, err := pipeline.Ingest(context.Background(), &Request{
		TenantID:    tenant.Id,
		Source:      core.SourceWeb,
		ContentType: "image/jpeg",
		Bytes:       testReceiptImage(t),
	})
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)
	assert.EqualValues(t, 10, tenantUsed(t, tenants, tenant.Id))
	assert.Equal(t, 0, extractor.CallCount())
}

func TestIngest_LastSlotThenExceeded(t *testing.T) {
	tenants, records := newTestRepos(t)
	pipeline := newTestPipeline(t, tenants, records, mock.NewMockExtractor())
	tenant := addTenant(t, tenants, 10, 9)
	img := testReceiptImage(t)

	result, err := pipeline.Ingest(context.Background(), &Request{
		TenantID: tenant.Id, Source: core.SourceWeb, ContentType: "image/jpeg", Bytes: img,
	})
	require.NoError(t, err)
	assert.Equal(t, core.RecordStored, result.Record.Status)
	assert.EqualValues(t, 0, result.RemainingQuota)
	assert.EqualValues(t, 10, tenantUsed(t, tenants, tenant.Id))

	_, err = pipeline.Ingest(context.Background(), &Request{
		TenantID: tenant.Id, Source: core.SourceWeb, ContentType: "image/jpeg", Bytes: img,
	})
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)
	assert.EqualValues(t, 10, tenantUsed(t, tenants, tenant.Id))
}

func TestIngest_NoDoubleSpendUnderConcurrency(t *testing.T) {
	tenants, records := newTestRepos(t)
	pipeline := newTestPipeline(t, tenants, records, mock.NewMockExtractor(), WithPoolSize(8))
	tenant := addTenant(t, tenants, 10, 9) // exactly one slot left
	img := testReceiptImage(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = pipeline.Ingest(context.Background(), &Request{
				TenantID: tenant.Id, Source: core.SourceWeb, ContentType: "image/jpeg", Bytes: img,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, storage.ErrQuotaExceeded)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one attempt may claim the last slot")
	assert.EqualValues(t, 10, tenantUsed(t, tenants, tenant.Id))

	stored, err := records.ListRecords(context.Background(), tenant.Id)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestIngest_TerminalExtractionReleasesReservation(t *testing.T) {
	tenants, records := newTestRepos(t)
	extractor := mock.NewMockExtractor()
	extractor.ExtractFunc = func(context.Context, []byte, string) (*extract.Result, error) {
		return nil, extract.ErrUnsupported
	}
	pipeline := newTestPipeline(t, tenants, records, extractor)
	tenant := addTenant(t, tenants, 10, 4)

	_, err := pipeline.Ingest(context.Background(), &Request{
		TenantID: tenant.Id, Source: core.SourceWeb, ContentType: "image/jpeg", Bytes: testReceiptImage(t),
	})
	assert.ErrorIs(t, err, extract.ErrUnsupported)
	assert.EqualValues(t, 4, tenantUsed(t, tenants, tenant.Id), "reservation must net to zero")
}

func TestIngest_ExhaustionWithoutOptInFails(t *testing.T) {
	tenants, records := newTestRepos(t)
	extractor := mock.NewMockExtractor()
	extractor.ExtractFunc = func(context.Context, []byte, string) (*extract.Result, error) {
		return nil, fmt.Errorf("%w: transient", extract.ErrFailed)
	}
	pipeline := newTestPipeline(t, tenants, records, extractor)
	tenant := addTenant(t, tenants, 10, 4)

	_, err := pipeline.Ingest(context.Background(), &Request{
		TenantID: tenant.Id, Source: core.SourceWeb, ContentType: "image/jpeg", Bytes: testReceiptImage(t),
	})
	assert.ErrorIs(t, err, extract.ErrFailed)
	assert.EqualValues(t, 4, tenantUsed(t, tenants, tenant.Id))

	stored, err := records.ListRecords(context.Background(), tenant.Id)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestIngest_ExhaustionWithOptInStoresNeedsReview(t *testing.T) {
	tenants, records := newTestRepos(t)
	extractor := mock.NewMockExtractor()
	extractor.ExtractFunc = func(context.Context, []byte, string) (*extract.Result, error) {
		return nil, fmt.Errorf("%w: transient", extract.ErrFailed)
	}
	pipeline := newTestPipeline(t, tenants, records, extractor)
	tenant := addTenant(t, tenants, 10, 4)

	result, err := pipeline.Ingest(context.Background(), &Request{
		TenantID:          tenant.Id,
		Source:            core.SourceBot,
		ContentType:       "image/jpeg",
		Bytes:             testReceiptImage(t),
		AllowManualReview: true,
	})
	require.NoError(t, err)

	assert.Equal(t, core.RecordNeedsReview, result.Record.Status)
	assert.Empty(t, result.Record.VendorName)
	assert.Empty(t, result.Record.Date)
	assert.Equal(t, core.DefaultCategory, result.Record.Category)
	assert.Equal(t, core.SourceBot, result.Record.Source)
	// The stored record holds exactly one slot
	assert.EqualValues(t, 5, tenantUsed(t, tenants, tenant.Id))
}

func TestIngest_OptInStillFailsWhenQuotaGone(t *testing.T) {
	tenants, records := newTestRepos(t)
	extractor := mock.NewMockExtractor()
	extractor.ExtractFunc = func(context.Context, []byte, string) (*extract.Result, error) {
		return nil, fmt.Errorf("%w: transient", extract.ErrFailed)
	}
	pipeline := newTestPipeline(t, tenants, records, extractor)
	// The failed attempt's slot was the last one; after release a
	// concurrent writer could steal it, here nobody does, so the fresh
	// reservation succeeds. Force the exceeded path with a zero limit.
	tenant := addTenant(t, tenants, 0, 0)

	_, err := pipeline.Ingest(context.Background(), &Request{
		TenantID: tenant.Id, Source: core.SourceWeb, ContentType: "image/jpeg", Bytes: testReceiptImage(t),
		AllowManualReview: true,
	})
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)
}

// failingRecords rejects every write with ErrWriteFailed.
type failingRecords struct {
	storage.RecordRepository
	calls int
	mu    sync.Mutex
}

func (f *failingRecords) AddRecord(ctx context.Context, record *core.Record) (*core.Record, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return nil, fmt.Errorf("%w: disk on fire", storage.ErrWriteFailed)
}

func TestIngest_StorageFailureReleasesAfterBoundedRetries(t *testing.T) {
	tenants, records := newTestRepos(t)
	failing := &failingRecords{RecordRepository: records}
	pipeline := newTestPipeline(t, tenants, failing, mock.NewMockExtractor())
	tenant := addTenant(t, tenants, 10, 2)

	_, err := pipeline.Ingest(context.Background(), &Request{
		TenantID: tenant.Id, Source: core.SourceWeb, ContentType: "image/jpeg", Bytes: testReceiptImage(t),
	})
	assert.ErrorIs(t, err, storage.ErrWriteFailed)
	assert.Equal(t, putAttempts, failing.calls)
	assert.EqualValues(t, 2, tenantUsed(t, tenants, tenant.Id))
}

func TestIngest_UnlimitedPlanNeverExceeds(t *testing.T) {
	tenants, records := newTestRepos(t)
	pipeline := newTestPipeline(t, tenants, records, mock.NewMockExtractor())
	tenant, err := tenants.AddTenant(context.Background(), &core.Tenant{
		Email:        "unlimited@example.com",
		PasswordHash: "x",
		Role:         core.RoleUser,
		Subscription: core.NewSubscription(core.PlanUnlimited),
	})
	require.NoError(t, err)

	result, err := pipeline.Ingest(context.Background(), &Request{
		TenantID: tenant.Id, Source: core.SourceWeb, ContentType: "image/jpeg", Bytes: testReceiptImage(t),
	})
	require.NoError(t, err)
	assert.Equal(t, core.UnlimitedRemaining, result.RemainingQuota)
	assert.EqualValues(t, 1, tenantUsed(t, tenants, tenant.Id))
}

func TestIngest_AbandonedCallerStillCompletes(t *testing.T) {
	tenants, records := newTestRepos(t)
	pipeline := newTestPipeline(t, tenants, records, mock.NewMockExtractor())
	tenant := addTenant(t, tenants, 10, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // caller is already gone

	result, err := pipeline.Ingest(ctx, &Request{
		TenantID: tenant.Id, Source: core.SourceBot, ContentType: "image/jpeg", Bytes: testReceiptImage(t),
	})
	require.NoError(t, err)
	assert.Equal(t, core.RecordStored, result.Record.Status)
	assert.EqualValues(t, 1, tenantUsed(t, tenants, tenant.Id))
}

func TestIngest_ArchivesImageAndStoresReference(t *testing.T) {
	tenants, records := newTestRepos(t)
	blobs := memory.NewStore()
	pipeline := newTestPipeline(t, tenants, records, mock.NewMockExtractor(), WithBlobStore(blobs))
	tenant := addTenant(t, tenants, 10, 0)

	result, err := pipeline.Ingest(context.Background(), &Request{
		TenantID: tenant.Id, Source: core.SourceWeb, ContentType: "image/jpeg", Bytes: testReceiptImage(t),
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Record.ImageRef)

	data, contentType, err := blobs.Get(context.Background(), result.Record.ImageRef)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestIngest_FailedAttemptCleansUpArchivedImage(t *testing.T) {
	tenants, records := newTestRepos(t)
	blobs := memory.NewStore()
	extractor := mock.NewMockExtractor()
	extractor.ExtractFunc = func(context.Context, []byte, string) (*extract.Result, error) {
		return nil, extract.ErrUnsupported
	}
	pipeline := newTestPipeline(t, tenants, records, extractor, WithBlobStore(blobs))
	tenant := addTenant(t, tenants, 10, 0)

	_, err := pipeline.Ingest(context.Background(), &Request{
		TenantID: tenant.Id, Source: core.SourceWeb, ContentType: "image/jpeg", Bytes: testReceiptImage(t),
	})
	assert.ErrorIs(t, err, extract.ErrUnsupported)
	assert.Equal(t, 0, blobs.Len(), "orphaned archive should be deleted")
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	tenants, records := newTestRepos(t)
	normalizer, err := normalize.NewNormalizer()
	require.NoError(t, err)

	_, err = NewPipeline(nil, records, normalizer, mock.NewMockExtractor())
	assert.ErrorIs(t, err, ErrTenantRepositoryRequired)

	_, err = NewPipeline(tenants, nil, normalizer, mock.NewMockExtractor())
	assert.ErrorIs(t, err, ErrRecordRepositoryRequired)

	_, err = NewPipeline(tenants, records, nil, mock.NewMockExtractor())
	assert.ErrorIs(t, err, ErrNormalizerRequired)

	_, err = NewPipeline(tenants, records, normalizer, nil)
	assert.ErrorIs(t, err, ErrExtractorRequired)
}

func TestIngest_RejectsEmptyRequest(t *testing.T) {
	tenants, records := newTestRepos(t)
	pipeline := newTestPipeline(t, tenants, records, mock.NewMockExtractor())

	_, err := pipeline.Ingest(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRequestRequired)

	_, err = pipeline.Ingest(context.Background(), &Request{TenantID: 1, ContentType: "image/jpeg"})
	assert.ErrorIs(t, err, ErrRequestRequired)
}
