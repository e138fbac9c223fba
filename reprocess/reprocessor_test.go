package reprocess

import (
	"bytes"
	"context"
	"testing"

	"github.com/poiesic/expensit/blob"
	"github.com/poiesic/expensit/blob/memory"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/extract"
	"github.com/poiesic/expensit/extract/mock"
	"github.com/poiesic/expensit/storage"
	"github.com/poiesic/expensit/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func seedTenant(t *testing.T, tenants storage.TenantRepository, email string) *core.Tenant {
	t.Helper()
	tenant, err := tenants.AddTenant(context.Background(), &core.Tenant{
		Email:        email,
		PasswordHash: "x",
		Role:         core.RoleUser,
		Subscription: core.NewSubscription(core.PlanFree),
	})
	require.NoError(t, err)
	return tenant
}

func seedNeedsReview(t *testing.T, records storage.RecordRepository, blobs *memory.Store, tenantID core.ID, withImage bool) *core.Record {
	t.Helper()
	record := &core.Record{
		OwnerId:  tenantID,
		Category: core.DefaultCategory,
		Source:   core.SourceWeb,
		Status:   core.RecordNeedsReview,
	}
	if withImage {
		ref, err := blobs.Put(context.Background(), blob.MakeKey(tenantID, []byte("img")), []byte("img"), "image/jpeg")
		require.NoError(t, err)
		record.ImageRef = ref
	}
	stored, err := records.AddRecord(context.Background(), record)
	require.NoError(t, err)
	return stored
}

func TestRun_UpdatesReviewableRecords(t *testing.T) {
	tenants, records := newTestRepos(t)
	blobs := memory.NewStore()
	tenant := seedTenant(t, tenants, "t1@example.com")
	record := seedNeedsReview(t, records, blobs, tenant.Id, true)

	usedBefore := tenant.Subscription.Used

	r, err := NewReprocessor(records, tenants, mock.NewMockExtractor(), blobs)
	require.NoError(t, err)

	stats, err := r.Run(context.Background(), tenant.Id)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Scanned: 1, Updated: 1, Skipped: 0}, stats)

	updated, err := records.GetRecord(context.Background(), tenant.Id, record.Id)
	require.NoError(t, err)
	assert.Equal(t, core.RecordStored, updated.Status)
	assert.Equal(t, "Convenience Store", updated.VendorName)
	assert.Equal(t, "2025-01-09", updated.Date)

	// Reprocessing never touches the usage counter
	after, err := tenants.GetTenant(context.Background(), tenant.Id)
	require.NoError(t, err)
	assert.Equal(t, usedBefore, after.Subscription.Used)
}

func TestRun_SkipsFailingExtraction(t *testing.T) {
	tenants, records := newTestRepos(t)
	blobs := memory.NewStore()
	tenant := seedTenant(t, tenants, "t2@example.com")
	record := seedNeedsReview(t, records, blobs, tenant.Id, true)

	extractor := mock.NewMockExtractor()
	extractor.ExtractFunc = func(context.Context, []byte, string) (*extract.Result, error) {
		return nil, extract.ErrFailed
	}

	r, err := NewReprocessor(records, tenants, extractor, blobs)
	require.NoError(t, err)

	stats, err := r.Run(context.Background(), tenant.Id)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Scanned: 1, Updated: 0, Skipped: 1}, stats)

	// Untouched, still awaiting review
	got, err := records.GetRecord(context.Background(), tenant.Id, record.Id)
	require.NoError(t, err)
	assert.Equal(t, core.RecordNeedsReview, got.Status)
}

func TestRun_SkipsRecordsWithoutArchive(t *testing.T) {
	tenants, records := newTestRepos(t)
	blobs := memory.NewStore()
	tenant := seedTenant(t, tenants, "t3@example.com")
	seedNeedsReview(t, records, blobs, tenant.Id, false)

	extractor := mock.NewMockExtractor()
	r, err := NewReprocessor(records, tenants, extractor, blobs)
	require.NoError(t, err)

	stats, err := r.Run(context.Background(), tenant.Id)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Scanned: 1, Updated: 0, Skipped: 1}, stats)
	assert.Equal(t, 0, extractor.CallCount())
}

func TestRunAll_CoversEveryTenant(t *testing.T) {
	tenants, records := newTestRepos(t)
	blobs := memory.NewStore()
	t1 := seedTenant(t, tenants, "a@example.com")
	t2 := seedTenant(t, tenants, "b@example.com")
	seedNeedsReview(t, records, blobs, t1.Id, true)
	seedNeedsReview(t, records, blobs, t2.Id, true)

	r, err := NewReprocessor(records, tenants, mock.NewMockExtractor(), blobs)
	require.NoError(t, err)

	stats, err := r.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Updated)
}

func TestRun_ReportsProgress(t *testing.T) {
	tenants, records := newTestRepos(t)
	blobs := memory.NewStore()
	tenant := seedTenant(t, tenants, "p@example.com")
	seedNeedsReview(t, records, blobs, tenant.Id, true)

	var out bytes.Buffer
	r, err := NewReprocessor(records, tenants, mock.NewMockExtractor(), blobs, WithProgress(&out))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), tenant.Id)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Reprocessed: 1/1")
}

func TestNewReprocessor_RequiresCollaborators(t *testing.T) {
	tenants, records := newTestRepos(t)
	blobs := memory.NewStore()
	extractor := mock.NewMockExtractor()

	_, err := NewReprocessor(nil, tenants, extractor, blobs)
	assert.ErrorIs(t, err, ErrRecordRepositoryRequired)
	_, err = NewReprocessor(records, nil, extractor, blobs)
	assert.ErrorIs(t, err, ErrTenantRepositoryRequired)
	_, err = NewReprocessor(records, tenants, nil, blobs)
	assert.ErrorIs(t, err, ErrExtractorRequired)
	_, err = NewReprocessor(records, tenants, extractor, nil)
	assert.ErrorIs(t, err, ErrBlobStoreRequired)
}
