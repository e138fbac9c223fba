package expensit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/expensit/blob/memory"
	"github.com/poiesic/expensit/extract"
	"github.com/poiesic/expensit/extract/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *extract.Config {
	return extract.NewConfig(extract.WithAPIKey("test-key"))
}

func TestOpen(t *testing.T) {
	t.Run("create new service", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		svc, err := Open(tmpDir, WithExtractionConfig(testConfig()))
		require.NoError(t, err)
		require.NotNil(t, svc)
		defer svc.Close()

		assert.NotNil(t, svc.TenantRepository())
		assert.NotNil(t, svc.RecordRepository())
		assert.NotNil(t, svc.Extractor())
		assert.NotNil(t, svc.backend)
		assert.NotNil(t, svc.logger)
	})

	t.Run("error without API key", func(t *testing.T) {
		svc, err := Open(filepath.Join(t.TempDir(), "test_db"))
		assert.Error(t, err)
		assert.Nil(t, svc)
	})

	t.Run("injected extractor needs no key", func(t *testing.T) {
		svc, err := OpenMemory(WithExtractor(mock.NewMockExtractor()))
		require.NoError(t, err)
		defer svc.Close()
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// A file where the database directory should go.
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		svc, err := Open(tmpFile, WithExtractionConfig(testConfig()))
		assert.Error(t, err)
		assert.Nil(t, svc)
	})
}

func TestService_Close(t *testing.T) {
	svc, err := Open(t.TempDir(), WithExtractionConfig(testConfig()))
	require.NoError(t, err)
	require.NotNil(t, svc)

	assert.NoError(t, svc.Close())
}

func TestService_FactoryMethods(t *testing.T) {
	svc, err := OpenMemory(
		WithExtractor(mock.NewMockExtractor()),
		WithBlobStore(memory.NewStore()),
	)
	require.NoError(t, err)
	require.NotNil(t, svc)
	defer svc.Close()

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := svc.NewIngestionPipeline()
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("can create reprocessor", func(t *testing.T) {
		reprocessor, err := svc.NewReprocessor()
		require.NoError(t, err)
		require.NotNil(t, reprocessor)
	})
}
