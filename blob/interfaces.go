package blob

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/poiesic/expensit/core"
)

// Store persists image blobs and hands back opaque references.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put writes data under key and returns the reference to store on
	// the record. The reference is the key for both provided backends,
	// but callers must treat it as opaque.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get reads a blob back by its reference, returning the data and
	// its content type. Returns ErrNotFound for unknown references.
	Get(ctx context.Context, ref string) ([]byte, string, error)

	// Delete removes a blob. Deleting an unknown reference is a no-op.
	Delete(ctx context.Context, ref string) error

	// Close releases the backing client.
	Close() error
}

// MakeKey builds a tenant-prefixed key for a normalized image. The
// content hash makes keys stable for identical bytes and easy to grep in
// bucket listings; the UUID suffix keeps retried attempts from clobbering
// each other's objects.
func MakeKey(tenantID core.ID, data []byte) string {
	return fmt.Sprintf("receipts/%d/%016x-%s.jpg", tenantID, uint64(core.IDFromContent(data)), uuid.NewString()[:8])
}
