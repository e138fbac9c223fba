package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/expensit/core"
)

// Key prefixes for different data types
const (
	tenantPrefix      = "tenrec"
	tenantEmailPrefix = "tenem"
	tenantIDSeq       = "tenrecseq"
	receiptPrefix     = "rcprec"
	receiptIDSeq      = "rcprecseq"
)

// makeTenantKey generates a key for a tenant by ID.
func makeTenantKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", tenantPrefix, id))
}

// makeTenantEmailKey generates a key for the email index.
// Format: prefix:email
func makeTenantEmailKey(email string) []byte {
	return []byte(tenantEmailPrefix + ":" + email)
}

// makeReceiptKey generates a composite key for a record in its owner's
// collection. Format: prefix:tenantID:recordID
func makeReceiptKey(tenantID, recordID core.ID) []byte {
	prefix := receiptPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for tenantID + 8 bytes for recordID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort groups a tenant's
	// records together in ID order
	binary.BigEndian.PutUint64(buf[offset:], uint64(tenantID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(recordID))
	return buf
}

// makeReceiptScanPrefix generates the prefix covering one tenant's records.
// Format: prefix:tenantID
func makeReceiptScanPrefix(tenantID core.ID) []byte {
	prefix := receiptPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for tenantID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(tenantID))
	return buf
}
