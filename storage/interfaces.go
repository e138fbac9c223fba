package storage

import (
	"context"

	"github.com/poiesic/expensit/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// TenantRepository provides operations for managing tenant accounts and
// their usage counters. ReserveUsage and ReleaseUsage are the only ways
// the usage counter may be mutated by concurrent callers; both run as
// store-level transactions with conflict retry, so they are safe from
// arbitrarily many goroutines and process instances at once.
type TenantRepository interface {
	Repository

	// AddTenant adds a tenant to storage.
	// For tenants with ID=0, generates a new ID from sequence.
	// Sets CreatedAt if not already set.
	// Returns ErrDuplicateKey if the email is already registered.
	AddTenant(ctx context.Context, tenant *core.Tenant) (*core.Tenant, error)

	// GetTenant retrieves a tenant by ID.
	// Returns ErrNotFound if the tenant doesn't exist.
	GetTenant(ctx context.Context, id core.ID) (*core.Tenant, error)

	// GetTenantByEmail retrieves a tenant by email address.
	// Returns ErrNotFound if no tenant has the address.
	GetTenantByEmail(ctx context.Context, email string) (*core.Tenant, error)

	// ListTenants retrieves all tenants ordered by ID.
	ListTenants(ctx context.Context) ([]*core.Tenant, error)

	// UpdateTenant updates an existing tenant's profile fields.
	// Updates the UpdatedAt timestamp automatically. Last write wins for
	// profile fields; the usage counter must only be changed through
	// ReserveUsage/ReleaseUsage.
	// Returns ErrNotFound if the tenant doesn't exist.
	UpdateTenant(ctx context.Context, tenant *core.Tenant) (*core.Tenant, error)

	// ChangeSubscription moves a tenant onto a new plan, re-deriving the
	// limit from the catalog and preserving the current usage counter.
	// Safe against concurrent ReserveUsage/ReleaseUsage calls.
	// Returns ErrNotFound if the tenant doesn't exist.
	ChangeSubscription(ctx context.Context, id core.ID, plan core.Plan) (*core.Tenant, error)

	// DeleteTenant removes a tenant and all of its records.
	// Returns ErrNotFound if the tenant doesn't exist.
	DeleteTenant(ctx context.Context, id core.ID) error

	// ReserveUsage atomically increments the tenant's usage counter if the
	// plan has capacity left, returning the remaining quota after the
	// reservation (UnlimitedRemaining for unlimited plans). Returns
	// ErrQuotaExceeded without mutating anything when the counter is at
	// the limit, and ErrNotFound for unknown tenants.
	ReserveUsage(ctx context.Context, id core.ID) (int64, error)

	// ReleaseUsage atomically decrements the tenant's usage counter by
	// one, floored at zero. Used as compensation when a reservation must
	// be undone after a downstream failure.
	ReleaseUsage(ctx context.Context, id core.ID) error
}

// RecordRepository provides operations for managing receipt records.
// Records live in per-tenant collections; every operation is scoped to an
// owning tenant and can never observe another tenant's records.
type RecordRepository interface {
	Repository

	// AddRecord adds a record to the owner's collection.
	// For records with ID=0, generates a new ID from sequence.
	// Sets CreatedAt if not already set.
	// Writing the same ID again overwrites idempotently.
	AddRecord(ctx context.Context, record *core.Record) (*core.Record, error)

	// GetRecord retrieves a record from the tenant's collection.
	// Returns ErrNotFound if the record doesn't exist for that tenant.
	GetRecord(ctx context.Context, tenantID, id core.ID) (*core.Record, error)

	// ListRecords retrieves all of a tenant's records, newest first.
	ListRecords(ctx context.Context, tenantID core.ID) ([]*core.Record, error)

	// ListNeedsReview retrieves the tenant's records awaiting manual
	// verification, newest first.
	ListNeedsReview(ctx context.Context, tenantID core.ID) ([]*core.Record, error)

	// UpdateRecord updates an existing record in its owner's collection.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if the record doesn't exist.
	UpdateRecord(ctx context.Context, record *core.Record) (*core.Record, error)

	// DeleteRecord removes a record from the tenant's collection.
	// Returns ErrNotFound if the record doesn't exist.
	DeleteRecord(ctx context.Context, tenantID, id core.ID) error

	// DeleteRecords removes multiple records from the tenant's collection.
	// Missing IDs are skipped; returns the number actually deleted.
	DeleteRecords(ctx context.Context, tenantID core.ID, ids ...core.ID) (int, error)
}
