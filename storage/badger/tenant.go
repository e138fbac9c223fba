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


package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/storage"
)

// TenantRepository implements storage.TenantRepository for BadgerDB.
type TenantRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.TenantRepository = (*TenantRepository)(nil)

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(backend *Backend) (*TenantRepository, error) {
	idSeq, err := backend.GetSequence(tenantIDSeq)
	if err != nil {
		return nil, err
	}

	return &TenantRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *TenantRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *TenantRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddTenant adds a tenant to storage.
func (r *TenantRepository) AddTenant(ctx context.Context, tenant *core.Tenant) (*core.Tenant, error) {
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		// Reject duplicate email registrations
		emailKey := makeTenantEmailKey(tenant.Email)
		if _, err := tx.Get(emailKey); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if tenant.Id == 0 {
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			tenant.Id = core.ID(nextID)
		}

		if tenant.CreatedAt.IsZero() {
			tenant.CreatedAt = time.Now().UTC()
		}
		tenant.UpdatedAt = time.Now().UTC()

		key := makeTenantKey(tenant.Id)
		if err := tx.Set(key, storage.MarshalTenant(tenant)); err != nil {
			return err
		}
		return tx.Set(emailKey, storage.MarshalID(tenant.Id))
	})
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// GetTenant retrieves a tenant by ID.
func (r *TenantRepository) GetTenant(ctx context.Context, id core.ID) (*core.Tenant, error) {
	var result *core.Tenant
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readTenant(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetTenantByEmail retrieves a tenant through the email index.
func (r *TenantRepository) GetTenantByEmail(ctx context.Context, email string) (*core.Tenant, error) {
	var result *core.Tenant
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeTenantEmailKey(email))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var id core.ID
		if err := item.Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return err
		}

		result, err = readTenant(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListTenants retrieves all tenants ordered by ID.
func (r *TenantRepository) ListTenants(ctx context.Context) ([]*core.Tenant, error) {
	var results []*core.Tenant
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(tenantPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var tenant *core.Tenant
			err := iter.Item().Value(func(val []byte) error {
				var err error
				tenant, err = storage.UnmarshalTenant(val)
				return err
			})
			if err != nil {
				return err
			}
			if tenant != nil {
				results = append(results, tenant)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Keys are decimal strings, so iteration order is lexicographic
	slices.SortFunc(results, func(a, b *core.Tenant) int {
		if a.Id < b.Id {
			return -1
		}
		if a.Id > b.Id {
			return 1
		}
		return 0
	})
	return results, nil
}

// UpdateTenant updates a tenant's profile fields. The stored usage counter
// is carried over unchanged; ReserveUsage and ReleaseUsage own it.
func (r *TenantRepository) UpdateTenant(ctx context.Context, tenant *core.Tenant) (*core.Tenant, error) {
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		old, err := readTenant(tx, tenant.Id)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		tenant.Subscription.Used = old.Subscription.Used
		tenant.CreatedAt = old.CreatedAt
		tenant.UpdatedAt = time.Now().UTC()

		// Move the email index if the address changed
		if old.Email != tenant.Email {
			newEmailKey := makeTenantEmailKey(tenant.Email)
			if _, err := tx.Get(newEmailKey); err == nil {
				return storage.ErrDuplicateKey
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			if err := tx.Delete(makeTenantEmailKey(old.Email)); err != nil {
				return err
			}
			if err := tx.Set(newEmailKey, storage.MarshalID(tenant.Id)); err != nil {
				return err
			}
		}

		return tx.Set(makeTenantKey(tenant.Id), storage.MarshalTenant(tenant))
	})
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// ChangeSubscription moves a tenant onto a new plan, re-deriving the limit
// from the catalog and preserving the usage counter.
func (r *TenantRepository) ChangeSubscription(ctx context.Context, id core.ID, plan core.Plan) (*core.Tenant, error) {
	var result *core.Tenant
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		tenant, err := readTenant(tx, id)
		if err != nil {
			return err
		}
		if tenant == nil {
			return storage.ErrNotFound
		}

		tenant.Subscription.Plan = plan.Name
		tenant.Subscription.Limit = plan.Limit
		tenant.UpdatedAt = time.Now().UTC()

		if err := tx.Set(makeTenantKey(id), storage.MarshalTenant(tenant)); err != nil {
			return err
		}
		result = tenant
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteTenant removes a tenant, its email index entry, and all of its
// records.
func (r *TenantRepository) DeleteTenant(ctx context.Context, id core.ID) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		tenant, err := readTenant(tx, id)
		if err != nil {
			return err
		}
		if tenant == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(makeTenantEmailKey(tenant.Email)); err != nil {
			return err
		}
		if err := tx.Delete(makeTenantKey(id)); err != nil {
			return err
		}

		// Sweep the tenant's record collection. Keys are collected first
		// because deleting while iterating invalidates the iterator.
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeReceiptScanPrefix(id)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		var keys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReserveUsage atomically claims one slot of the tenant's quota.
//
// The read, the ceiling check, and the increment all happen inside one
// conflict-checked transaction. Two concurrent reservations for the same
// tenant both read the same snapshot, but only one commit wins; the loser
// is retried by Update against the new state and then sees the incremented
// counter. A tenant at its limit therefore can never be double-charged
// past it, no matter how many attempts race across processes.
func (r *TenantRepository) ReserveUsage(ctx context.Context, id core.ID) (int64, error) {
	var remaining int64
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		tenant, err := readTenant(tx, id)
		if err != nil {
			return err
		}
		if tenant == nil {
			return storage.ErrNotFound
		}

		sub := &tenant.Subscription
		plan, planErr := core.PlanByName(sub.Plan)
		unlimited := planErr == nil && plan.Unlimited

		if !unlimited && sub.Used >= sub.Limit {
			// Abort without touching anything
			return storage.ErrQuotaExceeded
		}

		sub.Used++
		if unlimited {
			remaining = core.UnlimitedRemaining
		} else {
			remaining = sub.Limit - sub.Used
		}
		tenant.UpdatedAt = time.Now().UTC()

		return tx.Set(makeTenantKey(id), storage.MarshalTenant(tenant))
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// ReleaseUsage returns one previously reserved slot, floored at zero.
func (r *TenantRepository) ReleaseUsage(ctx context.Context, id core.ID) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		tenant, err := readTenant(tx, id)
		if err != nil {
			return err
		}
		if tenant == nil {
			return storage.ErrNotFound
		}

		if tenant.Subscription.Used == 0 {
			return nil
		}
		tenant.Subscription.Used--
		tenant.UpdatedAt = time.Now().UTC()

		return tx.Set(makeTenantKey(id), storage.MarshalTenant(tenant))
	})
}

// readTenant reads a tenant from the transaction.
// Returns (nil, nil) when the key is absent.
func readTenant(tx *badger.Txn, id core.ID) (*core.Tenant, error) {
	item, err := tx.Get(makeTenantKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var tenant *core.Tenant
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		tenant, unmarshalErr = storage.UnmarshalTenant(val)
		return unmarshalErr
	})
	return tenant, err
}
