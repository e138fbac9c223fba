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

import "github.com/poiesic/expensit/storage"

// NewRepositories opens a backend at path and creates tenant and record
// repositories on top of it. Caller must close both repos and the backend
// when done.
func NewRepositories(path string) (storage.TenantRepository, storage.RecordRepository, *Backend, error) {
	return newRepositories(path, false)
}

// NewMemoryRepositories creates in-memory tenant and record repositories
// for testing. Caller must close both repos and the backend when done.
func NewMemoryRepositories() (storage.TenantRepository, storage.RecordRepository, *Backend, error) {
	return newRepositories("", true)
}

func newRepositories(path string, inMemory bool) (storage.TenantRepository, storage.RecordRepository, *Backend, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, nil, nil, err
	}

	tenantRepo, err := NewTenantRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	recordRepo, err := NewRecordRepository(backend)
	if err != nil {
		tenantRepo.Close()
		backend.Close()
		return nil, nil, nil, err
	}

	return tenantRepo, recordRepo, backend, nil
}
