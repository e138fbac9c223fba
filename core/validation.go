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


package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the civil date layout used by Record.Date.
const DateLayout = "2006-01-02"

// ValidateTenant validates a Tenant according to domain rules.
//
// Validation rules:
//   - Email must be non-empty and contain a local part and a domain
//   - Role must be valid (user or admin)
//   - Subscription must pass ValidateSubscription
//
// NOT validated:
//   - PasswordHash (empty is valid for channel-provisioned accounts)
//   - ID (0 is valid from database sequences)
func ValidateTenant(tenant *Tenant) error {
	if tenant == nil {
		return fmt.Errorf("%w: tenant is nil", ErrInvalidTenant)
	}

	if err := ValidateEmail(tenant.Email); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTenant, err)
	}

	if err := ValidateRole(tenant.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTenant, err)
	}

	if err := ValidateSubscription(&tenant.Subscription); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTenant, err)
	}

	return nil
}

// ValidateSubscription validates a Subscription according to domain rules.
//
// Validation rules:
//   - Plan must exist in the catalog
//   - Limit and Used must be non-negative
//
// Used > Limit is NOT rejected here: it can only appear transiently inside
// a store transaction, and the quota gate prevents it from committing.
func ValidateSubscription(sub *Subscription) error {
	if sub == nil {
		return fmt.Errorf("%w: subscription is nil", ErrInvalidSubscription)
	}

	if _, err := PlanByName(sub.Plan); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSubscription, err)
	}

	if sub.Limit < 0 || sub.Used < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSubscription, ErrNegativeUsage)
	}

	return nil
}

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - OwnerId must be set
//   - Amount must be non-negative
//   - Date, when present, must parse as YYYY-MM-DD
//   - Source and Status must be valid
//
// NOT validated (legitimately empty on needs_review records):
//   - VendorName, Category, ImageRef
//   - ID (0 is valid from database sequences)
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.OwnerId == 0 {
		return fmt.Errorf("%w: owner id is required", ErrInvalidRecord)
	}

	if record.Amount.IsNegative() {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrNegativeAmount)
	}

	if record.Date != "" {
		if _, err := time.Parse(DateLayout, record.Date); err != nil {
			return fmt.Errorf("%w: %w: %q", ErrInvalidRecord, ErrInvalidDate, record.Date)
		}
	}

	if err := ValidateSourceChannel(record.Source); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if err := ValidateRecordStatus(record.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	return nil
}

// ValidateEmail checks that an address has a local part and a domain.
// Deliverability is the mail system's problem, not ours.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmptyEmail
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

// ValidateRole validates that a Role has a valid value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAdmin {
		return fmt.Errorf("%w: value %d", ErrInvalidRole, role)
	}
	return nil
}

// ValidateSourceChannel validates that a SourceChannel has a valid value.
func ValidateSourceChannel(source SourceChannel) error {
	if source != SourceWeb && source != SourceBot {
		return fmt.Errorf("%w: value %d", ErrInvalidSourceChannel, source)
	}
	return nil
}

// ValidateRecordStatus validates that a RecordStatus has a valid value.
func ValidateRecordStatus(status RecordStatus) error {
	if status != RecordStored && status != RecordNeedsReview {
		return fmt.Errorf("%w: value %d", ErrInvalidRecordStatus, status)
	}
	return nil
}
