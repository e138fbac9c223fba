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

import "errors"

// Domain validation errors
var (
	// ErrInvalidTenant indicates a Tenant failed validation.
	ErrInvalidTenant = errors.New("invalid tenant")

	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidSubscription indicates a Subscription failed validation.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrEmptyEmail indicates the Email field is empty.
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrInvalidEmail indicates the Email field is not a plausible address.
	ErrInvalidEmail = errors.New("email is not a valid address")

	// ErrInvalidRole indicates an invalid Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrUnknownPlan indicates a plan name not present in the catalog.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrNegativeAmount indicates a record amount below zero.
	ErrNegativeAmount = errors.New("amount cannot be negative")

	// ErrInvalidDate indicates a date that does not parse as YYYY-MM-DD.
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

	// ErrInvalidRecordStatus indicates an invalid RecordStatus value.
	ErrInvalidRecordStatus = errors.New("invalid record status")

	// ErrInvalidSourceChannel indicates an invalid SourceChannel value.
	ErrInvalidSourceChannel = errors.New("invalid source channel")

	// ErrNegativeUsage indicates a usage counter or limit below zero.
	ErrNegativeUsage = errors.New("usage and limit cannot be negative")
)
