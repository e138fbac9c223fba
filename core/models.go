package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/shopspring/decimal"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from byte content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(data []byte) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role identifies the privilege level of a tenant account.
type Role int

const (
	// RoleUser represents a regular account.
	RoleUser Role = iota + 1
	// RoleAdmin represents an administrative account.
	RoleAdmin
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// SubscriptionStatus indicates whether a subscription is currently active.
type SubscriptionStatus int

const (
	// SubscriptionActive means the tenant may ingest receipts.
	SubscriptionActive SubscriptionStatus = iota + 1
	// SubscriptionCanceled means the subscription has been terminated.
	SubscriptionCanceled
)

// String returns the wire name of the subscription status.
func (s SubscriptionStatus) String() string {
	switch s {
	case SubscriptionActive:
		return "active"
	case SubscriptionCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Subscription tracks a tenant's plan and usage counter.
// Used counts receipts ingested in the current cycle; the quota gate
// guarantees Used <= Limit for limited plans.
type Subscription struct {
	Plan   string
	Status SubscriptionStatus
	Limit  int64
	Used   int64
}

// Remaining reports how many ingestions are left, or -1 for unlimited plans.
func (s *Subscription) Remaining() int64 {
	if plan, err := PlanByName(s.Plan); err == nil && plan.Unlimited {
		return UnlimitedRemaining
	}
	if s.Used >= s.Limit {
		return 0
	}
	return s.Limit - s.Used
}

// Tenant is an isolated account with its own records and quota.
type Tenant struct {
	Id           ID
	Email        string
	PasswordHash string
	Role         Role
	Subscription Subscription
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SourceChannel identifies where an uploaded receipt came from.
type SourceChannel int

const (
	// SourceWeb represents a browser upload.
	SourceWeb SourceChannel = iota + 1
	// SourceBot represents an image delivered through a chat-bot channel.
	SourceBot
)

// String returns the wire name of the source channel.
func (s SourceChannel) String() string {
	switch s {
	case SourceWeb:
		return "web"
	case SourceBot:
		return "bot"
	default:
		return "unknown"
	}
}

// RecordStatus indicates whether a record's fields are trusted.
type RecordStatus int

const (
	// RecordStored means extraction populated the fields.
	RecordStored RecordStatus = iota + 1
	// RecordNeedsReview means a human should verify the fields.
	RecordNeedsReview
)

// String returns the wire name of the record status.
func (s RecordStatus) String() string {
	switch s {
	case RecordStored:
		return "stored"
	case RecordNeedsReview:
		return "needs_review"
	default:
		return "unknown"
	}
}

// DefaultCategory is assigned when the extraction service omits a category.
const DefaultCategory = "その他"

// Record is a single ingested receipt, owned exclusively by its tenant.
type Record struct {
	Id         ID
	OwnerId    ID
	Date       string // civil date, YYYY-MM-DD; empty when unknown
	VendorName string
	Amount     decimal.Decimal
	Category   string
	ImageRef   string // object storage key for the normalized image; empty when archival failed
	Source     SourceChannel
	Status     RecordStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
