package extract

import (
	"context"

	"github.com/shopspring/decimal"
)

// Result holds the structured fields pulled from one receipt image.
// It is a transient value object: validated copies of its fields end up
// on a core.Record, the Result itself is never persisted.
type Result struct {
	// Date is the purchase date in YYYY-MM-DD form, empty when the
	// service could not read one.
	Date string

	// Vendor is the merchant name, empty when unreadable.
	Vendor string

	// Amount is the receipt total. Zero with HasAmount false when the
	// service omitted it.
	Amount decimal.Decimal

	// HasAmount distinguishes a genuine zero-amount receipt from an
	// absent field.
	HasAmount bool

	// Category is the expense category, defaulted by the provider when
	// the service omits one.
	Category string

	// Confidence is the service's self-reported confidence in [0, 1],
	// zero when not reported.
	Confidence float64
}

// Empty reports whether the result carries none of the schema fields.
// Providers reject empty results as ErrUnsupported rather than return
// them.
func (r *Result) Empty() bool {
	return r.Date == "" && r.Vendor == "" && !r.HasAmount
}

// Extractor performs a single receipt analysis call against an external
// AI service. Implementations must be safe for concurrent use, validate
// the service's response against the receipt schema, and classify
// failures so that IsTerminal distinguishes hopeless inputs from
// transient faults. Retry policy is not the Extractor's job; wrap it in
// a Client for that.
type Extractor interface {
	// Extract analyzes a normalized receipt image and returns its
	// structured fields. The image is expected to already be within the
	// service's size limits; contentType names its encoding.
	Extract(ctx context.Context, image []byte, contentType string) (*Result, error)
}
