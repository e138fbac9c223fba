package mock

import (
	"context"
	"sync"

	"github.com/poiesic/expensit/extract"
	"github.com/shopspring/decimal"
)

// MockExtractor is a test double for extract.Extractor.
// It allows custom behavior injection via function fields.
type MockExtractor struct {
	// ExtractFunc is called by Extract if set.
	// If nil, returns a fixed plausible receipt.
	ExtractFunc func(ctx context.Context, image []byte, contentType string) (*extract.Result, error)

	mu        sync.Mutex
	callCount int
}

var _ extract.Extractor = (*MockExtractor)(nil)

// NewMockExtractor creates a mock extractor with default behavior.
// Note: Returns concrete type to allow test assertions via CallCount().
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

// Extract returns canned receipt fields, or delegates to ExtractFunc.
func (m *MockExtractor) Extract(ctx context.Context, image []byte, contentType string) (*extract.Result, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, image, contentType)
	}

	return &extract.Result{
		Date:       "2025-01-09",
		Vendor:     "Convenience Store",
		Amount:     decimal.NewFromInt(500),
		HasAmount:  true,
		Category:   "groceries",
		Confidence: 0.95,
	}, nil
}

// CallCount returns the number of times Extract was called.
func (m *MockExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.ExtractFunc = nil
}
