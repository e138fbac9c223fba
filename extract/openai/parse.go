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


package openai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/extract"
	"github.com/shopspring/decimal"
)

// receiptFields matches the JSON shape the model is instructed to emit.
// Pointers distinguish omitted fields from zero values.
type receiptFields struct {
	Date        *string  `json:"date"`
	VendorName  *string  `json:"vendor_name"`
	TotalAmount *float64 `json:"total_amount"`
	Category    *string  `json:"category"`
	Confidence  *float64 `json:"confidence"`
}

// parseResponse turns raw model output into a validated Result. A
// response that parses but carries none of the schema fields is
// terminal: asking again about the same image will not conjure fields
// the model cannot see.
func parseResponse(text string) (*extract.Result, error) {
	text = repairJSON(stripFences(text))

	// Some models answer with a single-element array instead of the
	// bare object.
	var fields receiptFields
	if strings.HasPrefix(text, "[") {
		var list []receiptFields
		if err := json.Unmarshal([]byte(text), &list); err != nil {
			return nil, fmt.Errorf("%w: %w", extract.ErrMalformedResponse, err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: empty response array", extract.ErrUnsupported)
		}
		fields = list[0]
	} else if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", extract.ErrMalformedResponse, err)
	}

	result := &extract.Result{}

	if fields.Date != nil {
		// An unreadable date degrades to an empty field rather than
		// failing the whole extraction.
		if date, ok := parseDate(*fields.Date); ok {
			result.Date = date
		}
	}
	if fields.VendorName != nil {
		result.Vendor = strings.TrimSpace(*fields.VendorName)
	}
	if fields.TotalAmount != nil {
		amount := decimal.NewFromFloat(*fields.TotalAmount)
		if amount.IsNegative() {
			return nil, fmt.Errorf("%w: negative amount %s", extract.ErrMalformedResponse, amount)
		}
		result.Amount = amount
		result.HasAmount = true
	}
	if fields.Category != nil && strings.TrimSpace(*fields.Category) != "" {
		result.Category = strings.TrimSpace(*fields.Category)
	} else {
		result.Category = core.DefaultCategory
	}
	if fields.Confidence != nil && *fields.Confidence >= 0 && *fields.Confidence <= 1 {
		result.Confidence = *fields.Confidence
	}

	if result.Empty() {
		return nil, fmt.Errorf("%w: response carries no receipt fields", extract.ErrUnsupported)
	}
	return result, nil
}

// Date layouts receipts actually carry, most common first. Two-digit
// years are promoted to 20xx regardless of Go's 1969 pivot.
var dateLayouts = []struct {
	layout    string
	shortYear bool
}{
	{"2006-01-02", false},
	{"2006/01/02", false},
	{"2006.01.02", false},
	{"06-01-02", true},
	{"06/01/02", true},
	{"06.01.02", true},
}

// parseDate canonicalizes a date string to YYYY-MM-DD, promoting
// two-digit years to 20xx. Returns false when nothing parses.
func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, dl := range dateLayouts {
		t, err := time.Parse(dl.layout, s)
		if err != nil {
			continue
		}
		if dl.shortYear && t.Year() < 2000 {
			t = t.AddDate(100, 0, 0)
		}
		return t.Format("2006-01-02"), true
	}
	return "", false
}
