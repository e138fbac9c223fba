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


package extract

import "errors"

var (
	// ErrUnsupported indicates the service rejected the input or returned
	// a response with no usable fields. Terminal; retrying the same image
	// cannot succeed.
	ErrUnsupported = errors.New("input not extractable")

	// ErrAuthFailed indicates the service rejected the credentials.
	// Terminal.
	ErrAuthFailed = errors.New("extraction service authentication failed")

	// ErrFailed indicates all retry attempts were exhausted on retryable
	// failures. It wraps the last attempt's error.
	ErrFailed = errors.New("extraction failed")

	// ErrTimeout indicates the final attempt exceeded its deadline.
	// Reported through ErrFailed's chain so callers matching either see it.
	ErrTimeout = errors.New("extraction timed out")

	// ErrMalformedResponse indicates the service answered with something
	// that does not parse against the receipt schema. Retryable; language
	// models occasionally emit broken JSON and succeed on a second ask.
	ErrMalformedResponse = errors.New("malformed extraction response")

	// ErrExtractorRequired is returned when a Client is built without an
	// inner Extractor.
	ErrExtractorRequired = errors.New("extractor required")
)

// IsTerminal reports whether err cannot be cured by retrying the same
// request. Unknown errors default to retryable: attempts are bounded
// anyway, and misclassifying a terminal error costs a couple of spare
// calls while misclassifying a retryable one costs a user-visible
// failure.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrUnsupported) || errors.Is(err, ErrAuthFailed)
}
