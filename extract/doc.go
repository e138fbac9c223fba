// Package extract defines the contract for pulling structured receipt
// fields out of a normalized image via an external AI service, and
// provides a retrying client that wraps any Extractor with an explicit
// backoff policy.
//
// The package separates two concerns:
//
//   - Providers (see the openai subpackage) perform a single analysis
//     call and validate the service's response against the receipt
//     schema, classifying failures as terminal or retryable.
//   - Client decorates a provider with per-attempt timeouts and
//     exponential backoff with jitter, surfacing ErrFailed only after
//     the attempt budget is exhausted.
//
// The mock subpackage contains a test double.
package extract
