// Package server exposes the HTTP API: account registration and login,
// receipt upload into the ingestion pipeline, record listing and edits,
// and the admin tenant surface. Failures out of the pipeline map onto
// status codes the caller can act on: unsupported or corrupt input is
// 415, an exhausted quota is 402, an unreadable receipt is 422, an
// unavailable extraction service is 502.
package server
