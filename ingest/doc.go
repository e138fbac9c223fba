// Package ingest orchestrates one receipt ingestion attempt: normalize
// the upload, reserve a quota slot, extract structured fields through
// the bounded extraction pool, persist the record, and compensate the
// reservation on any failure past it.
//
// The state machine per attempt is
//
//	RECEIVED → NORMALIZED → QUOTA_RESERVED → EXTRACTED → STORED
//
// with a failure transition from every state. Quota is reserved before
// the costly extraction call so over-quota tenants fail fast and the
// extraction service only ever sees paying load; the price is the
// compensation step that releases the slot when extraction or storage
// fails afterward. Compensate-then-report is invariant: no error leaves
// Ingest while a reservation it made is still held.
//
// Attempts detach from their caller's cancellation. A disconnected web
// client or a fire-and-forget bot delivery never interrupts a running
// attempt mid-pipeline, so reservations cannot be orphaned by abandoned
// requests.
package ingest
