package ingest

// State names a position in the per-attempt ingestion state machine.
type State int

const (
	// StateReceived is the initial state of every attempt.
	StateReceived State = iota + 1
	// StateNormalized means the upload decoded into a bounded image.
	StateNormalized
	// StateQuotaReserved means a usage slot is held and must be released
	// or made permanent.
	StateQuotaReserved
	// StateExtracted means the extraction service returned usable fields.
	StateExtracted
	// StateStored is the terminal success state; the reservation is
	// permanent.
	StateStored
	// StateFailed is the terminal failure state; any reservation has
	// been compensated.
	StateFailed
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateNormalized:
		return "normalized"
	case StateQuotaReserved:
		return "quota_reserved"
	case StateExtracted:
		return "extracted"
	case StateStored:
		return "stored"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
