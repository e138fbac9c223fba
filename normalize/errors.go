package normalize

import "errors"

var (
	// ErrUnsupportedFormat indicates a content type the normalizer does
	// not handle. Caller-correctable; never retried.
	ErrUnsupportedFormat = errors.New("unsupported input format")

	// ErrCorruptInput indicates input that failed to decode at some
	// stage. Caller-correctable; never retried.
	ErrCorruptInput = errors.New("corrupt input")
)
