package errors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid")
	ErrTooMany           = errors.New("too many requests")
	ErrInternal          = errors.New("internal")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCapacityExceeded  = errors.New("system busy")
	ErrRange             = errors.New("out of range")
	ErrTransientStore    = errors.New("transient store failure")
	ErrPartialCleanup    = errors.New("partial cleanup failure")
	ErrAIUnavailable     = errors.New("ai unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether an ingestion step may succeed on a later attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrInvalid), errors.Is(err, ErrNotFound), errors.Is(err, ErrAIUnavailable):
		return false
	}
	return true
}
