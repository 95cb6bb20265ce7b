package types

import "errors"

// ErrorKind keys contained failures for the observability sink.
type ErrorKind string

const (
	KindStoreUnavailable     ErrorKind = "store_unavailable"
	KindStoreTimeout         ErrorKind = "store_timeout"
	KindAssistantUnavailable ErrorKind = "assistant_unavailable"
	KindMalformedIntent      ErrorKind = "malformed_intent"
)

var (
	ErrStoreUnavailable     = errors.New("log store unavailable")
	ErrStoreTimeout         = errors.New("log store timed out")
	ErrAssistantUnavailable = errors.New("assistant unavailable")
	ErrMalformedIntent      = errors.New("malformed intent")
)

// KindOf classifies err. Anything unrecognized from a store path is treated
// as unavailability by the caller; KindOf only reports what it can prove.
func KindOf(err error) (ErrorKind, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrStoreTimeout):
		return KindStoreTimeout, true
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable, true
	case errors.Is(err, ErrAssistantUnavailable):
		return KindAssistantUnavailable, true
	case errors.Is(err, ErrMalformedIntent):
		return KindMalformedIntent, true
	}
	return "", false
}
