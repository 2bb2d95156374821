package marketplace

import (
	"errors"
	"fmt"
)

// Kind classifies a failed fetch.
type Kind int

const (
	KindTransport Kind = iota
	KindAuthDenied
	KindRateLimited
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindAuthDenied:
		return "auth_denied"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream_error"
	default:
		return "transport_failure"
	}
}

var (
	ErrAuthDenied  = errors.New("marketplace credential rejected")
	ErrRateLimited = errors.New("marketplace rate limit exceeded")
	ErrUpstream    = errors.New("marketplace returned an error")
	ErrTransport   = errors.New("marketplace unreachable")
)

// FetchError is returned by Client.Fetch for every unsuccessful attempt.
type FetchError struct {
	Kind       Kind
	ExternalID string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.ExternalID, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.ExternalID, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.ExternalID, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel for the error's kind.
func (e *FetchError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *FetchError) sentinel() error {
	switch e.Kind {
	case KindAuthDenied:
		return ErrAuthDenied
	case KindRateLimited:
		return ErrRateLimited
	case KindUpstream:
		return ErrUpstream
	default:
		return ErrTransport
	}
}

// KindOf reports the fetch failure kind of err, if any.
func KindOf(err error) (Kind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
