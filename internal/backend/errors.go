package backend

import (
	"errors"
	"fmt"
)

// ErrUnauthorized matches any *AuthError via errors.Is.
var ErrUnauthorized = errors.New("authentication required")

// ErrNoEpisodes is returned when a submit request names nothing to process.
var ErrNoEpisodes = errors.New("submit request has no episodes")

var (
	// ErrCheckoutPending is returned while a hosted checkout is still open.
	ErrCheckoutPending = errors.New("checkout not completed yet")
	// ErrCheckoutExpired is returned when the hosted checkout session lapsed.
	ErrCheckoutExpired = errors.New("checkout session expired")
)

// AuthError reports a 401. By the time it is returned the session credentials
// have already been cleared.
type AuthError struct {
	Op string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, ErrUnauthorized)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

// RequestError covers every non-quota, non-auth failure: transport errors
// (Status 0), non-2xx statuses and undecodable success bodies. Message is safe
// to show to the user.
type RequestError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Network reports whether the request never produced a response.
func (e *RequestError) Network() bool { return e.Status == 0 }
