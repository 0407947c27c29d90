package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOriginProfile means the account has no bill-from profile configured;
	// user-actionable, never retried.
	ErrNoOriginProfile = errors.New("no default billing profile configured")

	// ErrUnknownCustomer means a subscription event referenced a processor
	// customer with no local account mapping (the checkout that would have
	// created it never arrived). Reported, not retried.
	ErrUnknownCustomer = errors.New("unknown processor customer")

	// ErrAllocationFailed is surfaced after bounded retries on invoice-number
	// collisions.
	ErrAllocationFailed = errors.New("invoice number allocation failed")
)

// MalformedEventError marks a notification that parsed as JSON but is missing
// fields the sync path requires. Such events are reported and dropped, never
// retried.
type MalformedEventError struct {
	Kind  string
	Field string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s event: missing %s", e.Kind, e.Field)
}

// IsMalformed reports whether err is a MalformedEventError.
func IsMalformed(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}
