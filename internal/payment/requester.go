package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
)

var ErrSessionFailed = errors.New("payment session failed")

// SessionError is the single failure shape of a payment session request
type SessionError struct {
	Reason string
	Err    error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrSessionFailed, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrSessionFailed, e.Reason)
}

func (e *SessionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSessionFailed, e.Err}
	}
	return []error{ErrSessionFailed}
}

// Checkout is a provider-hosted payable session
type Checkout struct {
	ID       string
	URL      string
	Amount   int64 // minor units
	Currency string
}

// Requester creates payable sessions. Callers validate keys against the
// catalog first.
type Requester interface {
	CreateCheckout(ctx context.Context, req models.BookingRequest) (*Checkout, error)
	CreateAddonCheckout(ctx context.Context, identity string, addons []string) (*Checkout, error)
}

// Recorder observes payment outcomes
type Recorder interface {
	ObservePayment(kind, outcome string)
}
