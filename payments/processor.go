package payments

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidSignature is returned when a webhook payload fails signature
// verification against the account's configured signing secret.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// BillingContact is the processor's billing detail block, flattened.
type BillingContact struct {
	Name         string
	Email        string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
}

// Complete reports whether the contact carries enough data to be copied onto
// an account profile (checkout completion copies only complete contacts).
func (b BillingContact) Complete() bool {
	return b.Name != "" && b.Phone != "" && b.AddressLine1 != ""
}

// Charge is the subset of a processor charge the sync subsystem consumes.
type Charge struct {
	ID              string
	Amount          int64
	Currency        string
	CustomerID      string
	PaymentIntentID string
	Billing         BillingContact
	Created         time.Time
}

// Subscription is the subset of a processor subscription the sync subsystem
// consumes.
type Subscription struct {
	ID                     string
	CustomerID             string
	Status                 string
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	CancelAt               *time.Time
	CanceledAt             *time.Time
	DefaultPaymentMethodID string
}

// PaymentMethod is the subset of a processor payment method consumed when
// copying billing details onto the account.
type PaymentMethod struct {
	ID         string
	Type       string
	CustomerID string
	Billing    BillingContact
}

// ChargePage is one page of the processor's historical charge record, newest
// first. HasMore signals that paging with the last charge as cursor will yield
// older records.
type ChargePage struct {
	Charges []Charge
	HasMore bool
}

// Processor is the outbound contract against the payment processor. One client
// is built per account from its (decrypted) API key; tests substitute mocks.
type Processor interface {
	// ListCharges fetches up to limit charges strictly after the cursor
	// (exclusive), newest first. An empty cursor starts from the newest charge.
	ListCharges(ctx context.Context, startingAfter string, limit int64) (ChargePage, error)
	RetrieveSubscription(ctx context.Context, id string) (*Subscription, error)
	RetrievePaymentMethod(ctx context.Context, id string) (*PaymentMethod, error)
	// CreatePortalSession opens a hosted billing-portal session for the
	// customer and returns its URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// Factory builds a Processor for an account's API key. Indirection keeps the
// controllers testable without touching the real processor.
type Factory func(apiKey string) Processor
