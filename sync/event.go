package sync

import (
	"encoding/json"
	"time"

	"invoicing-backend/payments"

	"github.com/stripe/stripe-go/v82"
)

// SyncEvent is the canonical form of a processor notification. It is a closed
// sum: the concrete types below are the only implementations.
type SyncEvent interface {
	syncEvent()
}

// SubscriptionChangeKind distinguishes the lifecycle notification that produced
// a SubscriptionChanged event.
type SubscriptionChangeKind string

const (
	SubscriptionCreated SubscriptionChangeKind = "created"
	SubscriptionUpdated SubscriptionChangeKind = "updated"
	SubscriptionDeleted SubscriptionChangeKind = "deleted"
)

type ChargeSucceeded struct {
	ChargeRef       string
	PaymentIntentRef string
	Amount          int64
	Currency        string
	CustomerRef     string
	Billing         payments.BillingContact
	OccurredAt      time.Time
	EventID         string
}

type PaymentIntentSucceeded struct {
	IntentRef       string
	Amount          int64
	Currency        string
	CustomerRef     string
	Status          string
	PaymentMethodRef string
	ReceiptEmail    string
	Metadata        map[string]string
	OccurredAt      time.Time
	EventID         string
}

type SubscriptionChanged struct {
	SubscriptionRef string
	CustomerRef     string
	Status          string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	CancelAt        *time.Time
	CanceledAt      *time.Time
	Kind            SubscriptionChangeKind
	Metadata        map[string]string
	OccurredAt      time.Time
	EventID         string
}

type CheckoutCompleted struct {
	SubscriptionRef string
	CustomerRef     string
	Mode            string
	EventID         string
}

func (ChargeSucceeded) syncEvent()        {}
func (PaymentIntentSucceeded) syncEvent() {}
func (SubscriptionChanged) syncEvent()    {}
func (CheckoutCompleted) syncEvent()      {}

// Wire payloads. Only the fields the sync path needs are decoded; everything
// else in the notification body is ignored.

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type billingDetailsPayload struct {
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Phone   string          `json:"phone"`
	Address *addressPayload `json:"address"`
}

func (b *billingDetailsPayload) contact() payments.BillingContact {
	if b == nil {
		return payments.BillingContact{}
	}
	out := payments.BillingContact{Name: b.Name, Email: b.Email, Phone: b.Phone}
	if b.Address != nil {
		out.AddressLine1 = b.Address.Line1
		out.AddressLine2 = b.Address.Line2
		out.City = b.Address.City
		out.State = b.Address.State
		out.PostalCode = b.Address.PostalCode
		out.Country = b.Address.Country
	}
	return out
}

type chargePayload struct {
	ID             string                 `json:"id"`
	Amount         int64                  `json:"amount"`
	Currency       string                 `json:"currency"`
	Customer       string                 `json:"customer"`
	PaymentIntent  string                 `json:"payment_intent"`
	BillingDetails *billingDetailsPayload `json:"billing_details"`
	Created        int64                  `json:"created"`
}

type paymentIntentPayload struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Customer      string            `json:"customer"`
	Status        string            `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	ReceiptEmail  string            `json:"receipt_email"`
	Metadata      map[string]string `json:"metadata"`
	Created       int64             `json:"created"`
}

type subscriptionPayload struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAt           int64             `json:"cancel_at"`
	CanceledAt         int64             `json:"canceled_at"`
	Metadata           map[string]string `json:"metadata"`
}

type checkoutSessionPayload struct {
	Mode         string `json:"mode"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

// Normalize maps a raw processor notification into its canonical SyncEvent.
// Unrecognized event types yield (nil, nil): callers log and move on, so new
// processor event kinds never break intake. Payloads missing required fields
// yield a MalformedEventError.
func Normalize(event *stripe.Event) (SyncEvent, error) {
	switch string(event.Type) {
	case "charge.succeeded":
		var charge chargePayload
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, &MalformedEventError{Kind: "charge", Field: "payload"}
		}
		if charge.ID == "" {
			return nil, &MalformedEventError{Kind: "charge", Field: "id"}
		}
		if charge.Currency == "" {
			return nil, &MalformedEventError{Kind: "charge", Field: "currency"}
		}
		intentRef := charge.PaymentIntent
		if intentRef == "" {
			intentRef = charge.ID
		}
		return ChargeSucceeded{
			ChargeRef:        charge.ID,
			PaymentIntentRef: intentRef,
			Amount:           charge.Amount,
			Currency:         charge.Currency,
			CustomerRef:      charge.Customer,
			Billing:          charge.BillingDetails.contact(),
			OccurredAt:       time.Unix(charge.Created, 0).UTC(),
			EventID:          event.ID,
		}, nil

	case "payment_intent.succeeded":
		var intent paymentIntentPayload
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, &MalformedEventError{Kind: "payment_intent", Field: "payload"}
		}
		if intent.ID == "" {
			return nil, &MalformedEventError{Kind: "payment_intent", Field: "id"}
		}
		if intent.Currency == "" {
			return nil, &MalformedEventError{Kind: "payment_intent", Field: "currency"}
		}
		return PaymentIntentSucceeded{
			IntentRef:        intent.ID,
			Amount:           intent.Amount,
			Currency:         intent.Currency,
			CustomerRef:      intent.Customer,
			Status:           intent.Status,
			PaymentMethodRef: intent.PaymentMethod,
			ReceiptEmail:     intent.ReceiptEmail,
			Metadata:         intent.Metadata,
			OccurredAt:       time.Unix(intent.Created, 0).UTC(),
			EventID:          event.ID,
		}, nil

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, &MalformedEventError{Kind: "subscription", Field: "payload"}
		}
		if sub.ID == "" {
			return nil, &MalformedEventError{Kind: "subscription", Field: "id"}
		}
		if sub.Customer == "" {
			return nil, &MalformedEventError{Kind: "subscription", Field: "customer"}
		}
		kind := SubscriptionUpdated
		switch string(event.Type) {
		case "customer.subscription.created":
			kind = SubscriptionCreated
		case "customer.subscription.deleted":
			kind = SubscriptionDeleted
		}
		out := SubscriptionChanged{
			SubscriptionRef: sub.ID,
			CustomerRef:     sub.Customer,
			Status:          sub.Status,
			PeriodStart:     time.Unix(sub.CurrentPeriodStart, 0).UTC(),
			PeriodEnd:       time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
			Kind:            kind,
			Metadata:        sub.Metadata,
			OccurredAt:      time.Unix(event.Created, 0).UTC(),
			EventID:         event.ID,
		}
		if sub.CancelAt != 0 {
			t := time.Unix(sub.CancelAt, 0).UTC()
			out.CancelAt = &t
		}
		if sub.CanceledAt != 0 {
			t := time.Unix(sub.CanceledAt, 0).UTC()
			out.CanceledAt = &t
		}
		return out, nil

	case "checkout.session.completed":
		var session checkoutSessionPayload
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, &MalformedEventError{Kind: "checkout_session", Field: "payload"}
		}
		if session.Customer == "" {
			return nil, &MalformedEventError{Kind: "checkout_session", Field: "customer"}
		}
		return CheckoutCompleted{
			SubscriptionRef: session.Subscription,
			CustomerRef:     session.Customer,
			Mode:            session.Mode,
			EventID:         event.ID,
		}, nil
	}

	// Forward compatibility: unknown kinds are accepted and ignored.
	return nil, nil
}

// NormalizeCharge converts a charge fetched by the backfill reconciler into the
// same canonical event the live webhook path produces, so both sources share
// one sink.
func NormalizeCharge(charge payments.Charge) (ChargeSucceeded, error) {
	if charge.ID == "" {
		return ChargeSucceeded{}, &MalformedEventError{Kind: "charge", Field: "id"}
	}
	if charge.Currency == "" {
		return ChargeSucceeded{}, &MalformedEventError{Kind: "charge", Field: "currency"}
	}
	intentRef := charge.PaymentIntentID
	if intentRef == "" {
		intentRef = charge.ID
	}
	return ChargeSucceeded{
		ChargeRef:        charge.ID,
		PaymentIntentRef: intentRef,
		Amount:           charge.Amount,
		Currency:         charge.Currency,
		CustomerRef:      charge.CustomerID,
		Billing:          charge.Billing,
		OccurredAt:       charge.Created,
	}, nil
}
