package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeClient implements Processor on the Stripe API.
type StripeClient struct {
	client *stripe.Client
}

// NewStripeClient builds a per-account client from a decrypted API key.
func NewStripeClient(apiKey string) Processor {
	return &StripeClient{client: stripe.NewClient(apiKey, nil)}
}

// VerifyEvent checks the payload signature against the account's signing secret
// and returns the parsed event. API version mismatches are tolerated so that
// processor-side version bumps do not break intake.
func VerifyEvent(payload []byte, signature, secret string) (*stripe.Event, error) {
	options := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, options)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	return &event, nil
}

// ParseEvent parses a payload without verification. Only valid for accounts
// with no signing secret configured (degraded-trust mode).
func ParseEvent(payload []byte) (*stripe.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *StripeClient) ListCharges(ctx context.Context, startingAfter string, limit int64) (ChargePage, error) {
	params := &stripe.ChargeListParams{}
	params.Limit = stripe.Int64(limit)
	if startingAfter != "" {
		params.StartingAfter = stripe.String(startingAfter)
	}

	page := ChargePage{}
	for ch, err := range c.client.V1Charges.List(ctx, params) {
		if err != nil {
			return ChargePage{}, err
		}
		page.Charges = append(page.Charges, chargeFromStripe(ch))
		if int64(len(page.Charges)) >= limit {
			break
		}
	}
	// The iterator pages transparently; a full page means older records may
	// still exist behind the last cursor.
	page.HasMore = int64(len(page.Charges)) == limit
	return page, nil
}

func (c *StripeClient) RetrieveSubscription(ctx context.Context, id string) (*Subscription, error) {
	stripeSub, err := c.client.V1Subscriptions.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		ID:     stripeSub.ID,
		Status: string(stripeSub.Status),
	}
	if stripeSub.Customer != nil {
		sub.CustomerID = stripeSub.Customer.ID
	}
	if stripeSub.DefaultPaymentMethod != nil {
		sub.DefaultPaymentMethodID = stripeSub.DefaultPaymentMethod.ID
	}
	if stripeSub.CancelAt != 0 {
		t := time.Unix(stripeSub.CancelAt, 0).UTC()
		sub.CancelAt = &t
	}
	if stripeSub.CanceledAt != 0 {
		t := time.Unix(stripeSub.CanceledAt, 0).UTC()
		sub.CanceledAt = &t
	}
	// Period bounds live on the subscription items.
	if stripeSub.Items != nil && len(stripeSub.Items.Data) > 0 {
		item := stripeSub.Items.Data[0]
		sub.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		sub.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
	}
	return sub, nil
}

func (c *StripeClient) RetrievePaymentMethod(ctx context.Context, id string) (*PaymentMethod, error) {
	stripePM, err := c.client.V1PaymentMethods.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, err
	}

	pm := &PaymentMethod{
		ID:   stripePM.ID,
		Type: string(stripePM.Type),
	}
	if stripePM.Customer != nil {
		pm.CustomerID = stripePM.Customer.ID
	}
	if bd := stripePM.BillingDetails; bd != nil {
		pm.Billing.Name = bd.Name
		pm.Billing.Email = bd.Email
		pm.Billing.Phone = bd.Phone
		if bd.Address != nil {
			pm.Billing.AddressLine1 = bd.Address.Line1
			pm.Billing.AddressLine2 = bd.Address.Line2
			pm.Billing.City = bd.Address.City
			pm.Billing.State = bd.Address.State
			pm.Billing.PostalCode = bd.Address.PostalCode
			pm.Billing.Country = bd.Address.Country
		}
	}
	return pm, nil
}

func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionCreateParams{
		Customer: stripe.String(customerID),
	}
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}
	session, err := c.client.V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		return "", err
	}
	return session.URL, nil
}

func chargeFromStripe(ch *stripe.Charge) Charge {
	out := Charge{
		ID:       ch.ID,
		Amount:   ch.Amount,
		Currency: string(ch.Currency),
		Created:  time.Unix(ch.Created, 0).UTC(),
	}
	if ch.Customer != nil {
		out.CustomerID = ch.Customer.ID
	}
	if ch.PaymentIntent != nil {
		out.PaymentIntentID = ch.PaymentIntent.ID
	}
	if bd := ch.BillingDetails; bd != nil {
		out.Billing.Name = bd.Name
		out.Billing.Email = bd.Email
		out.Billing.Phone = bd.Phone
		if bd.Address != nil {
			out.Billing.AddressLine1 = bd.Address.Line1
			out.Billing.AddressLine2 = bd.Address.Line2
			out.Billing.City = bd.Address.City
			out.Billing.State = bd.Address.State
			out.Billing.PostalCode = bd.Address.PostalCode
			out.Billing.Country = bd.Address.Country
		}
	}
	return out
}
