package sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func rawEvent(eventType string, payload string) *stripe.Event {
	return &stripe.Event{
		ID:      "evt_1",
		Type:    stripe.EventType(eventType),
		Created: 1710050000,
		Data:    &stripe.EventData{Raw: json.RawMessage(payload)},
	}
}

func TestNormalizeChargeSucceeded(t *testing.T) {
	ev, err := Normalize(rawEvent("charge.succeeded", `{
		"id": "ch_1",
		"amount": 2500,
		"currency": "usd",
		"customer": "cus_1",
		"payment_intent": "pi_1",
		"created": 1709294400,
		"billing_details": {
			"name": "Grace Hopper",
			"email": "grace@example.com",
			"phone": "+1 555 0100",
			"address": {"line1": "1 Navy Way", "city": "Arlington", "country": "US"}
		}
	}`))
	require.NoError(t, err)

	charge, ok := ev.(ChargeSucceeded)
	require.True(t, ok)
	assert.Equal(t, "ch_1", charge.ChargeRef)
	assert.Equal(t, "pi_1", charge.PaymentIntentRef)
	assert.Equal(t, int64(2500), charge.Amount)
	assert.Equal(t, "usd", charge.Currency)
	assert.Equal(t, "cus_1", charge.CustomerRef)
	assert.Equal(t, "Grace Hopper", charge.Billing.Name)
	assert.Equal(t, "1 Navy Way", charge.Billing.AddressLine1)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), charge.OccurredAt)
	assert.Equal(t, "evt_1", charge.EventID)
}

func TestNormalizeChargeFallsBackToChargeRef(t *testing.T) {
	ev, err := Normalize(rawEvent("charge.succeeded", `{"id": "ch_2", "amount": 100, "currency": "eur"}`))
	require.NoError(t, err)
	assert.Equal(t, "ch_2", ev.(ChargeSucceeded).PaymentIntentRef)
}

func TestNormalizeMissingFieldsAreMalformed(t *testing.T) {
	cases := map[string]struct {
		eventType string
		payload   string
	}{
		"charge without id":           {"charge.succeeded", `{"amount": 100, "currency": "usd"}`},
		"charge without currency":     {"charge.succeeded", `{"id": "ch_1", "amount": 100}`},
		"intent without currency":     {"payment_intent.succeeded", `{"id": "pi_1", "amount": 100}`},
		"subscription without id":     {"customer.subscription.updated", `{"customer": "cus_1"}`},
		"subscription without customer": {"customer.subscription.updated", `{"id": "sub_1"}`},
		"checkout without customer":   {"checkout.session.completed", `{"mode": "subscription"}`},
		"unparseable body":            {"charge.succeeded", `{]`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := Normalize(rawEvent(tc.eventType, tc.payload))
			assert.Nil(t, ev)
			assert.True(t, IsMalformed(err), "expected malformed error, got %v", err)
		})
	}
}

func TestNormalizeUnknownTypeIsIgnored(t *testing.T) {
	ev, err := Normalize(rawEvent("invoice.finalized", `{"id": "in_1"}`))
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

func TestNormalizeSubscriptionLifecycle(t *testing.T) {
	ev, err := Normalize(rawEvent("customer.subscription.deleted", `{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "canceled",
		"current_period_start": 1709294400,
		"current_period_end": 1711972800,
		"canceled_at": 1710000000
	}`))
	require.NoError(t, err)

	sub, ok := ev.(SubscriptionChanged)
	require.True(t, ok)
	assert.Equal(t, SubscriptionDeleted, sub.Kind)
	assert.Equal(t, "canceled", sub.Status)
	require.NotNil(t, sub.CanceledAt)
	assert.Equal(t, time.Unix(1710000000, 0).UTC(), *sub.CanceledAt)
	assert.Nil(t, sub.CancelAt)
	assert.Equal(t, time.Unix(1710050000, 0).UTC(), sub.OccurredAt)
}

func TestNormalizeCheckoutCompleted(t *testing.T) {
	ev, err := Normalize(rawEvent("checkout.session.completed", `{
		"mode": "subscription",
		"customer": "cus_1",
		"subscription": "sub_1"
	}`))
	require.NoError(t, err)

	session, ok := ev.(CheckoutCompleted)
	require.True(t, ok)
	assert.Equal(t, "subscription", session.Mode)
	assert.Equal(t, "cus_1", session.CustomerRef)
	assert.Equal(t, "sub_1", session.SubscriptionRef)
}

func TestNormalizeChargeFromBackfill(t *testing.T) {
	ev, err := NormalizeCharge(paymentsCharge("ch_9", 4200))
	require.NoError(t, err)
	assert.Equal(t, "ch_9", ev.ChargeRef)
	assert.Equal(t, int64(4200), ev.Amount)

	_, err = NormalizeCharge(paymentsCharge("", 100))
	assert.True(t, IsMalformed(err))
}
