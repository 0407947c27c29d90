package controllers

import (
	"context"
	"encoding/json"
	"testing"

	"invoicing-backend/models"
	"invoicing-backend/payments"
	"invoicing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	portalURL      string
	portalCustomer string
}

func (s *stubProcessor) ListCharges(ctx context.Context, startingAfter string, limit int64) (payments.ChargePage, error) {
	return payments.ChargePage{}, nil
}

func (s *stubProcessor) RetrieveSubscription(ctx context.Context, id string) (*payments.Subscription, error) {
	return &payments.Subscription{ID: id}, nil
}

func (s *stubProcessor) RetrievePaymentMethod(ctx context.Context, id string) (*payments.PaymentMethod, error) {
	return &payments.PaymentMethod{ID: id}, nil
}

func (s *stubProcessor) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	s.portalCustomer = customerID
	return s.portalURL, nil
}

func TestGetAccountStats(t *testing.T) {
	app, db := newWebhookApp(t)
	account := seedWebhookAccount(t, db, "")
	authed := app.Group("", func(c *fiber.Ctx) error {
		c.Locals("accountID", account.Id)
		return c.Next()
	})
	authed.Get("/api/stats", GetAccountStats)

	require.NoError(t, db.Create(&models.Invoice{
		AccountID:     account.Id,
		InvoiceNumber: "INV-000001",
		Origin:        models.OriginManual,
		Currency:      "usd",
		PaidManual:    true,
	}).Error)
	chargeID := "ch_stats"
	require.NoError(t, db.Create(&models.Invoice{
		AccountID:      account.Id,
		InvoiceNumber:  "INV-000002",
		Origin:         models.OriginProcessorCharge,
		Currency:       "usd",
		StripeChargeID: &chargeID,
		Edited:         true,
	}).Error)
	require.NoError(t, db.Create(&models.DeletedInvoice{
		ID:            99,
		AccountID:     account.Id,
		InvoiceNumber: "INV-000003",
	}).Error)

	_, status, body := doRequest(t, app, fiber.MethodGet, "/api/stats", nil)
	require.Equal(t, fiber.StatusOK, status, string(body))

	var stats map[string]float64
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, float64(1), stats["manual_invoices"])
	assert.Equal(t, float64(1), stats["processor_invoices"])
	assert.Equal(t, float64(1), stats["paid_count"])
	assert.Equal(t, float64(1), stats["unpaid_count"])
	assert.Equal(t, float64(1), stats["edited_count"])
	assert.Equal(t, float64(1), stats["deleted_count"])
	assert.Equal(t, float64(1), stats["company_profiles"])
}

func TestCreateBillingPortalSession(t *testing.T) {
	app, db := newWebhookApp(t)
	account := seedWebhookAccount(t, db, "")

	encrypted, err := utils.EncryptSecret("sk_test_123")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Account{}).
		Where("id = ?", account.Id).
		Update("stripe_api_key", encrypted).Error)

	stub := &stubProcessor{portalURL: "https://billing.example.com/session/xyz"}
	previous := processorFactory
	processorFactory = func(apiKey string) payments.Processor { return stub }
	t.Cleanup(func() { processorFactory = previous })

	authed := app.Group("", func(c *fiber.Ctx) error {
		c.Locals("accountID", account.Id)
		return c.Next()
	})
	authed.Post("/api/billing-portal", CreateBillingPortalSession)

	// No subscription yet: nothing to open a portal for.
	_, status, _ := doRequest(t, app, fiber.MethodPost, "/api/billing-portal", fiber.Map{})
	assert.Equal(t, fiber.StatusNotFound, status)

	require.NoError(t, db.Create(&models.CustomerLink{
		StripeCustomerID: "cus_portal",
		AccountID:        account.Id,
	}).Error)
	require.NoError(t, db.Create(&models.Subscription{
		ID:               "sub_portal",
		AccountID:        account.Id,
		StripeCustomerID: "cus_portal",
		Status:           "active",
	}).Error)

	_, status, body := doRequest(t, app, fiber.MethodPost, "/api/billing-portal", fiber.Map{
		"return_url": "https://app.example.com/dashboard",
	})
	require.Equal(t, fiber.StatusOK, status, string(body))

	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, stub.portalURL, out["url"])
	assert.Equal(t, "cus_portal", stub.portalCustomer)
}
