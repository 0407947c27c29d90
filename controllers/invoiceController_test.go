package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"

	"invoicing-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newInvoiceApp wires the invoice handlers behind a stub auth layer so the
// tests exercise handler plus store behavior without JWTs.
func newInvoiceApp(t *testing.T) (*fiber.App, *gorm.DB, *models.Account) {
	t.Helper()
	app, db := newWebhookApp(t)
	account := seedWebhookAccount(t, db, "")

	authed := app.Group("", func(c *fiber.Ctx) error {
		c.Locals("accountID", account.Id)
		return c.Next()
	})
	authed.Post("/api/invoice", CreateInvoice)
	authed.Get("/api/invoices", ListInvoices)
	authed.Get("/api/invoice/:id", GetInvoice)
	authed.Patch("/api/invoice/:id", UpdateInvoice)
	authed.Put("/api/invoice/:id/pay", SetInvoicePaid(true))
	authed.Delete("/api/invoice/:id", DeleteInvoice)
	return app, db, account
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body any) (*fiber.App, int, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return app, resp.StatusCode, buf.Bytes()
}

func TestCreateManualInvoice(t *testing.T) {
	app, db, account := newInvoiceApp(t)

	_, status, body := doRequest(t, app, fiber.MethodPost, "/api/invoice", fiber.Map{
		"currency": "usd",
		"bill_to":  "Grace Hopper",
		"items": []fiber.Map{
			{"description": "Consulting", "quantity": 2, "unit_price": 150.0},
			{"description": "Travel", "quantity": 1, "unit_price": 99.5},
		},
	})
	require.Equal(t, fiber.StatusOK, status, string(body))

	var invoice models.Invoice
	require.NoError(t, db.Preload("Items").First(&invoice, "account_id = ?", account.Id).Error)
	assert.Equal(t, "INV-000001", invoice.InvoiceNumber)
	assert.Equal(t, models.OriginManual, invoice.Origin)
	assert.Nil(t, invoice.StripeChargeID)
	assert.Equal(t, "399.5", invoice.Total.String())
	require.Len(t, invoice.Items, 2)
	// Bill-from stamped from the account's profile.
	assert.Equal(t, "Analytical Engines Ltd", invoice.BillFrom)
}

func TestCreateInvoiceValidation(t *testing.T) {
	app, db, _ := newInvoiceApp(t)

	// No items.
	_, status, _ := doRequest(t, app, fiber.MethodPost, "/api/invoice", fiber.Map{
		"currency": "usd",
		"bill_to":  "Grace Hopper",
		"items":    []fiber.Map{},
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListInvoicesFiltersByOrigin(t *testing.T) {
	app, db, account := newInvoiceApp(t)

	_, status, _ := doRequest(t, app, fiber.MethodPost, "/api/invoice", fiber.Map{
		"currency": "usd",
		"bill_to":  "Grace Hopper",
		"items":    []fiber.Map{{"description": "Consulting", "quantity": 1, "unit_price": 100.0}},
	})
	require.Equal(t, fiber.StatusOK, status)

	chargeID := "ch_x"
	require.NoError(t, db.Create(&models.Invoice{
		AccountID:      account.Id,
		InvoiceNumber:  "INV-000099",
		Origin:         models.OriginProcessorCharge,
		StripeChargeID: &chargeID,
	}).Error)

	_, status, body := doRequest(t, app, fiber.MethodGet, "/api/invoices?origin=manual", nil)
	require.Equal(t, fiber.StatusOK, status)
	var listed []models.Invoice
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, models.OriginManual, listed[0].Origin)
}

func TestUpdateInvoiceMarksEdited(t *testing.T) {
	app, db, account := newInvoiceApp(t)

	_, status, _ := doRequest(t, app, fiber.MethodPost, "/api/invoice", fiber.Map{
		"currency": "usd",
		"bill_to":  "Grace Hopper",
		"items":    []fiber.Map{{"description": "Consulting", "quantity": 1, "unit_price": 100.0}},
	})
	require.Equal(t, fiber.StatusOK, status)

	var invoice models.Invoice
	require.NoError(t, db.First(&invoice, "account_id = ?", account.Id).Error)

	_, status, _ = doRequest(t, app, fiber.MethodPatch,
		"/api/invoice/"+itoa(invoice.ID), fiber.Map{"bill_to": "Grace B. Hopper"})
	require.Equal(t, fiber.StatusOK, status)

	require.NoError(t, db.First(&invoice, invoice.ID).Error)
	assert.Equal(t, "Grace B. Hopper", invoice.BillTo)
	assert.True(t, invoice.Edited)
	// Number never changes on edit.
	assert.Equal(t, "INV-000001", invoice.InvoiceNumber)
}

func TestDeleteInvoiceWritesTombstone(t *testing.T) {
	app, db, account := newInvoiceApp(t)

	_, status, _ := doRequest(t, app, fiber.MethodPost, "/api/invoice", fiber.Map{
		"currency": "usd",
		"bill_to":  "Grace Hopper",
		"items":    []fiber.Map{{"description": "Consulting", "quantity": 1, "unit_price": 100.0}},
	})
	require.Equal(t, fiber.StatusOK, status)

	var invoice models.Invoice
	require.NoError(t, db.First(&invoice, "account_id = ?", account.Id).Error)

	_, status, _ = doRequest(t, app, fiber.MethodDelete, "/api/invoice/"+itoa(invoice.ID), nil)
	require.Equal(t, fiber.StatusOK, status)

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)

	var tombstone models.DeletedInvoice
	require.NoError(t, db.First(&tombstone, "id = ?", invoice.ID).Error)
	assert.Equal(t, "INV-000001", tombstone.InvoiceNumber)

	// The freed number is not reissued.
	_, status, _ = doRequest(t, app, fiber.MethodPost, "/api/invoice", fiber.Map{
		"currency": "usd",
		"bill_to":  "Grace Hopper",
		"items":    []fiber.Map{{"description": "Consulting", "quantity": 1, "unit_price": 100.0}},
	})
	require.Equal(t, fiber.StatusOK, status)
	var next models.Invoice
	require.NoError(t, db.First(&next, "account_id = ?", account.Id).Error)
	assert.Equal(t, "INV-000002", next.InvoiceNumber)
}

func TestSetInvoicePaid(t *testing.T) {
	app, db, account := newInvoiceApp(t)

	_, status, _ := doRequest(t, app, fiber.MethodPost, "/api/invoice", fiber.Map{
		"currency": "usd",
		"bill_to":  "Grace Hopper",
		"items":    []fiber.Map{{"description": "Consulting", "quantity": 1, "unit_price": 100.0}},
	})
	require.Equal(t, fiber.StatusOK, status)

	var invoice models.Invoice
	require.NoError(t, db.First(&invoice, "account_id = ?", account.Id).Error)
	require.False(t, invoice.PaidManual)

	_, status, _ = doRequest(t, app, fiber.MethodPut, "/api/invoice/"+itoa(invoice.ID)+"/pay", nil)
	require.Equal(t, fiber.StatusOK, status)

	require.NoError(t, db.First(&invoice, invoice.ID).Error)
	assert.True(t, invoice.PaidManual)
	// Processor confirmation is out of reach of the manual flag.
	assert.False(t, invoice.PaidProcessor)
}
