package documents

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"invoicing-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() models.Invoice {
	chargeID := "ch_1"
	issued := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return models.Invoice{
		ID:             1,
		AccountID:      "acc_1",
		InvoiceNumber:  "INV-000007",
		Origin:         models.OriginProcessorCharge,
		StripeChargeID: &chargeID,
		Currency:       "usd",
		Total:          decimal.NewFromFloat(25.00),
		AmountDue:      decimal.NewFromFloat(25.00),
		PaidManual:     true,
		PaidProcessor:  true,
		BillTo:         "Grace Hopper",
		BillToEmail:    "grace@example.com",
		BillFrom:       "Analytical Engines Ltd",
		Items: []models.InvoiceItem{{
			Description: "Stripe payment",
			Quantity:    1,
			UnitPrice:   decimal.NewFromFloat(25.00),
			Subtotal:    decimal.NewFromFloat(25.00),
		}},
		ThankYouNote: "Thank you for your business!",
		DateOfIssue:  &issued,
	}
}

func TestWriteInvoicesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInvoicesCSV(&buf, []models.Invoice{sampleInvoice()}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, csvHeader, rows[0])
	row := rows[1]
	assert.Equal(t, "INV-000007", row[0])
	assert.Equal(t, models.OriginProcessorCharge, row[1])
	assert.Equal(t, "2024-03-01", row[2])
	assert.Equal(t, "25.00", row[4])
	assert.Equal(t, "ch_1", row[10])
	assert.Equal(t, "Stripe payment x1 @ 25.00", row[11])
}

func TestWriteInvoicesCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInvoicesCSV(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRenderInvoicePDF(t *testing.T) {
	invoice := sampleInvoice()
	pdf, err := RenderInvoicePDF(&invoice)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestRenderInvoicePDFWithoutDates(t *testing.T) {
	invoice := sampleInvoice()
	invoice.DateOfIssue = nil
	invoice.DateDue = nil
	pdf, err := RenderInvoicePDF(&invoice)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
}
