package documents

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"invoicing-backend/models"

	"github.com/samber/lo"
)

var csvHeader = []string{
	"invoice_number", "origin", "date_of_issue", "currency", "total",
	"amount_due", "paid_manual", "paid_processor", "bill_to", "bill_to_email",
	"stripe_charge_id", "items",
}

// WriteInvoicesCSV streams the invoices as a CSV export, one row per invoice
// with line items collapsed into a single column.
func WriteInvoicesCSV(w io.Writer, invoices []models.Invoice) error {
	out := csv.NewWriter(w)
	if err := out.Write(csvHeader); err != nil {
		return err
	}
	for _, invoice := range invoices {
		items := lo.Map(invoice.Items, func(item models.InvoiceItem, _ int) string {
			return fmt.Sprintf("%s x%d @ %s", item.Description, item.Quantity, item.UnitPrice.StringFixed(2))
		})
		chargeID := ""
		if invoice.StripeChargeID != nil {
			chargeID = *invoice.StripeChargeID
		}
		issued := ""
		if invoice.DateOfIssue != nil {
			issued = invoice.DateOfIssue.Format(time.DateOnly)
		}
		row := []string{
			invoice.InvoiceNumber,
			invoice.Origin,
			issued,
			invoice.Currency,
			invoice.Total.StringFixed(2),
			invoice.AmountDue.StringFixed(2),
			fmt.Sprintf("%t", invoice.PaidManual),
			fmt.Sprintf("%t", invoice.PaidProcessor),
			invoice.BillTo,
			invoice.BillToEmail,
			chargeID,
			joinItems(items),
		}
		if err := out.Write(row); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

func joinItems(items []string) string {
	joined := ""
	for i, item := range items {
		if i > 0 {
			joined += "; "
		}
		joined += item
	}
	return joined
}
