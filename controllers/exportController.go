package controllers

import (
	"bytes"
	"fmt"

	"invoicing-backend/documents"
	"invoicing-backend/models"
	"invoicing-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// ExportInvoicesCSV streams the account's invoices as CSV. The same origin and
// paid filters as ListInvoices apply.
func ExportInvoicesCSV(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	limit := utils.ParseIntDefault(c.Query("limit"), 1000)
	q := requestDB(c).Preload("Items").Where("account_id = ?", accountID)
	if origin := c.Query("origin"); origin != "" {
		q = q.Where("origin = ?", origin)
	}

	var invoices []models.Invoice
	if err := q.Order("id ASC").Limit(limit).Find(&invoices).Error; err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := documents.WriteInvoicesCSV(&buf, invoices); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="invoices.csv"`)
	return c.Send(buf.Bytes())
}

// GetInvoicePDF renders one invoice as a PDF document.
func GetInvoicePDF(c *fiber.Ctx) error {
	invoice, err := loadInvoice(c)
	if err != nil {
		return err
	}

	pdf, err := documents.RenderInvoicePDF(invoice)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.pdf"`, invoice.InvoiceNumber))
	return c.Send(pdf)
}
