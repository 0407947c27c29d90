package controllers

import (
	"time"

	"invoicing-backend/middlewares"
	"invoicing-backend/models"
	appsync "invoicing-backend/sync"
	"invoicing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const maxListLimit = 100

type invoiceItemDTO struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

type createInvoiceDTO struct {
	Currency string `json:"currency" validate:"required,len=3"`

	BillTo             string `json:"bill_to" validate:"required,max=200"`
	BillToAddressLine1 string `json:"bill_to_address_line_1" validate:"max=200"`
	BillToAddressLine2 string `json:"bill_to_address_line_2" validate:"max=200"`
	BillToCity         string `json:"bill_to_city" validate:"max=100"`
	BillToState        string `json:"bill_to_state" validate:"max=100"`
	BillToPostalCode   string `json:"bill_to_postal_code" validate:"max=20"`
	BillToCountry      string `json:"bill_to_country" validate:"max=100"`
	BillToEmail        string `json:"bill_to_email" validate:"omitempty,email"`
	BillToPhone        string `json:"bill_to_phone" validate:"max=50"`

	Items []invoiceItemDTO `json:"items" validate:"required,min=1,dive"`

	ThankYouNote string `json:"thankyou_note" validate:"max=500"`
	Discount     string `json:"discount" validate:"max=50"`
	PaidManual   bool   `json:"paid_manual"`
	DateOfIssue  string `json:"date_of_issue" validate:"omitempty,datetime=2006-01-02"`
	DateDue      string `json:"date_due" validate:"omitempty,datetime=2006-01-02"`
}

// CreateInvoice books a manual invoice. The number comes from the same
// allocator the processor sync uses, so manual and synced invoices share one
// gap-free sequence per account.
func CreateInvoice(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	var dto createInvoiceDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	db := requestDB(c)

	profile, err := originProfileOrNil(c, accountID)
	if err != nil {
		return err
	}

	items := make([]models.InvoiceItem, 0, len(dto.Items))
	total := decimal.Zero
	for _, it := range dto.Items {
		unit := decimal.NewFromFloat(it.UnitPrice).Round(2)
		subtotal := unit.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		items = append(items, models.InvoiceItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   unit,
			Subtotal:    subtotal,
		})
		total = total.Add(subtotal)
	}

	number, err := appsync.NewAllocator(db).Next(c.Context(), accountID)
	if err != nil {
		return err
	}

	invoice := models.Invoice{
		AccountID:     accountID,
		InvoiceNumber: number,
		Origin:        models.OriginManual,
		Currency:      dto.Currency,
		Total:         total,
		AmountDue:     total,
		Discount:      dto.Discount,
		PaidManual:    dto.PaidManual,

		BillTo:             dto.BillTo,
		BillToAddressLine1: dto.BillToAddressLine1,
		BillToAddressLine2: dto.BillToAddressLine2,
		BillToCity:         dto.BillToCity,
		BillToState:        dto.BillToState,
		BillToPostalCode:   dto.BillToPostalCode,
		BillToCountry:      dto.BillToCountry,
		BillToEmail:        dto.BillToEmail,
		BillToPhone:        dto.BillToPhone,

		Items:        items,
		ThankYouNote: dto.ThankYouNote,
		DateOfIssue:  parseDate(dto.DateOfIssue),
		DateDue:      parseDate(dto.DateDue),
	}
	if invoice.DateOfIssue == nil {
		now := time.Now().UTC()
		invoice.DateOfIssue = &now
	}
	if profile != nil {
		stampBillFrom(&invoice, profile)
	}

	if err := db.Create(&invoice).Error; err != nil {
		return err
	}
	return c.JSON(invoice)
}

func ListInvoices(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	limit := utils.ParseIntDefault(c.Query("limit"), 25)
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := utils.ParseIntDefault(c.Query("offset"), 0)

	q := requestDB(c).Preload("Items").Where("account_id = ?", accountID)
	if origin := c.Query("origin"); origin != "" {
		q = q.Where("origin = ?", origin)
	}
	switch c.Query("paid") {
	case "true":
		q = q.Where("paid_manual = ?", true)
	case "false":
		q = q.Where("paid_manual = ?", false)
	}

	var invoices []models.Invoice
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&invoices).Error; err != nil {
		return err
	}
	return c.JSON(invoices)
}

func GetInvoice(c *fiber.Ctx) error {
	invoice, err := loadInvoice(c)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

type invoicePatchDTO struct {
	BillTo             *string `json:"bill_to" validate:"omitempty,max=200"`
	BillToAddressLine1 *string `json:"bill_to_address_line_1" validate:"omitempty,max=200"`
	BillToAddressLine2 *string `json:"bill_to_address_line_2" validate:"omitempty,max=200"`
	BillToCity         *string `json:"bill_to_city" validate:"omitempty,max=100"`
	BillToState        *string `json:"bill_to_state" validate:"omitempty,max=100"`
	BillToPostalCode   *string `json:"bill_to_postal_code" validate:"omitempty,max=20"`
	BillToCountry      *string `json:"bill_to_country" validate:"omitempty,max=100"`
	BillToEmail        *string `json:"bill_to_email" validate:"omitempty,email"`
	BillToPhone        *string `json:"bill_to_phone" validate:"omitempty,max=50"`
	ThankYouNote       *string `json:"thankyou_note" validate:"omitempty,max=500"`
	Discount           *string `json:"discount" validate:"omitempty,max=50"`
	DateDue            *string `json:"date_due" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateInvoice patches presentation fields. The number, origin, amounts and
// processor references are immutable here.
func UpdateInvoice(c *fiber.Ctx) error {
	invoice, err := loadInvoice(c)
	if err != nil {
		return err
	}

	var dto invoicePatchDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)

	updates := utils.UpdatesFromPtrDTO(&dto, nil)
	if len(updates) == 0 {
		return c.JSON(invoice)
	}
	if raw, ok := updates["date_due"].(string); ok {
		updates["date_due"] = parseDate(raw)
	}
	updates["edited"] = true

	db := requestDB(c)
	if err := db.Model(invoice).Updates(updates).Error; err != nil {
		return err
	}
	if err := db.Preload("Items").First(invoice, invoice.ID).Error; err != nil {
		return err
	}
	return c.JSON(invoice)
}

// SetInvoicePaid flips the manual paid flag. Processor confirmation
// (paid_processor) is owned by the sync path and never changed here.
func SetInvoicePaid(paid bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		invoice, err := loadInvoice(c)
		if err != nil {
			return err
		}
		if err := requestDB(c).Model(invoice).Update("paid_manual", paid).Error; err != nil {
			return err
		}
		invoice.PaidManual = paid
		return c.JSON(invoice)
	}
}

// DeleteInvoice removes the invoice but writes a tombstone first, so the
// numbering history keeps accounting for the deleted number.
func DeleteInvoice(c *fiber.Ctx) error {
	invoice, err := loadInvoice(c)
	if err != nil {
		return err
	}

	db := requestDB(c)
	tombstone := models.DeletedInvoice{
		ID:            invoice.ID,
		AccountID:     invoice.AccountID,
		InvoiceNumber: invoice.InvoiceNumber,
		DeletedAt:     time.Now().UTC(),
	}
	if err := db.Create(&tombstone).Error; err != nil {
		return err
	}
	if err := db.Delete(invoice).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

func loadInvoice(c *fiber.Ctx) (*models.Invoice, error) {
	accountID := requestAccountID(c)
	var invoice models.Invoice
	err := requestDB(c).Preload("Items").
		Where("account_id = ?", accountID).
		First(&invoice, "id = ?", c.Params("id")).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func originProfileOrNil(c *fiber.Ctx, accountID string) (*models.CompanyProfile, error) {
	var profile models.CompanyProfile
	err := requestDB(c).
		Where("account_id = ?", accountID).
		Order("\"default\" DESC, created_at DESC").
		First(&profile).Error
	if err != nil {
		// Manual invoices may be created before any profile exists.
		return nil, nil
	}
	return &profile, nil
}

func stampBillFrom(invoice *models.Invoice, profile *models.CompanyProfile) {
	invoice.BillFrom = profile.BillFrom
	invoice.BillFromAddressLine1 = profile.AddressLine1
	invoice.BillFromAddressLine2 = profile.AddressLine2
	invoice.BillFromCity = profile.City
	invoice.BillFromState = profile.State
	invoice.BillFromPostalCode = profile.PostalCode
	invoice.BillFromCountry = profile.Country
	invoice.BillFromEmail = profile.Email
	invoice.BillFromPhone = profile.Phone
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
