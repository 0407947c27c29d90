package controllers

import (
	"invoicing-backend/database"
	"invoicing-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetAccountStats returns the account's dashboard counters in one response:
// invoice counts split by origin and paid state, edited and deleted totals,
// and the number of saved company profiles.
func GetAccountStats(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	invoices := func() *gorm.DB {
		return database.DB.Model(&models.Invoice{}).Where("account_id = ?", accountID)
	}

	var manual, processor, paid, total, edited, deleted, profiles int64
	if err := invoices().Where("origin = ?", models.OriginManual).Count(&manual).Error; err != nil {
		return err
	}
	if err := invoices().Where("origin = ?", models.OriginProcessorCharge).Count(&processor).Error; err != nil {
		return err
	}
	if err := invoices().Where("paid_processor = ? OR paid_manual = ?", true, true).Count(&paid).Error; err != nil {
		return err
	}
	if err := invoices().Count(&total).Error; err != nil {
		return err
	}
	if err := invoices().Where("edited = ?", true).Count(&edited).Error; err != nil {
		return err
	}
	err := database.DB.Model(&models.DeletedInvoice{}).
		Where("account_id = ?", accountID).
		Count(&deleted).Error
	if err != nil {
		return err
	}
	err = database.DB.Model(&models.CompanyProfile{}).
		Where("account_id = ?", accountID).
		Count(&profiles).Error
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"manual_invoices":    manual,
		"processor_invoices": processor,
		"paid_count":         paid,
		"unpaid_count":       total - paid,
		"edited_count":       edited,
		"deleted_count":      deleted,
		"company_profiles":   profiles,
	})
}
