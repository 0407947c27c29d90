package controllers

import (
	"errors"

	"invoicing-backend/database"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type billingPortalDTO struct {
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
}

// CreateBillingPortalSession opens a hosted billing-portal session for the
// account's processor customer and returns its URL. Requires a synced
// subscription: without one there is no customer mapping to open the portal
// for.
func CreateBillingPortalSession(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	var dto billingPortalDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	var count int64
	err := database.DB.Model(&models.Subscription{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return fiber.NewError(fiber.StatusNotFound, "no subscriptions found for this account")
	}

	var link models.CustomerLink
	err = database.DB.First(&link, "account_id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "no processor customer mapped to this account")
	}
	if err != nil {
		return err
	}

	var account models.Account
	if err := database.DB.First(&account, "id = ?", accountID).Error; err != nil {
		return err
	}
	proc, err := accountProcessor(&account)
	if err != nil {
		return err
	}

	url, err := proc.CreatePortalSession(c.Context(), link.StripeCustomerID, dto.ReturnURL)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"url": url})
}
