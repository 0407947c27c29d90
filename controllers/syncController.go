package controllers

import (
	"errors"

	"invoicing-backend/database"
	"invoicing-backend/models"
	appsync "invoicing-backend/sync"
	"invoicing-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// TriggerSync runs a reconciliation pass over the account's processor charge
// history. Query params: limit (invoices to create, default 25) and page_size.
func TriggerSync(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	var account models.Account
	if err := database.DB.First(&account, "id = ?", accountID).Error; err != nil {
		return err
	}
	proc, err := accountProcessor(&account)
	if err != nil {
		return err
	}

	limit := utils.ParseIntDefault(c.Query("limit"), 25)
	pageSize := int64(utils.ParseIntDefault(c.Query("page_size"), 25))

	engine := appsync.NewEngine(database.DB, proc, mailScheduler, statusCache, log)
	reconciler := appsync.NewReconciler(database.DB, engine, proc, log)

	report, err := reconciler.Run(c.Context(), accountID, limit, pageSize)
	if err != nil {
		if errors.Is(err, appsync.ErrNoOriginProfile) {
			// Setup problem, not a transient one. Tell the caller what to fix.
			c.Status(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"message": "create a company profile before syncing payments",
				"report":  report,
			})
		}
		return err
	}
	return c.JSON(report)
}

// GetSubscriptionStatus reads one subscription's status through the short-TTL
// cache.
func GetSubscriptionStatus(c *fiber.Ctx) error {
	accountID := requestAccountID(c)
	subscriptionID := c.Params("id")

	// Scope check first: the cache is keyed by subscription id alone.
	var sub models.Subscription
	err := database.DB.Select("id").
		Where("account_id = ?", accountID).
		First(&sub, "id = ?", subscriptionID).Error
	if err != nil {
		return err
	}

	engine := appsync.NewEngine(database.DB, nil, nil, statusCache, log)
	status, err := engine.SubscriptionStatus(c.Context(), subscriptionID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": subscriptionID, "status": status})
}

// ListSubscriptions returns the account's synced subscriptions.
func ListSubscriptions(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	var subs []models.Subscription
	err := database.DB.
		Where("account_id = ?", accountID).
		Order("current_period_end DESC").
		Find(&subs).Error
	if err != nil {
		return err
	}
	return c.JSON(subs)
}
