package controllers

import (
	"invoicing-backend/database"
	"invoicing-backend/models"
	"invoicing-backend/payments"
	appsync "invoicing-backend/sync"
	"invoicing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Package-level wiring, set once from main. The processor factory is swapped
// for a mock in handler tests.
var (
	log              = zap.NewNop()
	processorFactory payments.Factory = payments.NewStripeClient
	mailScheduler    appsync.EmailScheduler
	statusCache      = appsync.NewStatusCache()
)

// Configure injects the shared dependencies for all handlers.
func Configure(logger *zap.Logger, factory payments.Factory, scheduler appsync.EmailScheduler) {
	if logger != nil {
		log = logger
	}
	if factory != nil {
		processorFactory = factory
	}
	mailScheduler = scheduler
}

// requestDB returns the per-request transaction when the AccountTx middleware
// opened one, and the shared handle otherwise.
func requestDB(c *fiber.Ctx) *gorm.DB {
	if tx, ok := c.Locals("tx").(*gorm.DB); ok && tx != nil {
		return tx
	}
	return database.DB
}

func requestAccountID(c *fiber.Ctx) string {
	id, _ := c.Locals("accountID").(string)
	return id
}

// accountProcessor builds a processor client from the account's encrypted API key.
func accountProcessor(account *models.Account) (payments.Processor, error) {
	if account.StripeAPIKey == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "no payment processor key configured")
	}
	apiKey, err := utils.DecryptSecret(account.StripeAPIKey)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "could not decrypt processor key")
	}
	return processorFactory(apiKey), nil
}
