package controllers

import (
	"errors"

	"invoicing-backend/database"
	"invoicing-backend/models"
	"invoicing-backend/payments"
	appsync "invoicing-backend/sync"
	"invoicing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// HandleWebhook is the processor's event intake for one account. The endpoint
// is public; trust comes from the signature check against the account's
// signing secret. The 2xx response is only written after the event's effect is
// durably committed, so a crash before commit makes the processor redeliver.
func HandleWebhook(c *fiber.Ctx) error {
	accountID := c.Params("accountId")

	var account models.Account
	if err := database.DB.First(&account, "id = ?", accountID).Error; err != nil {
		// A wrong account id gets a 404 and no retries.
		return fiber.NewError(fiber.StatusNotFound, "unknown account")
	}

	payload := c.Body()
	event, err := verifyOrParse(&account, payload, c.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			log.Warn("webhook signature rejected", zap.String("account_id", accountID))
			return err
		}
		return fiber.NewError(fiber.StatusBadRequest, "unparseable event payload")
	}

	canonical, err := appsync.Normalize(event)
	if err != nil {
		// Malformed but authenticated: acknowledge so the processor stops
		// redelivering a payload that can never apply.
		log.Warn("discarding malformed event",
			zap.String("account_id", accountID),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return c.JSON(fiber.Map{"received": true, "applied": false})
	}
	if canonical == nil {
		// Recognized envelope, uninteresting type.
		return c.JSON(fiber.Map{"received": true, "applied": false})
	}

	var proc payments.Processor
	if account.StripeAPIKey != "" {
		if proc, err = accountProcessor(&account); err != nil {
			return err
		}
	}

	engine := appsync.NewEngine(database.DB, proc, mailScheduler, statusCache, log)
	result, err := engine.Apply(c.Context(), accountID, canonical)
	if err != nil {
		if errors.Is(err, appsync.ErrUnknownCustomer) {
			// No checkout has mapped this customer yet; redelivery won't
			// change that, so acknowledge and move on.
			log.Info("event for unmapped customer dropped",
				zap.String("account_id", accountID),
				zap.String("event_id", event.ID))
			return c.JSON(fiber.Map{"received": true, "applied": false})
		}
		// Everything else (missing origin profile included) is a processing
		// failure: a non-2xx makes the processor redeliver once it's fixed.
		return err
	}

	return c.JSON(fiber.Map{"received": true, "applied": result != appsync.ResultSkipped, "result": result})
}

// verifyOrParse authenticates the payload when a signing secret is configured
// and falls back to unverified parsing otherwise.
func verifyOrParse(account *models.Account, payload []byte, signature string) (*stripe.Event, error) {
	if account.StripeWebhookSecret != "" {
		secret, err := utils.DecryptSecret(account.StripeWebhookSecret)
		if err != nil {
			return nil, err
		}
		return payments.VerifyEvent(payload, signature, secret)
	}
	log.Warn("no signing secret configured, accepting unverified event",
		zap.String("account_id", account.Id))
	return payments.ParseEvent(payload)
}
