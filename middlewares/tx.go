package middlewares

import (
	"log"
	"strings"

	"invoicing-backend/database"

	"github.com/gofiber/fiber/v2"
)

// AccountTx opens a per-request DB transaction for authenticated mutations.
// Order: run AFTER IsAuthenticatedHeader() (so accountID is present),
// and AFTER Idempotency() (so idempotency records aren't tied to the handler TX).
func AccountTx() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		accountID, _ := c.Locals("accountID").(string)
		if strings.TrimSpace(accountID) == "" {
			// Public endpoints (e.g., /login) won't have an account; just proceed.
			return c.Next()
		}

		// Begin TX on the shared DB connection.
		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to begin transaction")
		}

		// Ensure we always cleanup.
		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r) // re-panic after rollback so Fiber's handler can catch
			}
			if err != nil {
				_ = tx.Rollback()
				return
			}
			if e := tx.Commit().Error; e != nil {
				log.Printf("tx commit failed: %v", e)
				err = fiber.NewError(fiber.StatusInternalServerError, "transaction commit failed")
			}
		}()

		// Make the TX available to handlers via GetAccountDB(c).
		c.Locals("tx", tx)

		// Run the handler chain inside this TX.
		err = c.Next()
		return err
	}
}
