package routes

import (
	"github.com/gofiber/fiber/v2"

	"invoicing-backend/controllers"
	"invoicing-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Processor event intake. No session; trust comes from the
	// per-account signature check.
	api.Post("/webhook/:accountId", controllers.HandleWebhook)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then per-request transaction (commits/rolls back around the handler)
	protected.Use(middlewares.AccountTx())

	// Account
	protected.Get("/me", controllers.Me)
	protected.Patch("/settings", controllers.UpdateSettings)
	protected.Post("/stripe/connect", controllers.ConnectStripe)

	// Company profiles
	protected.Post("/company", controllers.CreateCompanyProfile)
	protected.Get("/companies", controllers.ListCompanyProfiles)
	protected.Patch("/company/:id", controllers.UpdateCompanyProfile)
	protected.Delete("/company/:id", controllers.DeleteCompanyProfile)

	// Invoices
	protected.Post("/invoice", controllers.CreateInvoice)
	protected.Get("/invoices", controllers.ListInvoices)
	protected.Get("/invoice/:id", controllers.GetInvoice)
	protected.Patch("/invoice/:id", controllers.UpdateInvoice)
	protected.Put("/invoice/:id/pay", controllers.SetInvoicePaid(true))
	protected.Put("/invoice/:id/unpay", controllers.SetInvoicePaid(false))
	protected.Delete("/invoice/:id", controllers.DeleteInvoice)

	// Exports
	protected.Get("/invoices/export", controllers.ExportInvoicesCSV)
	protected.Get("/invoice/:id/pdf", controllers.GetInvoicePDF)

	// Processor sync
	protected.Post("/sync", controllers.TriggerSync)
	protected.Get("/subscriptions", controllers.ListSubscriptions)
	protected.Get("/subscription/:id/status", controllers.GetSubscriptionStatus)
	protected.Post("/billing-portal", controllers.CreateBillingPortalSession)

	protected.Get("/stats", controllers.GetAccountStats)
}
