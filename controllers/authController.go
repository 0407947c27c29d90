package controllers

import (
	"net/mail"
	"time"

	"invoicing-backend/database"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
	"invoicing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func Register(c *fiber.Ctx) error {
	var data map[string]string
	if err := c.BodyParser(&data); err != nil {
		return err
	}

	if _, err := mail.ParseAddress(data["email"]); err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Invalid email format",
		})
	}

	var mailExist models.Account
	database.DB.Where("email = ?", data["email"]).First(&mailExist)
	if mailExist.Email != "" {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "email already exists",
		})
	}

	if data["password"] != data["password_confirm"] {
		c.Status(400)
		return c.JSON(fiber.Map{
			"message": "passwords do not match",
		})
	}

	tx := database.DB.Begin()

	account := models.Account{
		FullName:    data["full_name"],
		Email:       data["email"],
		SenderEmail: data["sender_email"],
	}
	account.SetPassword(data["password"])
	if err := tx.Create(&account).Error; err != nil {
		tx.Rollback()
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not create account",
			"error":   err.Error(),
		})
	}

	// First company profile, when provided, is the default origin profile.
	if data["bill_from"] != "" {
		profile := models.CompanyProfile{
			AccountID:    account.Id,
			BillFrom:     data["bill_from"],
			AddressLine1: data["address_line_1"],
			City:         data["city"],
			PostalCode:   data["postal_code"],
			Country:      data["country"],
			Email:        data["email"],
			Default:      true,
		}
		if err := tx.Create(&profile).Error; err != nil {
			tx.Rollback()
			c.Status(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"message": "Could not create company profile",
				"error":   err.Error(),
			})
		}
	}

	tx.Commit()

	return c.JSON(account)
}

func Login(c *fiber.Ctx) error {
	var data map[string]string
	if err := c.BodyParser(&data); err != nil {
		return err
	}

	if _, err := mail.ParseAddress(data["email"]); err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Invalid email format",
		})
	}

	var account models.Account
	database.DB.Where("email = ?", data["email"]).First(&account)

	if _, err := uuid.Parse(account.Id); err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Invalid Credentials",
		})
	}

	if err := account.ComparePassword(data["password"]); err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Invalid Credentials",
		})
	}

	token, err := middlewares.GenerateJWT(account.Id)
	if err != nil {
		c.Status(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"message": "Could not sign token",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"account": fiber.Map{
			"id":    account.Id,
			"name":  account.FullName,
			"email": account.Email,
		},
	})
}

func Logout(c *fiber.Ctx) error {
	cookie := fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	}
	c.Cookie(&cookie)
	return c.JSON(fiber.Map{
		"message": "success",
	})
}

func Me(c *fiber.Ctx) error {
	accountID := requestAccountID(c)
	var account models.Account
	if err := database.DB.First(&account, "id = ?", accountID).Error; err != nil {
		return err
	}
	return c.JSON(account)
}

type settingsDTO struct {
	SenderEmail     *string `json:"sender_email" validate:"omitempty,email"`
	AutoSendInvoice *bool   `json:"auto_send_invoice"`
	ThankYouNote    *string `json:"thankyou_note" validate:"omitempty,max=500"`
	FullName        *string `json:"full_name" validate:"omitempty,max=200"`
}

// UpdateSettings patches the account's email and notification preferences.
func UpdateSettings(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	var dto settingsDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)

	updates := utils.UpdatesFromPtrDTO(&dto, nil)
	if len(updates) == 0 {
		return c.JSON(fiber.Map{"message": "nothing to update"})
	}

	db := requestDB(c)
	if err := db.Model(&models.Account{}).Where("id = ?", accountID).Updates(updates).Error; err != nil {
		return err
	}

	var account models.Account
	if err := db.First(&account, "id = ?", accountID).Error; err != nil {
		return err
	}
	return c.JSON(account)
}

type stripeCredentialsDTO struct {
	APIKey        string `json:"api_key" validate:"required,min=8"`
	WebhookSecret string `json:"webhook_secret" validate:"omitempty,min=8"`
}

// ConnectStripe validates the submitted API key against the processor and
// stores it encrypted. An omitted webhook secret leaves the intake endpoint in
// degraded-trust mode for this account.
func ConnectStripe(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	var dto stripeCredentialsDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	// A cheap authenticated read proves the key works before we persist it.
	proc := processorFactory(dto.APIKey)
	if _, err := proc.ListCharges(c.Context(), "", 1); err != nil {
		log.Info("processor key validation failed",
			zap.String("account_id", accountID), zap.Error(err))
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Invalid Stripe API key",
		})
	}

	encrypted, err := utils.EncryptSecret(dto.APIKey)
	if err != nil {
		return err
	}

	updates := map[string]any{"stripe_api_key": encrypted}
	if dto.WebhookSecret != "" {
		encryptedSecret, err := utils.EncryptSecret(dto.WebhookSecret)
		if err != nil {
			return err
		}
		updates["stripe_webhook_secret"] = encryptedSecret
	}

	db := requestDB(c)
	if err := db.Model(&models.Account{}).Where("id = ?", accountID).Updates(updates).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "stripe credentials saved"})
}
