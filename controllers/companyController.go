package controllers

import (
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
	"invoicing-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type companyProfileDTO struct {
	BillFrom     string `json:"bill_from" validate:"required,max=200"`
	AddressLine1 string `json:"address_line_1" validate:"max=200"`
	AddressLine2 string `json:"address_line_2" validate:"max=200"`
	City         string `json:"city" validate:"max=100"`
	State        string `json:"state" validate:"max=100"`
	PostalCode   string `json:"postal_code" validate:"max=20"`
	Country      string `json:"country" validate:"max=100"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"max=50"`
	Default      bool   `json:"default"`
}

func CreateCompanyProfile(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	var dto companyProfileDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	db := requestDB(c)

	// The first profile of an account is always the default.
	var count int64
	if err := db.Model(&models.CompanyProfile{}).Where("account_id = ?", accountID).Count(&count).Error; err != nil {
		return err
	}
	makeDefault := dto.Default || count == 0

	if makeDefault {
		if err := db.Model(&models.CompanyProfile{}).
			Where("account_id = ?", accountID).
			Update("default", false).Error; err != nil {
			return err
		}
	}

	profile := models.CompanyProfile{
		AccountID:    accountID,
		BillFrom:     dto.BillFrom,
		AddressLine1: dto.AddressLine1,
		AddressLine2: dto.AddressLine2,
		City:         dto.City,
		State:        dto.State,
		PostalCode:   dto.PostalCode,
		Country:      dto.Country,
		Email:        dto.Email,
		Phone:        dto.Phone,
		Default:      makeDefault,
	}
	if err := db.Create(&profile).Error; err != nil {
		return err
	}
	return c.JSON(profile)
}

func ListCompanyProfiles(c *fiber.Ctx) error {
	accountID := requestAccountID(c)

	var profiles []models.CompanyProfile
	err := requestDB(c).
		Where("account_id = ?", accountID).
		Order("\"default\" DESC, created_at DESC").
		Find(&profiles).Error
	if err != nil {
		return err
	}
	return c.JSON(profiles)
}

type companyProfilePatchDTO struct {
	BillFrom     *string `json:"bill_from" validate:"omitempty,max=200"`
	AddressLine1 *string `json:"address_line_1" validate:"omitempty,max=200"`
	AddressLine2 *string `json:"address_line_2" validate:"omitempty,max=200"`
	City         *string `json:"city" validate:"omitempty,max=100"`
	State        *string `json:"state" validate:"omitempty,max=100"`
	PostalCode   *string `json:"postal_code" validate:"omitempty,max=20"`
	Country      *string `json:"country" validate:"omitempty,max=100"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Phone        *string `json:"phone" validate:"omitempty,max=50"`
	Default      *bool   `json:"default"`
}

func UpdateCompanyProfile(c *fiber.Ctx) error {
	accountID := requestAccountID(c)
	profileID := c.Params("id")

	var dto companyProfilePatchDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)

	db := requestDB(c)

	var profile models.CompanyProfile
	if err := db.Where("account_id = ?", accountID).First(&profile, "id = ?", profileID).Error; err != nil {
		return err
	}

	if dto.Default != nil && *dto.Default {
		if err := db.Model(&models.CompanyProfile{}).
			Where("account_id = ?", accountID).
			Update("default", false).Error; err != nil {
			return err
		}
	}

	updates := utils.UpdatesFromPtrDTO(&dto, nil)
	if len(updates) == 0 {
		return c.JSON(profile)
	}
	if err := db.Model(&profile).Updates(updates).Error; err != nil {
		return err
	}

	if err := db.First(&profile, "id = ?", profileID).Error; err != nil {
		return err
	}
	return c.JSON(profile)
}

func DeleteCompanyProfile(c *fiber.Ctx) error {
	accountID := requestAccountID(c)
	profileID := c.Params("id")

	db := requestDB(c)

	var profile models.CompanyProfile
	if err := db.Where("account_id = ?", accountID).First(&profile, "id = ?", profileID).Error; err != nil {
		return err
	}
	if err := db.Delete(&profile).Error; err != nil {
		return err
	}

	// Promote the newest remaining profile when the default was removed.
	if profile.Default {
		var next models.CompanyProfile
		err := db.Where("account_id = ?", accountID).
			Order("created_at DESC").
			First(&next).Error
		if err == nil {
			if err := db.Model(&next).Update("default", true).Error; err != nil {
				return err
			}
		}
	}

	return c.JSON(fiber.Map{"message": "success"})
}
