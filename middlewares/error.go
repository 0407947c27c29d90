package middlewares

import (
	"errors"

	"invoicing-backend/payments"
	appsync "invoicing-backend/sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		// 1) Fiber errors (use their status code + message)
		if fe, ok := err.(*fiber.Error); ok {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}

		// 2) Validation errors (422 + per-field info)
		if ve, ok := err.(validator.ValidationErrors); ok {
			out := make(map[string]string, len(ve))
			for _, fe := range ve {
				out[fe.Field()] = fe.Tag()
			}
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"message": "validation failed",
				"errors":  out,
			})
		}

		// 3) Domain errors with fixed HTTP semantics
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid webhook signature"})
		case errors.Is(err, appsync.ErrNoOriginProfile):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "create a company profile before syncing payments",
			})
		case errors.Is(err, appsync.ErrUnknownCustomer):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "unknown customer"})
		case errors.Is(err, appsync.ErrAllocationFailed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "invoice number allocation failed, retry"})
		case appsync.IsMalformed(err):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "not found"})
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "duplicate resource"})
		}

		// 4) Unknown errors (500)
		log.Error("internal error", zap.Error(err), zap.String("path", c.Path()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}
}
